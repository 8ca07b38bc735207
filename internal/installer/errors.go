package installer

import "errors"

var (
	// ErrPermissionRequired indicates the fresh manifest's permission hash
	// differs from the last accepted one (or nothing was ever accepted).
	// The decision to proceed belongs to an external collaborator; the
	// installer never auto-approves on mismatch.
	ErrPermissionRequired = errors.New("permission consent required")

	// ErrSignatureVerification indicates the archive signature could not be
	// verified and the policy declares verification mandatory.
	ErrSignatureVerification = errors.New("signature verification failed")

	// ErrInvalidArchive indicates the downloaded file is not a supported
	// bundle archive.
	ErrInvalidArchive = errors.New("invalid bundle archive")

	// ErrDownloadFailed indicates the binary fetch did not complete.
	ErrDownloadFailed = errors.New("downloading failed")
)
