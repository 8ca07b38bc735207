// Package types provides shared data structures for the mini-app runtime.
//
// This package defines core value types used across all components,
// ensuring type safety and consistent data structures.
//
// Core Types:
//   - MiniAppInfo: Registry description of a mini app (identity by ID)
//   - Manifest: Declared permissions and metadata of one version
//   - InstallRecord: Lifecycle record of one downloaded version
//   - PermissionRecord: Stored user decision for a custom permission
//   - BridgeRequest: Inbound capability envelope from sandboxed content
//   - Result: Standard operation result
//   - Context: Mini-app session identity for capability execution
//
// Example Usage:
//
//	info := types.MiniAppInfo{
//	    ID:      "abc",
//	    Version: types.Version{VersionTag: "1.0.0", VersionID: "v1"},
//	}
package types
