package types

// Version identifies one published build of a mini app.
type Version struct {
	VersionTag string `json:"versionTag"`
	VersionID  string `json:"versionId"`
}

// MiniAppInfo is the registry's description of one mini app.
// Identity is carried by ID alone: two infos with the same ID describe the
// same app regardless of every other field.
type MiniAppInfo struct {
	ID                  string  `json:"id"`
	DisplayName         *string `json:"displayName,omitempty"`
	Icon                string  `json:"icon"`
	Version             Version `json:"version"`
	PromotionalImageURL *string `json:"promotionalImageUrl,omitempty"`
	PromotionalText     *string `json:"promotionalText,omitempty"`
}

// Equal reports whether two infos refer to the same mini app.
func (m MiniAppInfo) Equal(other MiniAppInfo) bool {
	return m.ID == other.ID
}

// Manifest declares the permissions and metadata of one (appID, versionID).
type Manifest struct {
	RequiredPermissions    []string           `json:"reqPermissions"`
	OptionalPermissions    []string           `json:"optPermissions"`
	CustomMetaData         map[string]string  `json:"customMetaData"`
	AccessTokenPermissions []AccessTokenScope `json:"accessTokenPermissions"`
	VersionID              string             `json:"versionId"`
	PublicKeyID            string             `json:"publicKeyId"`
}

// AccessTokenScope narrows what an issued access token may do.
type AccessTokenScope struct {
	Audience string   `json:"audience"`
	Scopes   []string `json:"scopes"`
}

// InstallRecord tracks the lifecycle of one downloaded version.
// Downloaded flips to true only after verification completes (or signature
// checking is disabled); the record is deleted when the version is evicted.
type InstallRecord struct {
	AppID            string `json:"appId"`
	VersionID        string `json:"versionId"`
	Downloaded       bool   `json:"downloaded"`
	CachedVersionTag string `json:"cachedVersionTag"`
	SignatureChecked bool   `json:"signatureChecked"`
}

// GrantState is a tri-state permission decision.
type GrantState string

const (
	GrantAllowed       GrantState = "allowed"
	GrantDenied        GrantState = "denied"
	GrantNotDetermined GrantState = "notDetermined"
)

// CustomPermission names an SDK-defined capability gate. The set is closed;
// unrecognized names are rejected at the store boundary.
type CustomPermission string

const (
	PermissionUserName     CustomPermission = "rt.permission.user_name"
	PermissionProfilePhoto CustomPermission = "rt.permission.profile_photo"
	PermissionContactList  CustomPermission = "rt.permission.contact_list"
	PermissionAccessToken  CustomPermission = "rt.permission.access_token"
	PermissionPoints       CustomPermission = "rt.permission.points"
	PermissionFileDownload CustomPermission = "rt.permission.file_download"
)

// KnownCustomPermissions returns the closed enumeration of permission names.
func KnownCustomPermissions() []CustomPermission {
	return []CustomPermission{
		PermissionUserName,
		PermissionProfilePhoto,
		PermissionContactList,
		PermissionAccessToken,
		PermissionPoints,
		PermissionFileDownload,
	}
}

// IsKnownCustomPermission reports whether name is part of the closed set.
func IsKnownCustomPermission(name CustomPermission) bool {
	for _, p := range KnownCustomPermissions() {
		if p == name {
			return true
		}
	}
	return false
}

// PermissionRecord is one stored user decision for a custom permission.
type PermissionRecord struct {
	Name        CustomPermission `json:"permissionName"`
	Granted     GrantState       `json:"isPermissionGranted"`
	Description string           `json:"permissionDescription"`
}

// PreviewInfo describes an unpublished build resolved from a preview token.
type PreviewInfo struct {
	MiniApp  MiniAppInfo `json:"miniapp"`
	Token    string      `json:"previewToken"`
	HostName string      `json:"hostName"`
}
