package common

// File modes. Secure modes are for config, credentials and run history.
const (
	FilePermissionSecure = 0600
	FilePermissionNormal = 0644

	DirPermissionSecure = 0700
	DirPermissionNormal = 0755
)
