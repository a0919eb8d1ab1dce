package storage

const (
	// TimeLayout names output files, e.g. "2024-05-01 13:04:05.JPG".
	TimeLayout = "2006-01-02 15:04:05"

	DefaultImageExt = ".JPG"
	DefaultVideoExt = ".avi"

	DefaultFilePerm = 0660
	DefaultDirPerm  = 0750

	// DefaultQuality is the JPEG quality of written files.
	DefaultQuality = 100
)

// Volume states, named after the states a removable volume reports.
const (
	MediaMounted   = "mounted"
	MediaUnmounted = "unmounted"
	MediaRemoved   = "removed"
)
