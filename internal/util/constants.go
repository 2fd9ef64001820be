package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	MimeImage = "image/"
	// 作业图片上限 10MB
	MaxImageBytes = 10 << 20
)

var AllowedImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".heic"}
