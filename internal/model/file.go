package model

import (
	"strings"
	"time"
)

// File scan states, written by the external antivirus pipeline and only
// consumed here.
const (
	ScanPending = "PENDING"
	ScanClean   = "CLEAN"
	ScanBlocked = "BLOCKED"
)

// File transcode states, written by the external media pipeline.
const (
	TranscodeNone    = "NONE"
	TranscodePending = "PENDING"
	TranscodeDone    = "DONE"
)

// File 文件模型
// Readiness (scan/transcode status) is computed by external pipelines; the
// messaging core only reads it when validating attachments.
type File struct {
	ID         string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UploaderID string `gorm:"index;not null;type:varchar(64)" json:"uploader_id"`
	RoomID     string `gorm:"index;not null;type:varchar(64)" json:"room_id"`
	Name       string `gorm:"not null;type:varchar(255)" json:"name"`
	MimeType   string `gorm:"not null;type:varchar(128)" json:"mime_type"`
	SizeBytes  int64  `gorm:"not null;default:0" json:"size_bytes"`

	ScanStatus      string `gorm:"not null;default:PENDING;type:varchar(16)" json:"scan_status"`
	TranscodeStatus string `gorm:"not null;default:NONE;type:varchar(16)" json:"transcode_status"`

	CreatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`
}

func (File) TableName() string {
	return "files"
}

// IsImage/IsVideo/IsAudio classify by MIME prefix; used when deriving the
// effective message type from its attachments.
func (f *File) IsImage() bool { return strings.HasPrefix(f.MimeType, "image/") }
func (f *File) IsVideo() bool { return strings.HasPrefix(f.MimeType, "video/") }
func (f *File) IsAudio() bool { return strings.HasPrefix(f.MimeType, "audio/") }
