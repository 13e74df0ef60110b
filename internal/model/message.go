package model

import "time"

// Message content types.
const (
	MessageTypeText  = "TEXT"
	MessageTypeImage = "IMAGE"
	MessageTypeVideo = "VIDEO"
	MessageTypeAudio = "AUDIO"
	MessageTypeFile  = "FILE"
)

// Message 消息模型
// ID is a store-assigned bigserial: strictly increasing in commit order, the
// ordering key for pagination cursors and unread comparisons.
// The composite unique index on (room_id, sender_id, dedup_key) is the sole
// concurrency-safety mechanism for duplicate submissions.
type Message struct {
	ID       int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID   string  `gorm:"index;uniqueIndex:idx_messages_dedup;not null;type:varchar(64)" json:"room_id"`
	SenderID string  `gorm:"uniqueIndex:idx_messages_dedup;not null;type:varchar(64)" json:"sender_id"`
	DedupKey string  `gorm:"uniqueIndex:idx_messages_dedup;not null;type:varchar(128)" json:"dedup_key"`
	Type     string  `gorm:"not null;default:TEXT;type:varchar(16)" json:"type"`
	Content  *string `gorm:"type:text" json:"content,omitempty"`

	Attachments []Attachment `gorm:"foreignKey:MessageID" json:"attachments"`

	CreatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}

// Attachment links a message to an uploaded file. SortOrder fixes the
// position within the message and is never changed after creation.
type Attachment struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID int64  `gorm:"index;not null" json:"message_id"`
	FileID    string `gorm:"not null;type:varchar(64)" json:"file_id"`
	SortOrder int    `gorm:"not null" json:"sort_order"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Attachment) TableName() string {
	return "attachments"
}
