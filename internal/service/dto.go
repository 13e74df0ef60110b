package service

import (
	"time"

	"github.com/moyeolab/moyeo/internal/model"
)

// SenderSummary is the slim user projection embedded in rendered messages.
type SenderSummary struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// AttachmentDTO renders one attachment in its stable position.
type AttachmentDTO struct {
	FileID    string `json:"file_id"`
	SortOrder int    `json:"sort_order"`
}

// MessageDTO is the rendered message returned by the send and history
// endpoints and broadcast on the room channel.
type MessageDTO struct {
	ID          int64           `json:"id"`
	RoomID      string          `json:"room_id"`
	DedupKey    string          `json:"dedup_key"`
	Type        string          `json:"type"`
	Content     *string         `json:"content,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Sender      SenderSummary   `json:"sender"`
	Attachments []AttachmentDTO `json:"attachments"`
}

// MessagePage is one backward page of room history, newest first.
type MessagePage struct {
	Items      []MessageDTO `json:"items"`
	HasNext    bool         `json:"has_next"`
	NextCursor *int64       `json:"next_cursor,omitempty"`
}

// RoomUnreadSummary reports a member's unread state for one room.
type RoomUnreadSummary struct {
	RoomID             string  `json:"room_id"`
	RoomTitle          string  `json:"room_title,omitempty"`
	UnreadCount        int64   `json:"unread_count"`
	LastReadMessageID  *int64  `json:"last_read_message_id,omitempty"`
	LastMessagePreview *string `json:"last_message_preview,omitempty"`
}

// MemberSummary is broadcast on member-entered events.
type MemberSummary struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

func renderMessage(msg *model.Message, sender *model.User) MessageDTO {
	dto := MessageDTO{
		ID:          msg.ID,
		RoomID:      msg.RoomID,
		DedupKey:    msg.DedupKey,
		Type:        msg.Type,
		Content:     msg.Content,
		CreatedAt:   msg.CreatedAt,
		Attachments: make([]AttachmentDTO, 0, len(msg.Attachments)),
	}
	if sender != nil {
		dto.Sender = SenderSummary{
			ID:        sender.ID,
			Nickname:  sender.Nickname,
			AvatarURL: sender.AvatarURL,
		}
	}
	for _, att := range msg.Attachments {
		dto.Attachments = append(dto.Attachments, AttachmentDTO{
			FileID:    att.FileID,
			SortOrder: att.SortOrder,
		})
	}
	return dto
}
