package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/moyeolab/moyeo/config"
	"github.com/moyeolab/moyeo/internal/event"
	"github.com/moyeolab/moyeo/internal/model"
	"github.com/moyeolab/moyeo/internal/repository"
)

// SendMessageRequest carries one logical message send. DedupKey is the
// client-supplied idempotency token: resubmitting the same key for the same
// (room, sender) always resolves to the first persisted message.
type SendMessageRequest struct {
	DedupKey          string   `json:"dedup_key" binding:"required,max=128"`
	Content           *string  `json:"content" binding:"omitempty,max=5000"`
	Type              string   `json:"type"`
	AttachmentFileIDs []string `json:"attachment_file_ids"`
}

// IMessageService defines the message write and read-page operations.
type IMessageService interface {
	SaveMessage(ctx context.Context, senderID, roomID string, req *SendMessageRequest) (*MessageDTO, error)
	FindMessages(ctx context.Context, userID, roomID string, pageSize int, beforeMessageID *int64) (*MessagePage, error)
}

// MessageService implements IMessageService.
type MessageService struct {
	db             TxManager
	messageRepo    repository.IMessageRepository
	membershipRepo repository.IMembershipRepository
	fileRepo       repository.IFileRepository
	userRepo       repository.IUserRepository
	events         *event.Publisher
	pageCfg        config.ChatConfig
}

func NewMessageService(
	db TxManager,
	messageRepo repository.IMessageRepository,
	membershipRepo repository.IMembershipRepository,
	fileRepo repository.IFileRepository,
	userRepo repository.IUserRepository,
	events *event.Publisher,
	pageCfg config.ChatConfig,
) IMessageService {
	return &MessageService{
		db:             db,
		messageRepo:    messageRepo,
		membershipRepo: membershipRepo,
		fileRepo:       fileRepo,
		userRepo:       userRepo,
		events:         events,
		pageCfg:        pageCfg,
	}
}

// SaveMessage persists a message exactly once per (room, sender, dedup key),
// no matter how many concurrent retries of the same request arrive.
//
// The fast path returns an already-persisted message unchanged. Otherwise
// the message and its attachments are inserted in one transaction; if the
// insert loses the race to a concurrent duplicate — detected via the unique
// index on the dedup key — the winner's row is re-read and returned instead
// of propagating the failure. First committer wins.
func (s *MessageService) SaveMessage(ctx context.Context, senderID, roomID string, req *SendMessageRequest) (*MessageDTO, error) {
	if _, err := s.requirePaidMembership(ctx, roomID, senderID); err != nil {
		return nil, err
	}

	sender, err := s.userRepo.FindByID(ctx, senderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find sender: %w", err)
	}

	// Idempotent replay: an earlier attempt already won.
	if existing, err := s.messageRepo.FindByDedupKey(ctx, roomID, senderID, req.DedupKey); err == nil {
		dto := renderMessage(existing, sender)
		return &dto, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up dedup key: %w", err)
	}

	files, err := s.validateAttachments(ctx, roomID, senderID, req.AttachmentFileIDs)
	if err != nil {
		return nil, err
	}

	msgType := deriveMessageType(req.Type, files)
	if req.Content == nil && len(files) == 0 {
		return nil, ErrInvalidMessage
	}

	message := &model.Message{
		RoomID:   roomID,
		SenderID: senderID,
		DedupKey: req.DedupKey,
		Type:     msgType,
		Content:  req.Content,
	}
	for i, id := range req.AttachmentFileIDs {
		message.Attachments = append(message.Attachments, model.Attachment{
			FileID:    id,
			SortOrder: i,
		})
	}

	outbox := s.events.Begin()
	err = s.db.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.messageRepo.WithTx(tx).Create(ctx, message); err != nil {
			return err
		}
		outbox.Publish(event.Event{
			Kind:    event.KindMessageCreated,
			RoomID:  roomID,
			UserID:  senderID,
			Payload: renderMessage(message, sender),
		})
		return nil
	})
	if err != nil {
		outbox.Discard()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent retry committed first; observe the winner.
			winner, findErr := s.messageRepo.FindByDedupKey(ctx, roomID, senderID, req.DedupKey)
			if findErr != nil {
				return nil, fmt.Errorf("failed to re-read message after dedup conflict: %w", findErr)
			}
			dto := renderMessage(winner, sender)
			return &dto, nil
		}
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	outbox.Commit()

	dto := renderMessage(message, sender)
	return &dto, nil
}

// FindMessages serves one backward page of room history, strictly
// descending by message id. A nil cursor returns the newest page; a cursor
// is an exclusive upper bound. HasNext reports whether strictly older
// messages remain; NextCursor is the id of the oldest returned item.
func (s *MessageService) FindMessages(ctx context.Context, userID, roomID string, pageSize int, beforeMessageID *int64) (*MessagePage, error) {
	if _, err := s.requirePaidMembership(ctx, roomID, userID); err != nil {
		return nil, err
	}

	pageSize = s.clampPageSize(pageSize)

	// Fetch one extra row to learn whether a further page exists.
	messages, err := s.messageRepo.FindPageBefore(ctx, roomID, beforeMessageID, pageSize+1)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve messages: %w", err)
	}

	hasNext := len(messages) > pageSize
	if hasNext {
		messages = messages[:pageSize]
	}

	senders, err := s.loadSenders(ctx, messages)
	if err != nil {
		return nil, err
	}

	page := &MessagePage{
		Items:   make([]MessageDTO, 0, len(messages)),
		HasNext: hasNext,
	}
	for _, msg := range messages {
		page.Items = append(page.Items, renderMessage(msg, senders[msg.SenderID]))
	}
	if len(messages) > 0 {
		oldest := messages[len(messages)-1].ID
		page.NextCursor = &oldest
	}
	return page, nil
}

// requirePaidMembership resolves the caller's membership and enforces the
// paid-status precondition shared by the send and history paths.
func (s *MessageService) requirePaidMembership(ctx context.Context, roomID, userID string) (*model.Membership, error) {
	membership, err := s.membershipRepo.Find(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !membership.IsPaid() {
		return nil, ErrNotPaidMember
	}
	return membership, nil
}

func (s *MessageService) clampPageSize(pageSize int) int {
	if pageSize <= 0 {
		pageSize = s.pageCfg.PageSizeDefault
	}
	if pageSize < s.pageCfg.PageSizeMin {
		pageSize = s.pageCfg.PageSizeMin
	}
	if pageSize > s.pageCfg.PageSizeMax {
		pageSize = s.pageCfg.PageSizeMax
	}
	return pageSize
}

// validateAttachments resolves the referenced files and checks each one
// belongs to this room and sender and is not virus-blocked. Order of the
// returned slice follows the request order.
func (s *MessageService) validateAttachments(ctx context.Context, roomID, senderID string, fileIDs []string) ([]*model.File, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}

	files, err := s.fileRepo.FindByIDs(ctx, fileIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve attachment files: %w", err)
	}

	byID := make(map[string]*model.File, len(files))
	for _, f := range files {
		byID[f.ID] = f
	}

	ordered := make([]*model.File, 0, len(fileIDs))
	for _, id := range fileIDs {
		f, ok := byID[id]
		if !ok {
			return nil, ErrAttachmentNotFound
		}
		if f.RoomID != roomID || f.UploaderID != senderID {
			return nil, ErrInvalidAttachment
		}
		if f.ScanStatus == model.ScanBlocked {
			return nil, ErrAttachmentBlocked
		}
		ordered = append(ordered, f)
	}
	return ordered, nil
}

// deriveMessageType overrides the requested type from the attachments:
// all images → IMAGE, any video → VIDEO, any audio → AUDIO, otherwise FILE.
// Without attachments the caller's type is kept (defaulting to TEXT).
func deriveMessageType(requested string, files []*model.File) string {
	if len(files) == 0 {
		if requested == "" {
			return model.MessageTypeText
		}
		return requested
	}

	var hasVideo, hasAudio bool
	allImages := true
	for _, f := range files {
		if f.IsVideo() {
			hasVideo = true
		}
		if f.IsAudio() {
			hasAudio = true
		}
		if !f.IsImage() {
			allImages = false
		}
	}
	switch {
	case allImages:
		return model.MessageTypeImage
	case hasVideo:
		return model.MessageTypeVideo
	case hasAudio:
		return model.MessageTypeAudio
	default:
		return model.MessageTypeFile
	}
}

func (s *MessageService) loadSenders(ctx context.Context, messages []*model.Message) (map[string]*model.User, error) {
	idSet := make(map[string]bool, len(messages))
	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		if !idSet[msg.SenderID] {
			idSet[msg.SenderID] = true
			ids = append(ids, msg.SenderID)
		}
	}

	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load senders: %w", err)
	}

	byID := make(map[string]*model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}
