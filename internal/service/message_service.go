package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vvukelic/ripple/internal/domain"
	"github.com/vvukelic/ripple/internal/repository"
)

var (
	ErrEmptyMessage     = errors.New("message needs text or an image")
	ErrCannotSelfChat   = errors.New("cannot message yourself")
	ErrReceiverNotFound = errors.New("receiver not found")
)

// Notifier pushes realtime events to whichever live connections should
// observe them. Delivery is best effort: an offline party simply misses
// the event.
type Notifier interface {
	NotifyNewMessage(msg *domain.Message)
	NotifyMessagesRead(readerID, senderID uuid.UUID)
}

// ImageStore uploads an encoded image and returns its public URL.
type ImageStore interface {
	Upload(ctx context.Context, dataURL string) (string, error)
}

type MessageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	images      ImageStore
	notifier    Notifier
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	images ImageStore,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		images:      images,
	}
}

// SetNotifier sets the realtime notifier (optional dependency).
func (s *MessageService) SetNotifier(n Notifier) {
	s.notifier = n
}

type SendMessageInput struct {
	Text  string `json:"text"`
	Image string `json:"image"` // base64 data URL, uploaded before persisting
}

// Send persists a message and, once it is durably stored, hands it to the
// notifier for delivery to the receiver's live connection.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID uuid.UUID, input SendMessageInput) (*domain.Message, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" && input.Image == "" {
		return nil, ErrEmptyMessage
	}
	if senderID == receiverID {
		return nil, ErrCannotSelfChat
	}

	receiver, err := s.userRepo.GetByID(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if receiver == nil {
		return nil, ErrReceiverNotFound
	}

	var imageURL *string
	if input.Image != "" {
		url, err := s.images.Upload(ctx, input.Image)
		if err != nil {
			return nil, fmt.Errorf("uploading image: %w", err)
		}
		imageURL = &url
	}

	msg := &domain.Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		ImageURL:   imageURL,
		CreatedAt:  time.Now(),
	}
	if text != "" {
		msg.Text = &text
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyNewMessage(msg)
	}

	return msg, nil
}

// Thread returns the full conversation with another user, oldest first.
// Fetching the thread marks the other user's messages as read and sends
// them a read receipt carrying the viewer's id.
func (s *MessageService) Thread(ctx context.Context, viewerID, otherID uuid.UUID) ([]domain.Message, error) {
	other, err := s.userRepo.GetByID(ctx, otherID)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, ErrUserNotFound
	}

	messages, err := s.messageRepo.ListBetween(ctx, viewerID, otherID)
	if err != nil {
		return nil, err
	}

	if _, err := s.messageRepo.MarkRead(ctx, otherID, viewerID); err != nil {
		return nil, fmt.Errorf("marking messages read: %w", err)
	}

	// The read flag flipped after the SELECT; reflect it in the response.
	for i := range messages {
		if messages[i].SenderID == otherID {
			messages[i].IsRead = true
		}
	}

	if s.notifier != nil {
		s.notifier.NotifyMessagesRead(viewerID, otherID)
	}

	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}
