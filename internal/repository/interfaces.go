package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vvukelic/ripple/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// ListOthers returns every user except the given one, ordered by username.
	ListOthers(ctx context.Context, excludeID uuid.UUID) ([]domain.User, error)
	UpdateAvatar(ctx context.Context, id uuid.UUID, avatarURL string) (*domain.User, error)
	UpdateLastSeen(ctx context.Context, id uuid.UUID, seenAt time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	// ListBetween returns the full thread between two users, oldest first.
	ListBetween(ctx context.Context, userA, userB uuid.UUID) ([]domain.Message, error)
	// MarkRead flips every unread message from sender to receiver and
	// reports how many rows changed.
	MarkRead(ctx context.Context, senderID, receiverID uuid.UUID) (int64, error)
	CountUnread(ctx context.Context, senderID, receiverID uuid.UUID) (int, error)
}
