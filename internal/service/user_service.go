package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vvukelic/ripple/internal/domain"
	"github.com/vvukelic/ripple/internal/repository"
	"golang.org/x/sync/errgroup"
)

type UserService struct {
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	images      ImageStore
}

func NewUserService(
	userRepo repository.UserRepository,
	messageRepo repository.MessageRepository,
	images ImageStore,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		messageRepo: messageRepo,
		images:      images,
	}
}

// Sidebar returns every other user with their last-seen timestamp and the
// number of their messages the viewer has not read yet. The unread counts
// are independent queries, so they run concurrently.
func (s *UserService) Sidebar(ctx context.Context, viewerID uuid.UUID) ([]domain.SidebarUser, error) {
	users, err := s.userRepo.ListOthers(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	contacts := make([]domain.SidebarUser, len(users))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, u := range users {
		g.Go(func() error {
			unread, err := s.messageRepo.CountUnread(ctx, u.ID, viewerID)
			if err != nil {
				return fmt.Errorf("counting unread from %s: %w", u.ID, err)
			}
			contacts[i] = domain.SidebarUser{User: u, UnreadCount: unread}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return contacts, nil
}

// UpdateAvatar uploads the encoded image and stores the resulting URL on
// the user's profile.
func (s *UserService) UpdateAvatar(ctx context.Context, userID uuid.UUID, image string) (*domain.User, error) {
	url, err := s.images.Upload(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("uploading avatar: %w", err)
	}

	user, err := s.userRepo.UpdateAvatar(ctx, userID, url)
	if err != nil {
		return nil, fmt.Errorf("updating avatar: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
