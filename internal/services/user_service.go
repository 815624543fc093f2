package services

import (
	"context"
	"strings"
	"time"

	"cosmic-chat/internal/domain/user"
	"cosmic-chat/internal/redis"
	"cosmic-chat/internal/repository"
	"cosmic-chat/pkg/logger"

	"github.com/google/uuid"
)

type UserService struct {
	userRepo repository.UserRepository
	cache    *redis.CacheStore
	log      *logger.Logger
}

func NewUserService(userRepo repository.UserRepository, cache *redis.CacheStore, log *logger.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		cache:    cache,
		log:      log,
	}
}

// GetSnapshot serves the public profile subset, cache first. Cache
// failures degrade to a repository read.
func (s *UserService) GetSnapshot(ctx context.Context, id uuid.UUID) (user.Snapshot, error) {
	if s.cache != nil {
		snap, err := s.cache.GetUser(ctx, id)
		if err != nil {
			s.log.ErrorfCtx(ctx, "user cache read failed: %v", err)
		} else if snap != nil {
			return *snap, nil
		}
	}

	u, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return user.Snapshot{}, err
	}

	snap := u.Snapshot()
	if s.cache != nil {
		if err := s.cache.SetUser(ctx, snap); err != nil {
			s.log.ErrorfCtx(ctx, "user cache write failed: %v", err)
		}
	}
	return snap, nil
}

// UpdateProfile changes the caller's display fields and invalidates
// the cached snapshot. Empty arguments leave the field untouched.
func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, name, avatarURL string) (user.Snapshot, error) {
	name = strings.TrimSpace(name)

	u, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return user.Snapshot{}, err
	}
	if name != "" {
		u.Name = name
	}
	if avatarURL != "" {
		u.AvatarURL = avatarURL
	}
	u.UpdatedAt = time.Now().UTC()

	if err := s.userRepo.UpdateUser(ctx, u); err != nil {
		return user.Snapshot{}, err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateUser(ctx, u.ID); err != nil {
			s.log.ErrorfCtx(ctx, "user cache invalidate failed: %v", err)
		}
	}
	return u.Snapshot(), nil
}

func (s *UserService) SetOnline(ctx context.Context, id uuid.UUID, online bool) error {
	return s.userRepo.UpdateOnlineStatus(ctx, id, online)
}
