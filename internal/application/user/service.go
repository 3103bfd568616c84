package user

import (
	"context"
	"errors"
	"strings"
	"unicode"

	policies "carbonpay-backend/internal/application/policies/user"
	"carbonpay-backend/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrMissingUserID = errors.New("Missing user ID")
	ErrUserNotFound  = errors.New("User not found")
	ErrNoUpdates     = errors.New("No valid fields to update")
)

// Service holds DB and Redis for user administration.
type Service struct {
	DB  *gorm.DB
	Rdb *redis.Client
}

// ListUsers returns logins ordered by email, optionally only one role.
func (s *Service) ListUsers(ctx context.Context, role string) ([]domain.User, error) {
	q := s.DB.WithContext(ctx).Order("email ASC")
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var out []domain.User
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ViewUser returns user by ID.
func (s *Service) ViewUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	var u domain.User
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpdateFullname renames the caller. The name is title-cased with inner whitespace collapsed.
func (s *Service) UpdateFullname(ctx context.Context, userID, fullname string) (*domain.User, error) {
	name := titleCaseAndNormalize(fullname)
	if name == "" {
		return nil, ErrNoUpdates
	}
	result := s.DB.WithContext(ctx).Model(&domain.User{}).Where("user_id = ?", userID).Update("fullname", name)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return s.ViewUser(ctx, userID)
}

type UpdateUserRoleInput struct {
	ActorUserID  string
	TargetUserID string
	TargetRole   string
}

// UpdateUserRole changes the target's role after the policy check and ends the
// target's sessions so the new role applies at next login.
func (s *Service) UpdateUserRole(ctx context.Context, in UpdateUserRoleInput) (*domain.User, error) {
	db := s.DB.WithContext(ctx)
	target, err := policies.ValidateRoleAssignment(db, policies.ValidateRoleAssignmentParams{
		ActorUserID:  in.ActorUserID,
		TargetUserID: in.TargetUserID,
		TargetRole:   in.TargetRole,
	})
	if err != nil {
		return nil, err
	}
	if err := db.Model(target).Update("role", in.TargetRole).Error; err != nil {
		return nil, err
	}
	target.Role = in.TargetRole
	policies.DestroyUserSessions(ctx, s.Rdb, in.TargetUserID)
	log.Info().Str("actor", in.ActorUserID).Str("target", in.TargetUserID).Str("role", in.TargetRole).Msg("user role updated")
	return target, nil
}

// RemoveUser soft-deletes the target login and ends its sessions. Ledger
// records owned by the target's identity are untouched.
func (s *Service) RemoveUser(ctx context.Context, actorUserID, targetUserID string) error {
	db := s.DB.WithContext(ctx)
	target, err := policies.ValidateRemoval(db, actorUserID, targetUserID)
	if err != nil {
		return err
	}
	if err := db.Delete(target).Error; err != nil {
		return err
	}
	policies.DestroyUserSessions(ctx, s.Rdb, targetUserID)
	log.Info().Str("actor", actorUserID).Str("target", targetUserID).Msg("user removed")
	return nil
}

func titleCaseAndNormalize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var b strings.Builder
	capitalize := true
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !capitalize {
				b.WriteRune(' ')
				capitalize = true
			}
			continue
		}
		if capitalize {
			b.WriteRune(unicode.ToUpper(r))
			capitalize = false
		} else {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
