package policies

import (
	"errors"

	"carbonpay-backend/internal/constants"
	"carbonpay-backend/internal/domain"

	"gorm.io/gorm"
)

type ValidateRoleAssignmentParams struct {
	ActorUserID  string
	TargetUserID string
	TargetRole   string
}

// ValidateRoleAssignment checks an admin's role change and returns the target.
// Role changes never touch ledger identities, so holdings stay with the identity.
func ValidateRoleAssignment(db *gorm.DB, params ValidateRoleAssignmentParams) (*domain.User, error) {
	if !constants.IsValidRole(params.TargetRole) {
		return nil, ErrInvalidRole
	}
	if params.ActorUserID == params.TargetUserID {
		return nil, ErrUsersCannotModifyTheirOwnRole
	}
	target, err := findTarget(db, params.TargetUserID)
	if err != nil {
		return nil, err
	}
	if target.Role == constants.Admin && params.TargetRole != constants.Admin {
		if err := requireAnotherAdmin(db); err != nil {
			return nil, err
		}
	}
	return target, nil
}

// ValidateRemoval checks that actor may remove the target login.
func ValidateRemoval(db *gorm.DB, actorUserID, targetUserID string) (*domain.User, error) {
	if actorUserID == targetUserID {
		return nil, ErrUsersCannotRemoveThemselves
	}
	target, err := findTarget(db, targetUserID)
	if err != nil {
		return nil, err
	}
	if target.Role == constants.Admin {
		if err := requireAnotherAdmin(db); err != nil {
			return nil, err
		}
	}
	return target, nil
}

func findTarget(db *gorm.DB, userID string) (*domain.User, error) {
	var target domain.User
	if err := db.Where("user_id = ?", userID).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTargetUserNotFound
		}
		return nil, err
	}
	return &target, nil
}

func requireAnotherAdmin(db *gorm.DB) error {
	var count int64
	if err := db.Model(&domain.User{}).Where("role = ?", constants.Admin).Count(&count).Error; err != nil {
		return err
	}
	if count <= 1 {
		return ErrPlatformMustHaveAnAdmin
	}
	return nil
}
