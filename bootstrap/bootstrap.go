package bootstrap

import (
	"errors"

	authsvc "carbonpay-backend/internal/application/auth"
	"carbonpay-backend/internal/config"
	"carbonpay-backend/internal/constants"
	"carbonpay-backend/internal/domain"
	"carbonpay-backend/internal/interfaces/router"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// New creates the Fiber app for serverless hosts (the api handler imports this package, not internal).
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	app, db, _, err := router.CreateApp(cfg)
	if err != nil {
		return nil, err
	}
	if err := EnsureAdmin(db, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
		return nil, err
	}
	return app, nil
}

// EnsureAdmin creates the first admin login when email and password are set and
// no user with that email exists yet. Admins cannot self-register.
func EnsureAdmin(db *gorm.DB, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	u, err := authsvc.CreateUser(db, authsvc.CreateUserInput{
		Fullname: "Administrator",
		Email:    email,
		Password: password,
		Role:     constants.Admin,
	})
	if errors.Is(err, authsvc.ErrEmailTaken) {
		return nil
	}
	if err != nil {
		return err
	}
	log.Info().Str("email", u.Email).Str("identity", u.Identity).Msg("bootstrap admin created")
	return nil
}

// AdminExists reports whether any admin login is present.
func AdminExists(db *gorm.DB) (bool, error) {
	var count int64
	if err := db.Model(&domain.User{}).Where("role = ?", constants.Admin).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
