package auth

import "errors"

var (
	ErrEmailPasswordRequired = errors.New("Email and password are required")
	ErrInvalidEmail          = errors.New("Invalid Email")
	ErrIncorrectPassword     = errors.New("Incorrect Password")
	ErrNotAuthenticated      = errors.New("Not authenticated")
	ErrInvalidRole           = errors.New("Invalid role")
	ErrEmailTaken            = errors.New("Email is already registered")
	ErrPasswordTooShort      = errors.New("Password must be at least 8 characters")
)
