package policies

import "errors"

var (
	ErrInvalidRole                   = errors.New("Invalid role")
	ErrTargetUserNotFound            = errors.New("Target user not found")
	ErrUsersCannotModifyTheirOwnRole = errors.New("Users cannot modify their own role")
	ErrUsersCannotRemoveThemselves   = errors.New("Users cannot remove themselves")
	ErrPlatformMustHaveAnAdmin       = errors.New("The platform must keep at least one admin")
)
