package validation

import (
	"regexp"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// Check is one step of a validation pipeline. It returns nil when the step passes.
type Check func() error

// Run executes checks in order and returns the first failure. Nothing after a
// failing check runs, so later checks may rely on earlier ones having passed.
func Run(checks ...Check) error {
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// Require fails with err when ok is false. ok is evaluated when Require is called;
// use a plain Check closure when the condition depends on an earlier step.
func Require(ok bool, err error) Check {
	return func() error {
		if !ok {
			return err
		}
		return nil
	}
}

// MaxBytes fails with err when s is longer than limit bytes.
func MaxBytes(s string, limit int, err error) Check {
	return Require(len(s) <= limit, err)
}

// Present fails with err when s is empty.
func Present(s string, err error) Check {
	return Require(s != "", err)
}
