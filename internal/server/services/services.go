// Package services contains server-side business logic. Services own a
// *sql.DB and a RepositoryManager and bind repositories to either the pool
// or a transaction per call.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Mailer sends plain-text mail. A disabled mailer returns nil.
type Mailer interface {
	Send(ctx context.Context, subject, body string, recipients ...string) error
}

func validateEmail(field, email string) error {
	if err := validate.Var(email, "required,email,max=254"); err != nil {
		return common.NewValidationError(field, "must be a valid email address")
	}
	return nil
}

func validatePassword(field, password string) error {
	if utf8.RuneCountInString(password) < common.MinPasswordLength {
		return common.NewValidationError(field, fmt.Sprintf("must be at least %d characters", common.MinPasswordLength))
	}
	return nil
}

// requireText trims s and checks it is non-empty and at most max runes.
func requireText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", common.NewValidationError(field, "is required")
	}
	if utf8.RuneCountInString(s) > max {
		return "", common.NewValidationError(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return s, nil
}

func maxLength(field string, s *string, max int) error {
	if s != nil && utf8.RuneCountInString(*s) > max {
		return common.NewValidationError(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return nil
}

func optionalText(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrorNotFound)
}
