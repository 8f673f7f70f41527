package store

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/legit-games/user-registry/errors"
	"gorm.io/gorm"
)

// mapErr translates driver errors into the service error taxonomy. Anything unrecognised
// means the database is unusable and maps to ErrSystemFailure.
func mapErr(what string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s not found: %w", what, errors.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s already exists: %w", what, errors.ErrConflict)
	}
	return fmt.Errorf("%s: %w: %w", what, errors.ErrSystemFailure, err)
}

func isUniqueViolation(err error) bool {
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
