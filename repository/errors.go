package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"droppers-api/apperr"
)

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// translate maps driver errors onto application kinds. what names the entity for NotFound.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.New(apperr.NotFound, what+" not found")
	default:
		return apperr.Wrap(apperr.Internal, "database error", err)
	}
}
