package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"audit-server/internal/pkg/apperror"
)

func notFoundOr(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func duplicateOr(err error, op string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.ErrDuplicateName
	}
	return fmt.Errorf("%s: %w", op, err)
}
