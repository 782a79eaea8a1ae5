package storage

import (
	"context"
	"errors"
	"fmt"

	"rallymatch/backend/internal/common"

	"gorm.io/gorm"
)

// mapErr translates gorm/driver errors into the common taxonomy.
func mapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, common.ErrNotFound):
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, common.ErrAlreadyExists):
		return fmt.Errorf("%s: %w", op, common.ErrAlreadyExists)
	case errors.Is(err, gorm.ErrCheckConstraintViolated), errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%s: %w: %v", op, common.ErrInvalidArgument, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return common.Unavailable(op, err)
	}
}
