package core

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"klose3xpay/internal/types"
)

// Validator wraps go-playground/validator for request payload validation and
// translates validation failures into AppErrors the response layer understands.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{
		validate: validator.New(),
		logger:   logger,
	}
}

// Struct validates a request struct against its validate tags. On failure it
// returns a *types.AppError (400) listing the offending fields in Details.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError: the caller passed a non-struct.
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"request validation failed",
			err,
		)
	}

	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"request failed validation",
		err,
		map[string]any{"fields": fields},
	)
}
