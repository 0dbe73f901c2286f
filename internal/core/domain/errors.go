package domain

import (
	"errors"
	"fmt"
)

var (
	ErrBenefitNotFound = errors.New("benefit not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTemporary       = errors.New("temporary failure")

	// Structured query attempt failures. They never leave the synthesizer.
	ErrGeneration = errors.New("generation failed")
	ErrExtraction = errors.New("no query in model output")
	ErrValidation = errors.New("query rejected")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
