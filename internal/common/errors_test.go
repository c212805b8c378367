package common

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError(t *testing.T) {
	var err error = &ValidationError{Message: "Invalid email"}

	if err.Error() != "Invalid email" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatal("ValidationError must match ErrValidation")
	}

	wrapped := fmt.Errorf("signup: %w", err)
	var ve *ValidationError
	if !errors.As(wrapped, &ve) || ve.Message != "Invalid email" {
		t.Fatalf("errors.As failed: %v", wrapped)
	}
}
