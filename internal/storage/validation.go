// Package storage persists the sync marker: the legId of the last transaction
// pushed to the ledger.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrInvalidLegID = errors.New("invalid leg id")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateLegID ensures a marker survives the one-line, whitespace-trimmed file format.
func validateLegID(legID string) error {
	if err := validateString(legID, "legID"); err != nil {
		return err
	}
	if strings.TrimSpace(legID) != legID || strings.ContainsAny(legID, "\r\n") {
		return fmt.Errorf("%w: %q contains whitespace or line breaks", ErrInvalidLegID, legID)
	}
	return nil
}
