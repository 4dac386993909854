package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAmbiguousQuery is not a failure: the pipeline resolves it by
	// returning a clarification prompt instead of an answer.
	ErrAmbiguousQuery = errors.New("ambiguous query")

	// ErrInsufficientEvidence is the "No Retrieval, No Answer" outcome.
	ErrInsufficientEvidence = errors.New("insufficient evidence")

	ErrGenerationUnavailable = errors.New("generation unavailable")
	ErrVerificationGutted    = errors.New("verification removed all content")
	ErrPolicyViolation       = errors.New("policy violation")
	ErrUpstreamSearch        = errors.New("search backend failure")

	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")
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
