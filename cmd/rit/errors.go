package main

import (
	"errors"
	"fmt"

	"github.com/odvcencio/rit/pkg/repo"
)

const (
	exitFailure       = 1
	exitInput         = 2
	exitNoRepository  = 3
	exitAlreadyExists = 4
)

// inputError marks a payload source that could not be read.
type inputError struct {
	source string
	err    error
}

func (e *inputError) Error() string {
	return fmt.Sprintf("read %s: %v", e.source, e.err)
}

func (e *inputError) Unwrap() error {
	return e.err
}

func exitCode(err error) int {
	var inErr *inputError
	switch {
	case errors.As(err, &inErr):
		return exitInput
	case errors.Is(err, repo.ErrNotFound):
		return exitNoRepository
	case errors.Is(err, repo.ErrAlreadyExists):
		return exitAlreadyExists
	}
	return exitFailure
}
