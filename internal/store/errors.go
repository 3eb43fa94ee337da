package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// Storage error kinds. Every failure returned by Store wraps exactly one of them.
var (
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrForeignKeyViolation = errors.New("foreign key violation")
	ErrNotFound            = errors.New("not found")
)

// Violations maps a field name to the rule it broke
type Violations map[string]string

// Empty reports whether no rule was broken
func (v Violations) Empty() bool { return len(v) == 0 }

// ValidationError is returned before any write when input is malformed
type ValidationError struct {
	Entity     string
	Violations Violations
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f := range e.Violations {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e.Violations[f])
	}
	return fmt.Sprintf("invalid %s (%s)", e.Entity, strings.Join(parts, ", "))
}

// Is makes errors.Is(err, ErrValidation) match
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// translate maps driver and gorm errors onto the store error kinds
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", ErrForeignKeyViolation, err)
	}
	return err
}
