package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrAlreadyExists      = errors.New("already exists")
	ErrNotFound           = errors.New("not found")
	ErrHasDependents      = errors.New("has dependents")
	ErrDatabaseQuery      = errors.New("database query failed")
	ErrDatabaseConnection = errors.New("database connection failed")
)

func NewNotFound(entity string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusNotFound,
		err:        fmt.Errorf("%s %w", entity, ErrNotFound),
	}
}

// NewResourceNotFound reports a missing resource addressed by its identifier.
func NewResourceNotFound(resource string, identifier uint) *ApiErr {
	return NewNotFound(fmt.Sprintf("%s %d", resource, identifier))
}

// NewReferenceNotFound reports an identifier or name in a write payload that does not resolve.
func NewReferenceNotFound(field, target, reference string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusNotFound,
		err:        fmt.Errorf("%s %q %w", target, reference, ErrNotFound),
		Details:    fmt.Sprintf("referenced by %s", field),
		Field:      field,
	}
}

// NewDuplicateResourceError reports a second resource with an already used
// (platform, platform_identifier) pair.
func NewDuplicateResourceError(resource, platform, platformIdentifier string, existing uint) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusConflict,
		err:        fmt.Errorf("%s %w", resource, ErrAlreadyExists),
		Details: fmt.Sprintf(
			"There already exists a %s with the same platform and platform_identifier (%s, %s), with identifier=%d.",
			resource, platform, platformIdentifier, existing,
		),
		Field: "platform_identifier",
		Meta:  map[string]any{"identifier": existing},
	}
}

// NewDependencyConflictError reports a delete that would leave dangling references.
func NewDependencyConflictError(resource string, identifier uint, relationship string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusConflict,
		err:        fmt.Errorf("%s %d %w", resource, identifier, ErrHasDependents),
		Details:    fmt.Sprintf("%s %d cannot be deleted: it is still referenced through %s", resource, identifier, relationship),
	}
}

// NewDatabaseError creates a new database error with details about the operation
func NewDatabaseError(operation, entity string, cause error) *ApiErr {
	var apiErr *ApiErr
	if errors.As(cause, &apiErr) {
		return apiErr
	}

	details := fmt.Sprintf("Failed to %s %s", operation, entity)

	// Check for common database errors and provide more specific messages
	if cause != nil {
		errStr := cause.Error()
		switch {
		case errors.Is(cause, gorm.ErrDuplicatedKey),
			strings.Contains(errStr, "duplicate key"), strings.Contains(errStr, "UNIQUE constraint failed"):
			return &ApiErr{
				StatusCode: http.StatusConflict,
				err:        fmt.Errorf("%s %w", entity, ErrAlreadyExists),
				Details:    details,
				Cause:      cause,
			}
		case errors.Is(cause, gorm.ErrForeignKeyViolated),
			strings.Contains(errStr, "foreign key constraint"), strings.Contains(errStr, "FOREIGN KEY constraint failed"):
			return &ApiErr{
				StatusCode: http.StatusConflict,
				err:        fmt.Errorf("%s %w", entity, ErrHasDependents),
				Details:    "The resource is still referenced or references a missing resource",
				Cause:      cause,
			}
		case errors.Is(cause, gorm.ErrRecordNotFound):
			return &ApiErr{
				StatusCode: http.StatusNotFound,
				err:        fmt.Errorf("%s %w", entity, ErrNotFound),
				Details:    details,
				Cause:      cause,
			}
		case strings.Contains(errStr, "connection"):
			return &ApiErr{
				StatusCode: http.StatusServiceUnavailable,
				err:        ErrDatabaseConnection,
				Details:    "Unable to connect to database",
				Cause:      cause,
			}
		}
	}

	// Generic database error
	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        ErrDatabaseQuery,
		Details:    details,
		Cause:      cause,
	}
}
