package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestNewDatabaseError(t *testing.T) {
	tests := []struct {
		name   string
		cause  error
		status int
		is     func(error) bool
	}{
		{"translated duplicate", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), http.StatusConflict, IsConflict},
		{"postgres duplicate", errors.New(`duplicate key value violates unique constraint "dataset_pkey"`), http.StatusConflict, IsConflict},
		{"translated foreign key", gorm.ErrForeignKeyViolated, http.StatusConflict, IsConflict},
		{"not found", gorm.ErrRecordNotFound, http.StatusNotFound, IsNotFound},
		{"other", errors.New("syntax error"), http.StatusInternalServerError, func(err error) bool { return errors.Is(err, ErrDatabaseQuery) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDatabaseError("create", "dataset", tt.cause)
			assert.Equal(t, tt.status, err.StatusCode)
			assert.True(t, tt.is(err))
			assert.Equal(t, tt.cause, err.Cause)
		})
	}
}

func TestNewDatabaseError_KeepsApiErr(t *testing.T) {
	existing := NewDuplicateResourceError("dataset", "zenodo", "1", 7)
	err := NewDatabaseError("create", "dataset", fmt.Errorf("tx: %w", existing))
	assert.Same(t, existing, err)
	assert.Equal(t, uint(7), err.Meta["identifier"])
}
