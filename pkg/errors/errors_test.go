package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneMatchesOriginal(t *testing.T) {
	clone := Clone(ErrFinalized, "report already approved")
	assert.Equal(t, "report already approved", clone.Message)
	assert.Equal(t, "resource finalized", ErrFinalized.Message)
	assert.True(t, errors.Is(clone, ErrFinalized))
	assert.False(t, errors.Is(clone, ErrConflict))

	wrapped := fmt.Errorf("submit: %w", clone)
	assert.True(t, errors.Is(wrapped, ErrFinalized))
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	err := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Nil(t, FromError(nil))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusOf(nil))
	assert.Equal(t, http.StatusConflict, StatusOf(Clone(ErrFinalized, "")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
	assert.Equal(t, http.StatusBadRequest, StatusOf(Wrap(errors.New("bad"), ErrValidation.Code, ErrValidation.Status, "invalid")))
}
