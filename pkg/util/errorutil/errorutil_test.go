package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"domain error passes through", NewPermissionDenied("nope"), CodePermissionDenied, http.StatusForbidden},
		{"wrapped domain error", fmt.Errorf("ctx: %w", NewStaleState("A", "B")), CodeStaleState, http.StatusConflict},
		{"no rows", pgx.ErrNoRows, CodeNotFound, http.StatusNotFound},
		{"unknown error", errors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := ToDomainError(tt.err)
			require.NotNil(t, de)
			assert.Equal(t, tt.wantCode, de.Code)
			assert.Equal(t, tt.wantStatus, de.HTTPStatus)
		})
	}

	assert.Nil(t, ToDomainError(nil))
}

func TestMissingFieldSortsFields(t *testing.T) {
	err := NewMissingField("time", "date", "comment")
	de := ToDomainError(err)
	assert.Equal(t, CodeMissingField, de.Code)
	assert.Equal(t, []string{"comment", "date", "time"}, de.Details["fields"])
}

func TestTransitionFailedHidesCause(t *testing.T) {
	cause := errors.New("pq: relation damages does not exist")
	de := ToDomainError(NewTransitionFailed(cause))
	assert.Equal(t, CodeTransitionFailed, de.Code)
	assert.Equal(t, "transition could not be applied", de.Message)
	assert.ErrorIs(t, de, cause)
}

func TestHasCode(t *testing.T) {
	assert.True(t, HasCode(NewDuplicateOffer("t", "c"), CodeDuplicateOffer))
	assert.False(t, HasCode(NewDuplicateOffer("t", "c"), CodeStaleState))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
}
