package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/be-procurement-requests/internal/domain"
	apperrors "github.com/harborline/be-procurement-requests/internal/errors"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.InvalidInput("quantity", "must be at least 1"), http.StatusBadRequest},
		{"unauthorized", apperrors.New(apperrors.ErrCodeUnauthorized, "wrong role"), http.StatusForbidden},
		{"invalid transition", apperrors.New(apperrors.ErrCodeInvalidTransition, "terminal"), http.StatusConflict},
		{"conflict", apperrors.New(apperrors.ErrCodeConflict, "stale version"), http.StatusConflict},
		{"not found", apperrors.NotFound("request", "r-1"), http.StatusNotFound},
		{"internal", apperrors.New(apperrors.ErrCodeInternal, "boom"), http.StatusInternalServerError},
		{"uncoded", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}

func TestSessionFromHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/badges", nil)
	r.Header.Set("X-User-Id", "u-1")
	r.Header.Set("X-User-Name", "Ada")
	r.Header.Set("X-User-Role", "finance_manager")

	sess, err := sessionFromHeaders(r)
	require.NoError(t, err)
	assert.Equal(t, domain.Session{UserID: "u-1", DisplayName: "Ada", Role: domain.RoleFinanceManager}, sess)
}

func TestSessionFromHeadersMissingUser(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/badges", nil)
	r.Header.Set("X-User-Role", "finance_manager")

	_, err := sessionFromHeaders(r)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnauthorized))
}

func TestSessionFromHeadersUnknownRole(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/badges", nil)
	r.Header.Set("X-User-Id", "u-1")
	r.Header.Set("X-User-Role", "intern")

	_, err := sessionFromHeaders(r)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnauthorized))
}
