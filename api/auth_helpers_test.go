package api

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/aerobound/internal/auth"
	"github.com/Domenick1991/aerobound/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "secret"

// anyUser resolves every id to an account with that id.
type anyUser struct{}

func (anyUser) Get(_ context.Context, id uuid.UUID) (*domain.User, error) {
	return &domain.User{ID: id, Email: "jane@example.com"}, nil
}

func requireAuth() gin.HandlerFunc {
	return auth.Middleware(testSecret, anyUser{})
}

func bearer(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := auth.IssueToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

// signIn authenticates c.Request as userID by running it through the auth middleware.
func signIn(t *testing.T, c *gin.Context, userID uuid.UUID) {
	t.Helper()
	c.Request.Header.Set("Authorization", bearer(t, userID))
	requireAuth()(c)
	require.False(t, c.IsAborted())
}
