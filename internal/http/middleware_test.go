package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account-service/internal/auth"
	"account-service/internal/domain"
)

type lookupFunc func(ctx context.Context, id int64) (*domain.User, error)

func (f lookupFunc) Get(ctx context.Context, id int64) (*domain.User, error) {
	return f(ctx, id)
}

func authRouter(tokens TokenVerifier, users UserLookup, logger logrus.FieldLogger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/me", Authenticate(tokens, users, logger), func(c *gin.Context) {
		p, ok := auth.PrincipalFromContext(c.Request.Context())
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": p.User.ID})
	})
	return router
}

func TestAuthenticate_LookupFailure(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", time.Hour)
	token, _, err := tokens.Issue(1, "ann@x.com")
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	failing := lookupFunc(func(context.Context, int64) (*domain.User, error) {
		return nil, errors.New("database is locked")
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	authRouter(tokens, failing, logger).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, rec.Body.String())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Message, "database is locked")
}

func TestAuthenticate_AttachesPrincipal(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", time.Hour)
	token, _, err := tokens.Issue(7, "ann@x.com")
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	found := lookupFunc(func(_ context.Context, id int64) (*domain.User, error) {
		return &domain.User{ID: id, Email: "ann@x.com"}, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	authRouter(tokens, found, logger).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":7}`, rec.Body.String())
}
