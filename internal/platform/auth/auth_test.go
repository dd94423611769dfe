package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	require.NoError(t, Config{Mode: ModeDisabled}.Validate())
	require.Error(t, Config{Mode: ModeToken}.Validate())
	require.NoError(t, Config{Mode: ModeToken, StaticToken: "s3cret"}.Validate())
	require.Error(t, Config{Mode: ModeOIDC}.Validate())
	require.Error(t, Config{Mode: Mode("bogus")}.Validate())
}

func TestStaticTokenAuthenticator(t *testing.T) {
	a, err := NewStaticTokenAuthenticator(Config{Mode: ModeToken, StaticToken: "s3cret"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/generate", nil)
	_, err = a.Authenticate(req.Context(), req)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	req.Header.Set("Authorization", "Bearer wrong")
	_, err = a.Authenticate(req.Context(), req)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	req.Header.Set("Authorization", "Bearer s3cret")
	id, err := a.Authenticate(req.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, "token-client", id.Subject)
}

func TestMiddleware(t *testing.T) {
	a, err := NewStaticTokenAuthenticator(Config{Mode: ModeToken, StaticToken: "s3cret"})
	require.NoError(t, err)

	var sawIdentity bool
	handler := Middleware{Authenticator: a}.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawIdentity = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, sawIdentity)

	req := httptest.NewRequest(http.MethodPost, "/generate", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, sawIdentity)
}
