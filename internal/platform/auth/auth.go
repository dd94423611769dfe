package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/afrojuju1/hyperlocal/internal/platform/env"
)

type Mode string

const (
	ModeOIDC     Mode = "oidc"
	ModeToken    Mode = "token"
	ModeDisabled Mode = "disabled"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Identity struct {
	Subject string
	Email   string
}

type Config struct {
	Mode Mode

	OIDCIssuerURL string
	OIDCClientID  string

	StaticToken string
}

func ConfigFromEnv() (Config, error) {
	modeRaw := strings.ToLower(strings.TrimSpace(env.String("AUTH_MODE", string(ModeDisabled))))
	var mode Mode
	switch modeRaw {
	case string(ModeOIDC):
		mode = ModeOIDC
	case string(ModeToken):
		mode = ModeToken
	case string(ModeDisabled):
		mode = ModeDisabled
	default:
		return Config{}, fmt.Errorf("AUTH_MODE must be one of: oidc, token, disabled (got %q)", modeRaw)
	}

	cfg := Config{
		Mode:          mode,
		OIDCIssuerURL: env.String("OIDC_ISSUER_URL", ""),
		OIDCClientID:  env.String("OIDC_CLIENT_ID", ""),
		StaticToken:   env.String("AUTH_STATIC_TOKEN", ""),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeOIDC:
		if strings.TrimSpace(c.OIDCIssuerURL) == "" {
			return errors.New("OIDC_ISSUER_URL is required when AUTH_MODE=oidc")
		}
		if strings.TrimSpace(c.OIDCClientID) == "" {
			return errors.New("OIDC_CLIENT_ID is required when AUTH_MODE=oidc")
		}
	case ModeToken:
		if strings.TrimSpace(c.StaticToken) == "" {
			return errors.New("AUTH_STATIC_TOKEN is required when AUTH_MODE=token")
		}
	case ModeDisabled:
	default:
		return fmt.Errorf("unsupported auth mode: %q", c.Mode)
	}
	return nil
}

type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (Identity, error)
}

// StaticTokenAuthenticator matches a single pre-shared bearer token.
type StaticTokenAuthenticator struct {
	Token string
}

func NewStaticTokenAuthenticator(cfg Config) (*StaticTokenAuthenticator, error) {
	if strings.TrimSpace(cfg.StaticToken) == "" {
		return nil, errors.New("static token is required")
	}
	return &StaticTokenAuthenticator{Token: cfg.StaticToken}, nil
}

func (a *StaticTokenAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	token, err := bearerToken(r)
	if err != nil {
		return Identity{}, err
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.Token)) != 1 {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{Subject: "token-client"}, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrUnauthenticated
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrUnauthenticated
	}
	return strings.TrimSpace(header[len(prefix):]), nil
}

type ctxKeyIdentity struct{}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxKeyIdentity{}).(Identity)
	return v, ok
}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, id)
}

type Middleware struct {
	Logger        *slog.Logger
	Authenticator Authenticator
}

func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.Authenticator.Authenticate(r.Context(), r)
		if err != nil {
			if m.Logger != nil && !errors.Is(err, ErrUnauthenticated) {
				m.Logger.Warn("authentication failed", "error", err)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}
