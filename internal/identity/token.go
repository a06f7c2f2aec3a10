package identity

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"graderservice/internal/errdefs"
	"graderservice/internal/model"
)

const leeway = 30 * time.Second

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenAuthenticator checks HS256 tokens signed with a shared secret.
type TokenAuthenticator struct {
	secret []byte
}

func NewTokenAuthenticator(secret string) *TokenAuthenticator {
	return &TokenAuthenticator{secret: []byte(secret)}
}

// Authenticate extracts the principal from r. Git clients send the token as
// the Basic auth password; other clients may use a Bearer header. With Basic
// auth the user name, when given, must match the token.
func (a *TokenAuthenticator) Authenticate(r *http.Request) (model.Principal, error) {
	if user, token, ok := r.BasicAuth(); ok {
		principal, err := a.Verify(token)
		if err != nil {
			return model.Principal{}, err
		}
		if user != "" && user != principal.Username {
			return model.Principal{}, fmt.Errorf(
				"identity: basic auth user %q does not match token: %w",
				user, errdefs.ErrAuthentication,
			)
		}
		return principal, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return model.Principal{}, fmt.Errorf("identity: no credentials: %w", errdefs.ErrAuthentication)
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return model.Principal{}, fmt.Errorf("identity: unsupported authorization scheme: %w", errdefs.ErrAuthentication)
	}
	return a.Verify(strings.TrimSpace(token))
}

func (a *TokenAuthenticator) Verify(token string) (model.Principal, error) {
	if token == "" {
		return model.Principal{}, fmt.Errorf("identity: empty token: %w", errdefs.ErrAuthentication)
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	)
	if err != nil {
		return model.Principal{}, fmt.Errorf("identity: invalid token: %v: %w", err, errdefs.ErrAuthentication)
	}

	username := claims.Username
	if username == "" {
		username = claims.Subject
	}
	if username == "" {
		return model.Principal{}, fmt.Errorf("identity: token has no username: %w", errdefs.ErrAuthentication)
	}
	return model.Principal{Username: username}, nil
}

// Issue signs a token for username valid for ttl.
func (a *TokenAuthenticator) Issue(username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
