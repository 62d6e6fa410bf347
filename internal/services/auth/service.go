package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcoot/tictactoe-live/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-live/internal/model"
)

// Errors
var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Claims is the signed body of a bearer token
type Claims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Config holds configuration for the auth service
type Config struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// DefaultConfig returns default auth configuration (without a secret)
func DefaultConfig() Config {
	return Config{
		Issuer:   "tictactoe-live",
		TokenTTL: 24 * time.Hour,
	}
}

// Service verifies and issues HS256 bearer tokens
type Service struct {
	clock  clock.Clock
	secret []byte
	issuer string
	ttl    time.Duration
}

// New creates a new auth Service
func New(clk clock.Clock, cfg Config) *Service {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = DefaultConfig().TokenTTL
	}
	return &Service{
		clock:  clk,
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TokenTTL,
	}
}

// Issue signs a token for identity
func (s *Service) Issue(identity model.Identity) (string, error) {
	if identity.IsZero() {
		return "", fmt.Errorf("issue token: %w", model.ErrPlayerNotFound)
	}
	now := s.clock.Now()
	claims := &Claims{
		UserID:   identity.UserID,
		Username: string(identity.Username),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   string(identity.Username),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks a token's signature, issuer and expiry and returns the bound identity.
// Fails closed: any problem yields ErrMissingToken or ErrInvalidToken.
func (s *Service) Verify(_ context.Context, token string) (model.Identity, error) {
	if token == "" {
		return model.Identity{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Username == "" {
		return model.Identity{}, ErrInvalidToken
	}

	return model.Identity{
		UserID:   claims.UserID,
		Username: model.Username(claims.Username),
	}, nil
}
