package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tictactoe-live/internal/dependencies/mocks"
	"github.com/mcoot/tictactoe-live/internal/model"
)

type ServiceSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

var alice = model.Identity{UserID: 7, Username: "alice"}

func (s *ServiceSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.service = New(s.clock, Config{Secret: "test-secret", Issuer: "tictactoe-live", TokenTTL: time.Hour})
	s.ctx = context.Background()
}

func (s *ServiceSuite) TestIssuedTokenVerifies() {
	token, err := s.service.Issue(alice)
	s.Require().NoError(err)

	identity, err := s.service.Verify(s.ctx, token)
	s.Require().NoError(err)
	s.Equal(alice, identity)
}

func (s *ServiceSuite) TestEmptyTokenIsMissing() {
	_, err := s.service.Verify(s.ctx, "")
	s.ErrorIs(err, ErrMissingToken)
}

func (s *ServiceSuite) TestGarbageTokenIsInvalid() {
	_, err := s.service.Verify(s.ctx, "not-a-jwt")
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestExpiredTokenIsInvalid() {
	token, _ := s.service.Issue(alice)

	s.clock.Advance(2 * time.Hour)

	_, err := s.service.Verify(s.ctx, token)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestWrongSecretIsInvalid() {
	other := New(s.clock, Config{Secret: "other-secret", Issuer: "tictactoe-live"})
	token, _ := other.Issue(alice)

	_, err := s.service.Verify(s.ctx, token)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestWrongIssuerIsInvalid() {
	other := New(s.clock, Config{Secret: "test-secret", Issuer: "someone-else"})
	token, _ := other.Issue(alice)

	_, err := s.service.Verify(s.ctx, token)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestUnsignedTokenIsInvalid() {
	claims := &Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tictactoe-live",
			ExpiresAt: jwt.NewNumericDate(s.clock.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	s.Require().NoError(err)

	_, err = s.service.Verify(s.ctx, token)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestTokenWithoutUsernameIsInvalid() {
	claims := &Claims{
		UserID: 3,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tictactoe-live",
			ExpiresAt: jwt.NewNumericDate(s.clock.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	s.Require().NoError(err)

	_, err = s.service.Verify(s.ctx, token)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestIssueRejectsZeroIdentity() {
	_, err := s.service.Issue(model.Identity{})
	s.Error(err)
}
