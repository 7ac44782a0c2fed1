package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

var (
	ErrMissingSigningSecret = errors.New("signing secret must be provided")
	ErrMissingSubject       = errors.New("subject claim must be provided")
)

type TokenConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	Clock         func() time.Time
}

// TokenVerifier validates HS256 bearer tokens and yields the subject as the caller address.
type TokenVerifier struct {
	config TokenConfig
}

func NewTokenVerifier(cfg TokenConfig) *TokenVerifier {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &TokenVerifier{config: cfg}
}

func (v *TokenVerifier) Verify(raw string) (string, error) {
	if len(v.config.SigningSecret) == 0 {
		return "", ErrMissingSigningSecret
	}

	token, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	var claims jwt.Claims
	if err := token.Claims(v.config.SigningSecret, &claims); err != nil {
		return "", fmt.Errorf("verify token: %w", err)
	}

	expected := jwt.Expected{
		Issuer: v.config.Issuer,
		Time:   v.config.Clock(),
	}
	if v.config.Audience != "" {
		expected.AnyAudience = jwt.Audience{v.config.Audience}
	}
	if err := claims.ValidateWithLeeway(expected, time.Minute); err != nil {
		return "", err
	}

	if claims.Subject == "" {
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}

// Sign issues a token for subject; used by the CLI and tests.
func (v *TokenVerifier) Sign(subject string, ttl time.Duration) (string, error) {
	if len(v.config.SigningSecret) == 0 {
		return "", ErrMissingSigningSecret
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: v.config.SigningSecret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", err
	}

	now := v.config.Clock()
	claims := jwt.Claims{
		Subject:  subject,
		Issuer:   v.config.Issuer,
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(ttl)),
	}
	if v.config.Audience != "" {
		claims.Audience = jwt.Audience{v.config.Audience}
	}

	return jwt.Signed(signer).Claims(claims).Serialize()
}
