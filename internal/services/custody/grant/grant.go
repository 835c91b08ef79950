// Package grant issues and verifies actor grants: short-lived EdDSA JWTs that
// carry the authenticated user id and privilege at the transport boundary.
package grant

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/custody/internal/platform/errors"
	"github.com/louisbranch/custody/internal/platform/id"
	"github.com/louisbranch/custody/internal/services/custody/domain"
)

const (
	// EnvIssuer names the expected grant issuer.
	EnvIssuer = "CUSTODY_GRANT_ISSUER"
	// EnvAudience names the expected grant audience.
	EnvAudience = "CUSTODY_GRANT_AUDIENCE"
	// EnvPublicKey holds the base64 Ed25519 verification key.
	EnvPublicKey = "CUSTODY_GRANT_PUBLIC_KEY"
	// EnvPrivateKey holds the base64 Ed25519 signing key.
	EnvPrivateKey = "CUSTODY_GRANT_PRIVATE_KEY"
)

// DefaultTTL is the lifetime of an issued grant when none is requested.
const DefaultTTL = 12 * time.Hour

// verifierEnv holds raw env values before post-parse validation.
type verifierEnv struct {
	Issuer    string `env:"CUSTODY_GRANT_ISSUER"`
	Audience  string `env:"CUSTODY_GRANT_AUDIENCE"`
	PublicKey string `env:"CUSTODY_GRANT_PUBLIC_KEY"`
}

// signerEnv holds raw env values before post-parse validation.
type signerEnv struct {
	Issuer     string `env:"CUSTODY_GRANT_ISSUER"`
	Audience   string `env:"CUSTODY_GRANT_AUDIENCE"`
	PrivateKey string `env:"CUSTODY_GRANT_PRIVATE_KEY"`
}

// VerifierConfig defines how grants are verified.
type VerifierConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// SignerConfig defines how grants are signed.
type SignerConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PrivateKey
	Now      func() time.Time
}

// Claims captures validated grant claims.
type Claims struct {
	Actor     domain.Actor
	Issuer    string
	ExpiresAt time.Time
	IssuedAt  time.Time
	JWTID     string
}

// actorClaims is the claims type used for JWT encoding and parsing.
type actorClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// LoadVerifierConfigFromEnv reads grant verification configuration.
func LoadVerifierConfigFromEnv(now func() time.Time) (VerifierConfig, error) {
	var raw verifierEnv
	if err := env.Parse(&raw); err != nil {
		return VerifierConfig{}, fmt.Errorf("parse grant env: %w", err)
	}
	issuer, audience, err := requireIssuerAudience(raw.Issuer, raw.Audience)
	if err != nil {
		return VerifierConfig{}, err
	}
	keyBytes, err := decodeKey(raw.PublicKey, EnvPublicKey, ed25519.PublicKeySize)
	if err != nil {
		return VerifierConfig{}, err
	}
	if now == nil {
		now = time.Now
	}
	return VerifierConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// LoadSignerConfigFromEnv reads grant signing configuration.
func LoadSignerConfigFromEnv(now func() time.Time) (SignerConfig, error) {
	var raw signerEnv
	if err := env.Parse(&raw); err != nil {
		return SignerConfig{}, fmt.Errorf("parse grant env: %w", err)
	}
	issuer, audience, err := requireIssuerAudience(raw.Issuer, raw.Audience)
	if err != nil {
		return SignerConfig{}, err
	}
	keyBytes, err := decodeKey(raw.PrivateKey, EnvPrivateKey, ed25519.PrivateKeySize)
	if err != nil {
		return SignerConfig{}, err
	}
	if now == nil {
		now = time.Now
	}
	return SignerConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PrivateKey(keyBytes),
		Now:      now,
	}, nil
}

func requireIssuerAudience(issuer, audience string) (string, string, error) {
	issuer = strings.TrimSpace(issuer)
	audience = strings.TrimSpace(audience)
	if issuer == "" {
		return "", "", fmt.Errorf("%s is required", EnvIssuer)
	}
	if audience == "" {
		return "", "", fmt.Errorf("%s is required", EnvAudience)
	}
	return issuer, audience, nil
}

func decodeKey(value, name string, size int) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%s is required", name)
	}
	keyBytes, err := decodeBase64(value)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if len(keyBytes) != size {
		return nil, fmt.Errorf("%s must be %d bytes", name, size)
	}
	return keyBytes, nil
}

// Issue signs a grant for actor valid for ttl.
func Issue(cfg SignerConfig, actor domain.Actor, ttl time.Duration) (string, error) {
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PrivateKeySize {
		return "", errors.New("grant signer is not configured")
	}
	if err := actor.Validate(); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	jti, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("generate grant id: %w", err)
	}

	now := cfg.Now().UTC()
	claims := actorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
		UserID: actor.ID,
		Role:   string(actor.Privilege),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(cfg.Key)
	if err != nil {
		return "", fmt.Errorf("sign grant: %w", err)
	}
	return token, nil
}

// Validate verifies a grant and returns the actor it carries.
func Validate(grant string, cfg VerifierConfig) (Claims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "grant is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return Claims{}, errors.New("grant verifier is not configured")
	}

	var parsed actorClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeGrantMismatch,
			"grant issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeGrantMismatch,
			"grant audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "grant exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeGrantExpired, "grant is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time.UTC()) {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "grant not active yet")
	}

	privilege, ok := domain.ParsePrivilege(parsed.Role)
	if !ok {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeGrantInvalid,
			"grant role is invalid",
			map[string]string{"Field": "role"},
		)
	}
	actor := domain.Actor{ID: strings.TrimSpace(parsed.UserID), Privilege: privilege}
	if actor.ID == "" {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeGrantInvalid,
			"grant user is required",
			map[string]string{"Field": "user_id"},
		)
	}

	claims := Claims{
		Actor:     actor,
		Issuer:    parsed.Issuer,
		ExpiresAt: exp,
		JWTID:     parsed.ID,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeGrantInvalid, "grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeGrantInvalid, "grant alg is invalid")
	}
	return apperrors.New(apperrors.CodeGrantInvalid, "grant is invalid")
}

func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

// EncodeKey renders a key the way the env loaders expect it.
func EncodeKey(key []byte) string {
	return base64.RawStdEncoding.EncodeToString(key)
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
