package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod is an HMAC JWT algorithm.
type SigningMethod string

const (
	HS256 SigningMethod = "HS256"
	HS384 SigningMethod = "HS384"
	HS512 SigningMethod = "HS512"
)

const defaultTokenTTL = 5 * time.Minute

// JWTConfig configures a supplier that mints a short-lived token per attempt.
type JWTConfig struct {
	Secret   string        `yaml:"secret" mapstructure:"secret" validate:"required"`
	Method   SigningMethod `yaml:"method" mapstructure:"method" validate:"omitempty,oneof=HS256 HS384 HS512"`
	Issuer   string        `yaml:"issuer" mapstructure:"issuer"`
	Subject  string        `yaml:"subject" mapstructure:"subject"`
	Audience []string      `yaml:"audience" mapstructure:"audience"`
	// TTL defaults to 5m.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl" validate:"gte=0"`
	// Claims are extra private claims copied into every token.
	Claims map[string]any `yaml:"claims" mapstructure:"claims"`
}

// ApplyDefaults fills in zero-value fields.
func (c *JWTConfig) ApplyDefaults() {
	if c.Method == "" {
		c.Method = HS256
	}
	if c.TTL <= 0 {
		c.TTL = defaultTokenTTL
	}
}

// Validate checks that the configuration can sign tokens.
func (c *JWTConfig) Validate() error {
	if c.Secret == "" {
		return errors.New("credential/jwt: secret is required")
	}
	if c.signingMethod() == nil {
		return fmt.Errorf("credential/jwt: unsupported method %q", c.Method)
	}
	return nil
}

func (c *JWTConfig) signingMethod() gojwt.SigningMethod {
	switch c.Method {
	case HS256:
		return gojwt.SigningMethodHS256
	case HS384:
		return gojwt.SigningMethodHS384
	case HS512:
		return gojwt.SigningMethodHS512
	default:
		return nil
	}
}

// JWT returns a supplier that signs a fresh token on every call. Each token
// carries a unique jti.
func JWT(cfg JWTConfig) (Supplier, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	method := cfg.signingMethod()
	key := []byte(cfg.Secret)
	now := time.Now

	return func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		issued := now()
		claims := gojwt.MapClaims{}
		for k, v := range cfg.Claims {
			claims[k] = v
		}
		claims["jti"] = uuid.NewString()
		claims["iat"] = gojwt.NewNumericDate(issued)
		claims["exp"] = gojwt.NewNumericDate(issued.Add(cfg.TTL))
		if cfg.Issuer != "" {
			claims["iss"] = cfg.Issuer
		}
		if cfg.Subject != "" {
			claims["sub"] = cfg.Subject
		}
		if len(cfg.Audience) > 0 {
			claims["aud"] = gojwt.ClaimStrings(cfg.Audience)
		}

		signed, err := gojwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			return "", fmt.Errorf("credential/jwt: sign token: %w", err)
		}
		return signed, nil
	}, nil
}
