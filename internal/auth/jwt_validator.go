package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var errNoSubject = errors.New("auth: token has no subject")

// TokenValidator checks the registered claims of an access token.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
	// RequireSubject rejects tokens without a "sub" claim; orders are owned by subject.
	RequireSubject bool
}

// Validate checks alg against the configured algorithm, then the time window,
// issuer, audience and subject of tok as seen at now.
func (v TokenValidator) Validate(tok jwt.Token, alg jwa.SignatureAlgorithm, now time.Time) error {
	switch {
	case tok == nil:
		return errors.New("auth: token is nil")
	case alg == "":
		return errors.New("auth: token missing algorithm")
	case v.Algorithm != "" && alg != v.Algorithm:
		return fmt.Errorf("auth: unexpected token algorithm %s", alg)
	}
	if err := jwt.Validate(tok, v.claimChecks(now)...); err != nil {
		return err
	}
	if v.RequireSubject && strings.TrimSpace(tok.Subject()) == "" {
		return errNoSubject
	}
	return nil
}

func (v TokenValidator) claimChecks(now time.Time) []jwt.ValidateOption {
	checks := make([]jwt.ValidateOption, 0, 4)
	checks = append(checks, jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })))
	if v.ClockSkew > 0 {
		checks = append(checks, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		checks = append(checks, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		checks = append(checks, jwt.WithAudience(v.Audience))
	}
	return checks
}
