package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

type claimSet struct {
	issuer    string
	subject   string
	notBefore time.Duration
	expiresIn time.Duration
}

func buildToken(t *testing.T, now time.Time, c claimSet) jwt.Token {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer(c.issuer).
		Audience([]string{"checkout-api"}).
		IssuedAt(now).
		NotBefore(now.Add(c.notBefore)).
		Expiration(now.Add(c.expiresIn))
	if c.subject != "" {
		b = b.Subject(c.subject)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	return tok
}

func TestTokenValidator(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	valid := claimSet{issuer: "checkout", subject: "42", expiresIn: time.Minute}
	base := TokenValidator{Issuer: "checkout", Audience: "checkout-api", ClockSkew: time.Second, Algorithm: jwa.HS256, RequireSubject: true}

	cases := []struct {
		name    string
		claims  claimSet
		alg     jwa.SignatureAlgorithm
		wantErr bool
	}{
		{name: "valid", claims: valid, alg: jwa.HS256},
		{name: "foreign issuer", claims: claimSet{issuer: "other", subject: "42", expiresIn: time.Minute}, alg: jwa.HS256, wantErr: true},
		{name: "expired", claims: claimSet{issuer: "checkout", subject: "42", expiresIn: -time.Minute}, alg: jwa.HS256, wantErr: true},
		{name: "not yet valid", claims: claimSet{issuer: "checkout", subject: "42", notBefore: 5 * time.Minute, expiresIn: 10 * time.Minute}, alg: jwa.HS256, wantErr: true},
		{name: "algorithm swap", claims: valid, alg: jwa.RS256, wantErr: true},
		{name: "missing algorithm", claims: valid, alg: "", wantErr: true},
		{name: "missing subject", claims: claimSet{issuer: "checkout", expiresIn: time.Minute}, alg: jwa.HS256, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := base.Validate(buildToken(t, now, tc.claims), tc.alg, now)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTokenValidatorSubjectOptional(t *testing.T) {
	now := time.Now()
	tok := buildToken(t, now, claimSet{issuer: "checkout", expiresIn: time.Minute})

	strict := TokenValidator{Issuer: "checkout", RequireSubject: true}
	require.True(t, errors.Is(strict.Validate(tok, jwa.HS256, now), errNoSubject))

	lenient := TokenValidator{Issuer: "checkout"}
	require.NoError(t, lenient.Validate(tok, jwa.HS256, now))
}

func TestTokenValidatorRejectsNilToken(t *testing.T) {
	require.Error(t, TokenValidator{}.Validate(nil, jwa.HS256, time.Now()))
}
