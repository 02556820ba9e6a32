package jwtx_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tokend/pkg/jwtx"
)

const testIssuer = "tokend-test"

func mintClaims(t *testing.T, now time.Time, ttl time.Duration) jwtx.Claims {
	t.Helper()
	c, err := jwtx.NewAccessClaims(jwtx.AccessClaimsParams{
		Subject:  "user-1",
		Username: "alice",
		Scopes:   []string{"read"},
		Issuer:   testIssuer,
		Audience: []string{"api"},
		TTL:      ttl,
		Now:      now,
	})
	require.NoError(t, err)
	return c
}

func TestSignAndVerify_AllAlgorithms(t *testing.T) {
	for _, alg := range jwtx.SupportedAlgorithms() {
		t.Run(alg, func(t *testing.T) {
			s, _, err := jwtx.GenerateSigner(alg, 2048)
			require.NoError(t, err)
			require.Equal(t, alg, s.Alg())

			ks := jwtx.NewKeySet()
			require.NoError(t, ks.AddSigner(s))
			v := jwtx.NewVerifier(ks, jwtx.VerifyOptions{Issuer: testIssuer, Audience: []string{"api"}})

			claims := mintClaims(t, time.Now(), time.Minute)
			tok, err := s.Sign(claims)
			require.NoError(t, err)
			require.Len(t, strings.Split(tok, "."), 3)

			got, err := v.Verify(tok)
			require.NoError(t, err)
			require.Equal(t, "user-1", got.Subject)
			require.Equal(t, "alice", got.Username)
			require.Equal(t, "read", got.Scope)
			require.Equal(t, claims.ID, got.ID)
		})
	}
}

func TestVerify_Failures(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	signer, _, err := jwtx.GenerateSigner(jwtx.AlgorithmEdDSA, 0)
	require.NoError(t, err)
	stranger, _, err := jwtx.GenerateSigner(jwtx.AlgorithmEdDSA, 0)
	require.NoError(t, err)

	ks := jwtx.NewKeySet()
	require.NoError(t, ks.AddSigner(signer))
	clock := func() time.Time { return now }
	v := jwtx.NewVerifier(ks, jwtx.VerifyOptions{Issuer: testIssuer, Audience: []string{"api"}, Now: clock})

	sign := func(s jwtx.Signer, c jwtx.Claims) string {
		tok, err := s.Sign(c)
		require.NoError(t, err)
		return tok
	}

	good := sign(signer, mintClaims(t, now, time.Minute))
	parts := strings.Split(good, ".")

	wrongIss := mintClaims(t, now, time.Minute)
	wrongIss.Issuer = "elsewhere"
	wrongAud := mintClaims(t, now, time.Minute)
	wrongAud.Audience = jwt.ClaimStrings{"other"}

	header, err := json.Marshal(map[string]string{"alg": "ES256", "kid": signer.KID(), "typ": "JWT"})
	require.NoError(t, err)
	swappedAlg := base64.RawURLEncoding.EncodeToString(header) + "." + parts[1] + "." + parts[2]

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"garbage", "not-a-jwt", jwtx.ErrMalformed},
		{"unknown kid", sign(stranger, mintClaims(t, now, time.Minute)), jwtx.ErrUnknownKID},
		{"tampered payload", parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"root","exp":9999999999}`)) + "." + parts[2], jwtx.ErrInvalidSig},
		{"alg swapped in header", swappedAlg, jwtx.ErrAlgMismatch},
		{"wrong issuer", sign(signer, wrongIss), jwtx.ErrIssuer},
		{"wrong audience", sign(signer, wrongAud), jwtx.ErrAudience},
		{"expired", sign(signer, mintClaims(t, now.Add(-time.Hour), time.Minute)), jwtx.ErrExpired},
		{"not yet valid", sign(signer, mintClaims(t, now.Add(time.Hour), time.Minute)), jwtx.ErrNotYetValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err = v.Verify(good)
	require.NoError(t, err)
}

func TestTokenKID(t *testing.T) {
	s, _, err := jwtx.GenerateSigner(jwtx.AlgorithmEdDSA, 0)
	require.NoError(t, err)

	tok, err := s.Sign(mintClaims(t, time.Now(), time.Minute))
	require.NoError(t, err)

	kid, err := jwtx.TokenKID(tok)
	require.NoError(t, err)
	require.Equal(t, s.KID(), kid)

	_, err = jwtx.TokenKID("not-a-token")
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}
