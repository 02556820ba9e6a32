package jwtx_test

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tokend/pkg/cryptox"
	"github.com/aussiebroadwan/tokend/pkg/jwtx"
)

func TestNewJWK_PerKeyType(t *testing.T) {
	tests := []struct {
		alg string
		kty string
		crv string
	}{
		{jwtx.AlgorithmEdDSA, "OKP", "Ed25519"},
		{jwtx.AlgorithmES256, "EC", "P-256"},
		{jwtx.AlgorithmRS256, "RSA", ""},
	}

	for _, tt := range tests {
		t.Run(tt.alg, func(t *testing.T) {
			s, _, err := jwtx.GenerateSigner(tt.alg, 2048)
			require.NoError(t, err)

			j := s.PublicJWK()
			require.Equal(t, tt.kty, j.Kty)
			require.Equal(t, tt.crv, j.Crv)
			require.Equal(t, "sig", j.Use)
			require.Equal(t, tt.alg, j.Alg)
			require.Equal(t, s.KID(), j.Kid)

			pemStr, err := j.PEM()
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(pemStr, "-----BEGIN PUBLIC KEY-----"))

			raw, err := json.Marshal(j)
			require.NoError(t, err)
			require.NotContains(t, string(raw), `"d"`, "private material must never be published")
		})
	}
}

func TestJWK_Rejects(t *testing.T) {
	for _, j := range []jwtx.JWK{
		{Kty: "oct"},
		{Kty: "OKP", Crv: "X25519", X: "AA"},
		{Kty: "EC", Crv: "P-384", X: "AA", Y: "AA"},
		{Kty: "OKP", Crv: "Ed25519", X: "AAAA"},
	} {
		_, err := j.PublicKey()
		require.Error(t, err)
	}
}

// RFC 8037 appendix A.3.
func TestThumbprint_RFC8037Vector(t *testing.T) {
	x, err := hex.DecodeString("d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a")
	require.NoError(t, err)

	tp, err := jwtx.Thumbprint(ed25519.PublicKey(x))
	require.NoError(t, err)
	require.Equal(t, "kPrK_qmxVWaYVA9wwBF6Iuo3vVzz7TxHCTwXBygrS4k", tp)
}

func TestThumbprint_StableKid(t *testing.T) {
	pemData, err := cryptox.GenerateES256Key()
	require.NoError(t, err)

	a, err := jwtx.NewSignerFromPEM("", pemData)
	require.NoError(t, err)
	b, err := jwtx.NewSignerFromPEM("", pemData)
	require.NoError(t, err)
	require.Equal(t, a.KID(), b.KID())

	named, err := jwtx.NewSignerFromPEM("custom", pemData)
	require.NoError(t, err)
	require.Equal(t, "custom", named.KID())
}

func TestKeySet(t *testing.T) {
	ks := jwtx.NewKeySet()
	require.Zero(t, ks.Len())
	require.Empty(t, ks.PublicJWKS().Keys)

	a, _, err := jwtx.GenerateSigner(jwtx.AlgorithmEdDSA, 0)
	require.NoError(t, err)
	b, _, err := jwtx.GenerateSigner(jwtx.AlgorithmES256, 0)
	require.NoError(t, err)

	require.NoError(t, ks.AddSigner(a))
	require.NoError(t, ks.AddSigner(b))
	require.NoError(t, ks.AddSigner(a))
	require.Equal(t, 2, ks.Len())

	jwks := ks.PublicJWKS()
	require.Equal(t, a.KID(), jwks.Keys[0].Kid)
	require.Equal(t, b.KID(), jwks.Keys[1].Kid)

	_, alg, err := ks.Get(b.KID())
	require.NoError(t, err)
	require.Equal(t, jwtx.AlgorithmES256, alg)

	ks.Remove(a.KID())
	ks.Remove("unknown")
	_, _, err = ks.Get(a.KID())
	require.ErrorIs(t, err, jwtx.ErrNoKey)
	require.Len(t, ks.PublicJWKS().Keys, 1)

	require.Error(t, ks.AddJWK(jwtx.JWK{Kty: "OKP"}))
}
