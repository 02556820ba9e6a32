package cryptox

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func selfSigned(t *testing.T, key crypto.Signer, notBefore, notAfter time.Time) []byte {
	t.Helper()

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "tokend test"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestParseKeyBundle_KeyOnly(t *testing.T) {
	pemData, err := GenerateEd25519Key()
	require.NoError(t, err)

	b, err := ParseKeyBundle(pemData, time.Now())
	require.NoError(t, err)
	require.Nil(t, b.Certificate)
	require.Equal(t, pemData, b.PEM)
}

func TestParseKeyBundle_WithCertificate(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	pemData, err := GenerateES256Key()
	require.NoError(t, err)
	key, err := ParsePrivateKeyPEM(pemData)
	require.NoError(t, err)

	otherPEM, err := GenerateES256Key()
	require.NoError(t, err)
	other, err := ParsePrivateKeyPEM(otherPEM)
	require.NoError(t, err)

	valid := selfSigned(t, key, now.Add(-time.Hour), now.Add(time.Hour))

	tests := []struct {
		name    string
		file    []byte
		wantErr error
	}{
		{"valid", append(append([]byte{}, valid...), pemData...), nil},
		{"cert first", append(append([]byte{}, pemData...), valid...), nil},
		{"mismatch", append(append([]byte{}, pemData...), selfSigned(t, other, now.Add(-time.Hour), now.Add(time.Hour))...), ErrCertificateMismatch},
		{"expired", append(append([]byte{}, pemData...), selfSigned(t, key, now.Add(-2*time.Hour), now.Add(-time.Hour))...), ErrCertificateExpired},
		{"not yet valid", append(append([]byte{}, pemData...), selfSigned(t, key, now.Add(time.Hour), now.Add(2*time.Hour))...), ErrCertificateNotYetValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ParseKeyBundle(tt.file, now)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, b.Certificate)
		})
	}
}

func TestLoadKeyBundle_MissingFile(t *testing.T) {
	_, err := LoadKeyBundle(filepath.Join(t.TempDir(), "nope.pem"), time.Now())
	require.ErrorIs(t, err, os.ErrNotExist)
}
