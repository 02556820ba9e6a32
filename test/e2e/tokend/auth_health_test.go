package tokend_test

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLivezEndpoint verifies the liveness check endpoint.
func TestLivezEndpoint(t *testing.T) {
	c := setupTokendContainer(t, nil)

	health, err := c.Client().GetLiveness(t.Context())
	assertHealthy(t, health, err)
	require.NotEmpty(t, health.Version)
}

// TestReadyzEndpoint verifies the database and signing key checks pass.
func TestReadyzEndpoint(t *testing.T) {
	c := setupTokendContainer(t, nil)

	health, err := c.Client().GetReadiness(t.Context())
	assertHealthy(t, health, err)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Database)
	require.Equal(t, "ok", health.Checks.Signer)
}

// TestMetadataEndpoint verifies the RFC 8414 discovery document.
func TestMetadataEndpoint(t *testing.T) {
	c := setupTokendContainer(t, nil)

	md, err := c.Client().GetMetadata(t.Context())
	require.NoError(t, err)
	require.Equal(t, testIssuer, md.Issuer)
	require.Equal(t, c.BaseURL+"/connect/token", md.TokenEndpoint)
	require.Equal(t, c.BaseURL+"/.well-known/jwks.json", md.JWKSURI)
	require.Equal(t, []string{"password"}, md.GrantTypesSupported)
	require.Equal(t, []string{"none"}, md.TokenEndpointAuthMethodsSupported)
	require.Equal(t, testScopes, md.ScopesSupported)
	require.Equal(t, []string{"EdDSA"}, md.TokenEndpointAuthSigningAlgValues)
}

// TestCheckCommand runs the startup verification inside the container.
func TestCheckCommand(t *testing.T) {
	c := setupTokendContainer(t, nil)

	out := c.Run(t, "tokend check")
	require.Contains(t, out, "signing key")
	require.Contains(t, out, "source=persistent")
	require.NotContains(t, out, "FAIL")
}
