package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokend/internal/tokend/store"
	"github.com/aussiebroadwan/tokend/pkg/cryptox"
	"github.com/aussiebroadwan/tokend/pkg/jwtx"
	"github.com/aussiebroadwan/tokend/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func newPersistentKeys(t *testing.T, s store.Store, sealer *cryptox.Sealer, now func() time.Time) *jwtx.KeyManager {
	t.Helper()
	km, err := jwtx.NewPersistentKeyManager(context.Background(), jwtx.PersistentKeyManagerOptions{
		Store:             store.NewKeyStoreAdapter(s),
		Sealer:            sealer,
		KeyManagerOptions: jwtx.KeyManagerOptions{Algorithm: jwtx.AlgorithmES256, Issuer: testIssuer},
		Now:               now,
	})
	require.NoError(t, err)
	return km
}

func TestKeyRotation_RotateAndExpire(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sealer, err := cryptox.NewEphemeralSealer()
	require.NoError(t, err)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	km := newPersistentKeys(t, s, sealer, now)
	first, err := km.ActiveKey()
	require.NoError(t, err)

	issuer := NewTokenIssuer(km, testIssuer, nil)
	oldToken, err := issuer.Issue(subjectFor("u1"), []string{"read"}, time.Hour)
	require.NoError(t, err)

	rotation := &KeyRotationService{
		Store:       s,
		KeyManager:  km,
		Sealer:      sealer,
		GracePeriod: 24 * time.Hour,
		Now:         now,
	}

	clock = clock.Add(time.Minute)
	resp, err := rotation.RotateKey(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first.KID(), resp.NewKey.Kid)
	require.Equal(t, jwtx.AlgorithmES256, resp.NewKey.Algorithm)
	require.Len(t, resp.RetiredKeys, 1)
	require.Equal(t, first.KID(), resp.RetiredKeys[0].Kid)

	active, err := km.ActiveKey()
	require.NoError(t, err)
	require.Equal(t, resp.NewKey.Kid, active.KID())
	require.Equal(t, 2, km.Keys().Len())

	// Tokens from the retired key still verify during the grace period.
	_, err = issuer.Decode(oldToken.Token)
	require.NoError(t, err)

	keys, err := rotation.ListSigningKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.True(t, keys[0].IsActive())
	require.False(t, keys[1].IsActive())

	// A restart picks up the rotated key.
	reloaded := newPersistentKeys(t, s, sealer, now)
	reloadedActive, err := reloaded.ActiveKey()
	require.NoError(t, err)
	require.Equal(t, resp.NewKey.Kid, reloadedActive.KID())
	require.Equal(t, 2, reloaded.Keys().Len())

	hk := NewHousekeepingService(s, km, slogx.Discard(), time.Hour)
	hk.Now = func() time.Time { return clock.Add(12 * time.Hour) }
	require.Zero(t, hk.Cleanup(ctx))

	hk.Now = func() time.Time { return clock.Add(25 * time.Hour) }
	require.EqualValues(t, 1, hk.Cleanup(ctx))
	require.Equal(t, 1, km.Keys().Len())

	_, err = issuer.Decode(oldToken.Token)
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)
}

func TestKeyRotation_EphemeralUnsupported(t *testing.T) {
	km := newTestKeyManager(t)
	rotation := &KeyRotationService{KeyManager: km}

	_, err := rotation.RotateKey(context.Background())
	require.ErrorIs(t, err, ErrRotationUnsupported)

	keys, err := rotation.ListSigningKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, jwtx.AlgorithmEdDSA, keys[0].Algorithm)
}

func TestHousekeeping_StartStop(t *testing.T) {
	s := newTestStore(t)
	hk := NewHousekeepingService(s, nil, slogx.Discard(), time.Hour)
	hk.Start()
	hk.Stop()
}
