package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showtixhq/showtix-backend/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret-please-rotate",
		Issuer:            "showtix",
		ExpirationMinutes: 15,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	identity := Identity{
		UserID:   uuid.New(),
		TenantID: uuid.New(),
		Role:     RoleBuyer,
	}

	token, err := MintAccessToken(cfg, time.Now(), identity)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, identity.UserID, claims.UserID)
	assert.Equal(t, identity.TenantID, claims.TenantID)
	assert.Equal(t, RoleBuyer, claims.Role)
	assert.Equal(t, identity, claims.Identity())
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	identity := Identity{UserID: uuid.New(), TenantID: uuid.New(), Role: RoleAdmin}

	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), identity)
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	mintCfg := testJWTConfig()
	mintCfg.Issuer = "someone-else"
	identity := Identity{UserID: uuid.New(), TenantID: uuid.New(), Role: RoleBuyer}

	token, err := MintAccessToken(mintCfg, time.Now(), identity)
	require.NoError(t, err)

	_, err = ParseAccessToken(testJWTConfig(), token)
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsTamperedSecret(t *testing.T) {
	cfg := testJWTConfig()
	identity := Identity{UserID: uuid.New(), TenantID: uuid.New(), Role: RoleBuyer}

	token, err := MintAccessToken(cfg, time.Now(), identity)
	require.NoError(t, err)

	other := cfg
	other.Secret = "different-secret"
	_, err = ParseAccessToken(other, token)
	assert.Error(t, err)
}

func TestMintAccessTokenValidation(t *testing.T) {
	identity := Identity{UserID: uuid.New(), TenantID: uuid.New(), Role: RoleBuyer}

	t.Run("missing secret", func(t *testing.T) {
		cfg := testJWTConfig()
		cfg.Secret = ""
		_, err := MintAccessToken(cfg, time.Now(), identity)
		assert.Error(t, err)
	})

	t.Run("missing user id", func(t *testing.T) {
		_, err := MintAccessToken(testJWTConfig(), time.Now(), Identity{TenantID: uuid.New()})
		assert.Error(t, err)
	})

	t.Run("missing tenant id", func(t *testing.T) {
		_, err := MintAccessToken(testJWTConfig(), time.Now(), Identity{UserID: uuid.New()})
		assert.Error(t, err)
	})
}
