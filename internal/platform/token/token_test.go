package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steward/internal/platform/token"
)

func TestIssueAndValidate(t *testing.T) {
	v := token.NewValidator("test-signing-key")

	raw, err := v.Issue("auditor@example.gov", token.RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := v.ValidateToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "auditor@example.gov", claims.Subject)
	assert.Equal(t, token.RoleAdmin, claims.Role)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	v := token.NewValidator("test-signing-key")

	raw, err := v.Issue("auditor@example.gov", token.RoleAdmin, -time.Minute)
	require.NoError(t, err)

	_, err = v.ValidateToken(raw)
	assert.Error(t, err)
}

func TestValidateRejectsWrongKey(t *testing.T) {
	raw, err := token.NewValidator("key-a").Issue("auditor@example.gov", token.RoleAdmin, time.Hour)
	require.NoError(t, err)

	_, err = token.NewValidator("key-b").ValidateToken(raw)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	v := token.NewValidator("test-signing-key")

	_, err := v.ValidateToken("not-a-jwt")
	assert.Error(t, err)
}
