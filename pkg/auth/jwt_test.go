package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	token, err := m.Generate("user-1", "admin")
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestValidateRejectsBadTokens(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, err := m.Generate("user-1", "user")
	require.NoError(t, err)

	_, err = NewTokenManager("other", time.Hour).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenManager("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Generate("user-1", "user")
	require.NoError(t, err)
	_, err = m.Validate(old)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "user-1"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour).Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateRequiresUser(t *testing.T) {
	_, err := NewTokenManager("secret", time.Hour).Generate("", "user")
	assert.ErrorIs(t, err, ErrMissingUser)
}
