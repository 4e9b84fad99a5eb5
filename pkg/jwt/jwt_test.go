package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-access-secret-key-for-testing-purposes"
	testIssuer = "vrental-identity"
)

func TestGenerateAndValidateAccessToken(t *testing.T) {
	service := NewService(testSecret, testIssuer)
	userID := uuid.New()

	token, err := service.GenerateAccessToken(userID, []string{"customer", RoleStaff}, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, AccessToken, claims.TokenType)
	assert.True(t, claims.HasRole(RoleStaff))
	assert.False(t, claims.HasRole("admin"))
}

func TestValidateAccessToken_Rejections(t *testing.T) {
	service := NewService(testSecret, testIssuer)
	userID := uuid.New()

	t.Run("Expired", func(t *testing.T) {
		token, err := service.GenerateAccessToken(userID, nil, -time.Minute)
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(token)
		assert.Error(t, err)
		assert.True(t, IsExpired(err))
	})

	t.Run("Wrong Secret", func(t *testing.T) {
		other := NewService("another-secret", testIssuer)
		token, err := other.GenerateAccessToken(userID, nil, time.Hour)
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(token)
		assert.Error(t, err)
	})

	t.Run("Wrong Issuer", func(t *testing.T) {
		other := NewService(testSecret, "someone-else")
		token, err := other.GenerateAccessToken(userID, nil, time.Hour)
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(token)
		assert.Error(t, err)
	})

	t.Run("Refresh Token Type", func(t *testing.T) {
		claims := Claims{
			UserID:    userID,
			TokenType: "refresh",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				Issuer:    testIssuer,
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(token)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid token type")
	})

	t.Run("Wrong Algorithm", func(t *testing.T) {
		claims := Claims{UserID: userID, TokenType: AccessToken}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(token)
		assert.Error(t, err)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := service.ValidateAccessToken("not.a.token")
		assert.Error(t, err)
	})
}

func TestValidateAccessToken_AnyIssuerWhenUnset(t *testing.T) {
	issuing := NewService(testSecret, "whatever")
	token, err := issuing.GenerateAccessToken(uuid.New(), nil, time.Hour)
	require.NoError(t, err)

	_, err = NewService(testSecret, "").ValidateAccessToken(token)
	assert.NoError(t, err)
}
