package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(secret string, expiry time.Duration) *AuthService {
	return NewAuthService(&config.Config{JWTSecret: secret, JWTExpiry: expiry})
}

func TestAuthService_RoundTrip(t *testing.T) {
	auth := newTestAuth("secret", time.Hour)

	tok, err := auth.GenerateStudentToken("  stu-1 ")
	require.NoError(t, err)
	claims, err := auth.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeStudent, claims.TokenType)
	assert.Equal(t, "stu-1", claims.UserID)
	assert.Equal(t, "stu-1", claims.Subject)

	tok, err = auth.GenerateTeacherToken("tch-1")
	require.NoError(t, err)
	claims, err = auth.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeTeacher, claims.TokenType)
}

func TestAuthService_Rejects(t *testing.T) {
	auth := newTestAuth("secret", time.Hour)

	_, err := auth.GenerateStudentToken(" ")
	assert.ErrorIs(t, err, ErrInvalidSubject)

	other, err := newTestAuth("other", time.Hour).GenerateStudentToken("stu-1")
	require.NoError(t, err)
	_, err = auth.ValidateToken(other)
	assert.Error(t, err, "wrong secret")

	expired, err := newTestAuth("secret", -time.Minute).GenerateStudentToken("stu-1")
	require.NoError(t, err)
	_, err = auth.ValidateToken(expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{TokenType: TokenTypeStudent, UserID: "stu-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = auth.ValidateToken(unsigned)
	assert.Error(t, err, "alg none")

	_, err = auth.ValidateToken("not.a.token")
	assert.Error(t, err)
}
