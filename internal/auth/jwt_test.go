package auth

import (
	"circleup/backend/internal/models"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueGuest_RoundTrip(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)

	token, user, err := issuer.IssueGuest("Visitor")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.True(t, user.IsGuest)

	got, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestIssueAccount_RoundTrip(t *testing.T) {
	issuer := NewIssuer("test-secret", 0)
	email := "ada@example.com"

	token, err := issuer.IssueAccount(models.User{ID: "ada", Name: "Ada", Email: &email, IsGuest: true})
	require.NoError(t, err)

	got, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ada", got.ID)
	assert.Equal(t, "Ada", got.Name)
	require.NotNil(t, got.Email)
	assert.Equal(t, email, *got.Email)
	assert.False(t, got.IsGuest)

	_, err = issuer.IssueAccount(models.User{})
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestValidate_Rejects(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	token, _, err := issuer.IssueGuest("")
	require.NoError(t, err)

	expired := NewIssuer("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	oldToken, _, err := expired.IssueGuest("")
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           "mallory",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	foreignToken, err := foreign.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		with  *Issuer
	}{
		{name: "garbage", token: "not-a-jwt", with: issuer},
		{name: "wrong secret", token: token, with: NewIssuer("other-secret", time.Hour)},
		{name: "expired", token: oldToken, with: issuer},
		{name: "foreign issuer", token: foreignToken, with: issuer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.with.Validate(tt.token)
			assert.ErrorIs(t, err, models.ErrInvalidToken)
		})
	}
}
