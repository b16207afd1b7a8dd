// Package auth issues and validates the identity tokens the chat core trusts.
// Account sign-in itself happens at an external provider; this package only
// signs what the provider vouched for and mints guest identities.
package auth

import (
	"circleup/backend/internal/models"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	IssuerName      = "circleup-service"
	DefaultGuestTTL = 72 * time.Hour
	accountTTL      = 30 * 24 * time.Hour
)

// Claims carries the identity snapshot used as the message sender.
type Claims struct {
	UserID string  `json:"user_id"`
	Name   string  `json:"name"`
	Email  *string `json:"email,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
	Guest  bool    `json:"guest"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret   []byte
	guestTTL time.Duration
	now      func() time.Time
}

func NewIssuer(secret string, guestTTL time.Duration) *Issuer {
	if guestTTL <= 0 {
		guestTTL = DefaultGuestTTL
	}
	return &Issuer{secret: []byte(secret), guestTTL: guestTTL, now: time.Now}
}

// IssueGuest створює анонімну гостьову ідентичність та її токен.
func (i *Issuer) IssueGuest(name string) (string, models.User, error) {
	user := models.User{
		ID:      uuid.New().String(),
		Name:    name,
		IsGuest: true,
	}
	token, err := i.sign(user, i.guestTTL)
	if err != nil {
		return "", models.User{}, err
	}
	return token, user, nil
}

// IssueAccount signs a token for an identity confirmed by the sign-in provider.
func (i *Issuer) IssueAccount(user models.User) (string, error) {
	if user.ID == "" {
		return "", fmt.Errorf("issue account token: %w", models.ErrInvalidToken)
	}
	user.IsGuest = false
	return i.sign(user, accountTTL)
}

func (i *Issuer) sign(user models.User, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Avatar: user.Avatar,
		Guest:  user.IsGuest,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    IssuerName,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Validate returns the identity inside token. Any failure is
// models.ErrInvalidToken.
func (i *Issuer) Validate(tokenString string) (models.User, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithIssuer(IssuerName),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return models.User{}, errors.Join(models.ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return models.User{}, models.ErrInvalidToken
	}

	return models.User{
		ID:      claims.UserID,
		Name:    claims.Name,
		Email:   claims.Email,
		Avatar:  claims.Avatar,
		IsGuest: claims.Guest,
	}, nil
}
