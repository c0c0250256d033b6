// Package auth mints and parses the HS256 access tokens handed to clients.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the account ID and the time the credential was last
// checked. AuthTime is preserved when tokens are refreshed, so it bounds how
// recently the caller proved knowledge of the password.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string `json:"uid"`
	AuthTime  int64  `json:"auth_time"`
}

// Principal is the authenticated caller extracted from a valid token.
type Principal struct {
	AccountID string
	AuthTime  time.Time
}

func GenerateToken(accountID string, authTime time.Time, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		AccountID: accountID,
		AuthTime:  authTime.Unix(),
	})

	return token.SignedString(secretKey)
}

// ParseToken validates tokenString. Expired tokens yield
// common.ErrTokenExpired; anything else wrong yields common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (Principal, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, common.ErrTokenExpired
		}
		return Principal{}, common.ErrInvalidToken
	}

	if !token.Valid || claims.AccountID == "" {
		return Principal{}, common.ErrInvalidToken
	}

	return Principal{AccountID: claims.AccountID, AuthTime: time.Unix(claims.AuthTime, 0)}, nil
}
