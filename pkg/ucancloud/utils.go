package ucancloud

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// HashPassword returns the lower-case hex MD5 digest the sign-in endpoint expects.
func HashPassword(password string) string {
	sum := md5.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}

// TokenExpiry reads the exp claim of a JWT-shaped token without verifying it.
// Opaque tokens return an error.
func TokenExpiry(rawToken string) (*time.Time, error) {
	token, _, err := new(jwt.Parser).ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid or missing claims")
	}
	unixTs, ok := claims["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid or missing 'exp' claim: %+v", claims)
	}
	tm := time.Unix(int64(unixTs), 0)
	return &tm, nil
}

// TokenExpiresWithin reports whether a JWT-shaped token expires before now+margin.
// Opaque tokens never expire locally.
func TokenExpiresWithin(rawToken string, now time.Time, margin time.Duration) bool {
	if rawToken == "" {
		return false
	}
	exp, err := TokenExpiry(rawToken)
	if err != nil {
		return false
	}
	return exp.Before(now.Add(margin))
}
