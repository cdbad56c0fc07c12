package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no access token")
	ErrTokenExpired = errors.New("access token expired")
	ErrInvalidToken = errors.New("invalid access token")
)

// Identity is the authenticated caller attached to a request or connection.
type Identity struct {
	UserID uint64
	Role   string
}

type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func SignJWT(userID uint64, role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ParseJWT(tokenStr, secret string) (Identity, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return Identity{}, ErrNoToken
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	// non-numeric subjects (service tokens) authenticate as user 0
	var uid uint64
	if claims.Subject != "" {
		if n, err := strconv.ParseUint(claims.Subject, 10, 64); err == nil {
			uid = n
		}
	}
	return Identity{UserID: uid, Role: claims.Role}, nil
}
