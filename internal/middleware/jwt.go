package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/congo-pay/merchant_ledger/internal/apierr"
	"github.com/congo-pay/merchant_ledger/internal/authz"
)

// Claims are the access token claims issued by the external identity provider.
// The subject is the caller's user id.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTAuth validates HS256 bearer tokens and attaches the caller to the request context.
func JWTAuth(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			return unauthenticated("missing bearer token")
		}
		tokenStr := strings.TrimSpace(header[len("Bearer "):])

		userID, err := ParseToken(tokenStr, secret)
		if err != nil {
			return unauthenticated("invalid token")
		}

		c.SetUserContext(authz.WithCaller(c.UserContext(), authz.Caller{UserID: userID}))
		c.Locals("user_id", userID.String())
		return c.Next()
	}
}

// ParseToken verifies the signature and expiry of an access token and returns its subject.
func ParseToken(tokenStr string, secret []byte) (uuid.UUID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return uuid.Nil, err
	}
	if !token.Valid {
		return uuid.Nil, errors.New("token is not valid")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid subject %q", claims.Subject)
	}
	return userID, nil
}

// IssueToken signs an HS256 access token for userID. Production tokens come
// from the identity provider; this serves local tooling and tests.
func IssueToken(secret []byte, userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func unauthenticated(msg string) error {
	return apierr.New(http.StatusUnauthorized, "unauthenticated", msg)
}
