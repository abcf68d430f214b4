package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// localsCallerID is the fiber Locals key holding the authenticated caller.
const localsCallerID = "callerId"

// Claims are the registered claims; the subject is the caller id.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenIssuer mints HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

func (g *TokenIssuer) Issue(callerID string) (string, error) {
	if strings.TrimSpace(callerID) == "" {
		return "", errors.New("caller id is required")
	}
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   callerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

var (
	errMissingToken  = errors.New("missing bearer token")
	errInvalidToken  = errors.New("invalid or expired token")
	errInvalidClaims = errors.New("invalid token claims")
	errInvalidIssuer = errors.New("invalid token issuer")
	errAuthDisabled  = errors.New("authentication is not configured")
)

// verifyToken checks an HS256 token and returns its subject, the caller id.
// An empty secret rejects every token.
func verifyToken(tokenStr string, secret []byte, expectedIssuer string) (string, error) {
	if len(secret) == 0 {
		return "", errAuthDisabled
	}
	if tokenStr == "" {
		return "", errMissingToken
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || strings.TrimSpace(claims.Subject) == "" {
		return "", errInvalidClaims
	}
	if expectedIssuer != "" && claims.Issuer != expectedIssuer {
		return "", errInvalidIssuer
	}
	return claims.Subject, nil
}

// NewAuthMiddleware validates a Bearer JWT (HS256) and stores its subject in
// c.Locals("callerId"). A bare token without the Bearer prefix is accepted too.
func NewAuthMiddleware(secret, expectedIssuer string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		callerID, err := verifyToken(bearerToken(c.Get(fiber.HeaderAuthorization)), secretBytes, expectedIssuer)
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"message": err.Error()})
		}
		c.Locals(localsCallerID, callerID)
		return c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(rest)
	}
	return header
}

func callerFrom(c *fiber.Ctx) string {
	id, _ := c.Locals(localsCallerID).(string)
	return id
}
