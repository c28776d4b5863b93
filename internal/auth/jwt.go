package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when a request carries no bearer token
	ErrMissingToken = errors.New("missing bearer token")
	// ErrNoUserID is returned when a valid token names no user
	ErrNoUserID = errors.New("token does not carry a user id")
)

// Claims represents the claims in a user access token.
// Hosted identity providers put the user id in "sub"; locally issued tokens may use "user_id".
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ResolvedUserID returns the subject, falling back to the user_id claim
func (c *Claims) ResolvedUserID() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

// Validator verifies HS256 user tokens
type Validator struct {
	secret []byte
}

// NewValidator creates a validator for tokens signed with secret
func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// GenerateUserToken issues a token for userID valid for ttl
func (v *Validator) GenerateUserToken(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// ValidateToken validates a JWT token and returns the claims
func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}

// UserID validates the token and resolves the user it belongs to
func (v *Validator) UserID(tokenString string) (string, *Claims, error) {
	claims, err := v.ValidateToken(tokenString)
	if err != nil {
		return "", nil, err
	}
	userID := claims.ResolvedUserID()
	if userID == "" {
		return "", claims, ErrNoUserID
	}
	return userID, claims, nil
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
