package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Roles recognized by the API. Admins may force-resolve disputes and change
// policy; auditors may record external audit entries.
const (
	RoleAdmin   = "admin"
	RoleAuditor = "auditor"
)

// ErrInvalidCredentials is returned for unknown operators or bad passwords.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Operator is one configured API operator account.
type Operator struct {
	Username     string   `json:"username"`
	PasswordHash string   `json:"password_hash"` // bcrypt
	Roles        []string `json:"roles"`
}

// Claims are the JWT claims issued to operators.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Service issues and validates operator tokens
type Service struct {
	secret    []byte
	tokenTTL  time.Duration
	operators map[string]Operator
}

// NewService creates a new auth service from configured operator accounts
func NewService(secret string, tokenTTL time.Duration, operators []Operator) *Service {
	byName := make(map[string]Operator, len(operators))
	for _, op := range operators {
		byName[op.Username] = op
	}
	return &Service{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		operators: byName,
	}
}

// Login validates an operator password and returns a signed token.
func (s *Service) Login(username, password string) (string, error) {
	op, ok := s.operators[username]
	if !ok {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		Roles: op.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   op.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken validates a token string and returns its claims.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// HashPassword produces a bcrypt hash for operator provisioning.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}
