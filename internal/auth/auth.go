package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin  = "admin"
	DefaultTTL = 12 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotConfigured      = errors.New("admin login is not configured")
)

// Service authenticates the single shop administrator configured through
// the environment.
type Service struct {
	email        string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

func NewService(email, passwordHash, secret string) *Service {
	return &Service{
		email:        strings.TrimSpace(email),
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		ttl:          DefaultTTL,
		now:          time.Now,
	}
}

func (s *Service) Authenticate(email, password string) error {
	if s.email == "" || len(s.passwordHash) == 0 {
		return ErrNotConfigured
	}
	if !strings.EqualFold(strings.TrimSpace(email), s.email) {
		return ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// IssueToken signs an HS256 admin token.
func (s *Service) IssueToken() (string, time.Time, error) {
	exp := s.now().Add(s.ttl)
	claims := jwt.MapClaims{
		"sub":  s.email,
		"role": RoleAdmin,
		"exp":  exp.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// HashPassword produces the value expected in ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
