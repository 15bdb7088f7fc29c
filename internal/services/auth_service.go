package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"etalase/internal/models"
	"etalase/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// AuthService signs admins in and checks their sessions.
type AuthService struct {
	userRepo   repositories.UserRepository
	jwtSecret  []byte
	tokenDurat time.Duration // Duration for which a session token is valid
}

// NewAuthService creates a new AuthService. A non-positive ttl means 24 hours.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		userRepo:   userRepo,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: ttl,
	}
}

// TokenTTL reports how long issued tokens stay valid.
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenDurat
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAdmin hashes the password and stores a new admin account.
func (s *AuthService) CreateAdmin(ctx context.Context, email, password string) (*models.AdminUser, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", models.ErrValidation)
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		return nil, fmt.Errorf("%w: %s", models.ErrEmailTaken, email)
	case err != nil && !errors.Is(err, repositories.ErrUserNotFound):
		return nil, fmt.Errorf("failed to check existing admin: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.AdminUser{Email: email, PasswordHash: string(hashedPassword)}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}
	return user, nil
}

// EnsureAdmin creates the bootstrap admin unless the email is already registered.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := s.CreateAdmin(ctx, email, password)
	if errors.Is(err, models.ErrEmailTaken) {
		return nil
	}
	if err == nil {
		log.Printf("Bootstrap admin %s created", normalizeEmail(email))
	}
	return err
}

// SignInWithPassword checks the credentials and returns a signed session token.
func (s *AuthService) SignInWithPassword(ctx context.Context, email, password string) (string, *models.Session, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		// do not reveal whether the email exists
		return "", nil, models.ErrAuthFailure
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, models.ErrAuthFailure
	}

	now := time.Now()
	expiresAt := now.Add(s.tokenDurat)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     expiresAt.Unix(),
		"iat":     now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, &models.Session{UserID: user.ID, Email: user.Email, ExpiresAt: time.Unix(expiresAt.Unix(), 0)}, nil
}

// GetSession decodes a session token. Any problem with the token, including
// its absence, is reported as models.ErrSessionAbsent.
func (s *AuthService) GetSession(tokenString string) (*models.Session, error) {
	if tokenString == "" {
		return nil, models.ErrSessionAbsent
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSessionAbsent, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, models.ErrSessionAbsent
	}

	userID, _ := claims["user_id"].(string)
	email, _ := claims["email"].(string)
	exp, _ := claims["exp"].(float64)
	if userID == "" || exp == 0 {
		return nil, fmt.Errorf("%w: incomplete claims", models.ErrSessionAbsent)
	}

	return &models.Session{UserID: userID, Email: email, ExpiresAt: time.Unix(int64(exp), 0)}, nil
}
