package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"signal-relay/internal/models"
	"signal-relay/internal/repositories/postgres"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("phone number already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidToken       = errors.New("invalid token")
)

type UserService struct {
	repo      *postgres.UserRepository
	jwtSecret string
	tokenTTL  time.Duration
}

func NewUserService(repo *postgres.UserRepository, jwtSecret string, tokenTTL time.Duration) *UserService {
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	return &UserService{
		repo:      repo,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

func (s *UserService) generateJWT(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"exp":     time.Now().Add(s.tokenTTL).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// ParseUserToken validates an HS256 token signed with secret and returns its
// user_id claim.
func ParseUserToken(tokenString, secret string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return 0, ErrInvalidToken
	}
	return uint(userID), nil
}

func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.UserResponse, error) {
	phone := strings.TrimSpace(req.Phone)
	if phone == "" || req.Password == "" || req.Username == "" {
		return nil, ErrInvalidRequest
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username:  req.Username,
		Phone:     phone,
		Password:  string(hashedPassword),
		PublicKey: req.PublicKey,
		Avatar:    models.DefaultAvatar,
	}

	if err := s.repo.Create(ctx, &user); err != nil {
		if errors.Is(err, postgres.ErrPhoneRegistered) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("User registered", "userID", user.ID)

	resp := user.ToResponse()
	return &resp, nil
}

func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.repo.FindByPhone(ctx, strings.TrimSpace(req.Phone))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &models.LoginResponse{
		Token: token,
		User:  user.ToResponse(),
	}, nil
}

func (s *UserService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ListUsers returns the public directory view (no keys).
func (s *UserService) ListUsers(ctx context.Context) ([]models.UserResponse, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]models.UserResponse, len(users))
	for i := range users {
		resp := users[i].ToResponse()
		resp.PublicKey = ""
		responses[i] = resp
	}
	return responses, nil
}

func (s *UserService) SearchByPhone(ctx context.Context, phone string) (*models.UserResponse, error) {
	user, err := s.repo.FindByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &models.UserResponse{ID: user.ID, Username: user.Username, Avatar: user.Avatar}, nil
}

func (s *UserService) GetPublicKey(ctx context.Context, userID uint) (string, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.PublicKey, nil
}

func (s *UserService) UpdatePublicKey(ctx context.Context, userID uint, publicKey string) error {
	if err := s.repo.UpdatePublicKey(ctx, userID, publicKey); err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}
