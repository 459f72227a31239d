package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"whatsjuju-chat/backend/internal/models"
	"whatsjuju-chat/backend/internal/repository"
)

const (
	minUsernameLength = 3
	minPasswordLength = 6
	defaultEmailHost  = "whatsjuju.local"
)

// TokenIssuer signs session tokens
type TokenIssuer interface {
	GenerateToken(userID uint, username string) (string, error)
}

// UserService handles registration, login and profile lookups
type UserService struct {
	users  repository.UserRepository
	tokens TokenIssuer
}

// NewUserService creates a new user service
func NewUserService(users repository.UserRepository, tokens TokenIssuer) *UserService {
	return &UserService{users: users, tokens: tokens}
}

// Register creates an account and returns a session token
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if len([]rune(username)) < minUsernameLength {
		return nil, invalidInput(fmt.Sprintf("Nome de usuário deve ter pelo menos %d caracteres", minUsernameLength))
	}
	if len(req.Password) < minPasswordLength {
		return nil, invalidInput(fmt.Sprintf("Senha deve ter pelo menos %d caracteres", minPasswordLength))
	}
	if email == "" {
		email = strings.ToLower(username) + "@" + defaultEmailHost
	}

	exists, err := s.users.Exists(ctx, username, email)
	if err != nil {
		return nil, persistence(err)
	}
	if exists {
		return nil, &Error{Kind: ErrConflict, Message: "Usuário ou email já existe"}
	}

	hash, err := models.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: hash,
		FullName: strings.TrimSpace(req.FullName),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, persistence(err)
	}

	return s.session(user)
}

// Login authenticates by username or email
func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	login := strings.TrimSpace(req.Login)
	if login == "" || req.Password == "" {
		return nil, invalidInput(MsgMissingData)
	}

	user, err := s.users.FindByLogin(ctx, login)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, persistence(err)
	}
	if !models.CheckPasswordHash(req.Password, user.Password) {
		return nil, invalidCredentials()
	}

	return s.session(user)
}

func invalidCredentials() error {
	return &Error{Kind: ErrUnauthorized, Message: "Credenciais inválidas"}
}

func (s *UserService) session(user *models.User) (*models.AuthResponse, error) {
	token, err := s.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &models.AuthResponse{Token: token, User: *user}, nil
}

// Me returns the authenticated user's profile
func (s *UserService) Me(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("Usuário não encontrado")
	}
	if err != nil {
		return nil, persistence(err)
	}
	return user, nil
}
