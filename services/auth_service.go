package services

import (
	"context"
	"errors"

	"blog-cms/logging"
	"blog-cms/models"
	"blog-cms/oops"
	"blog-cms/repositories"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	SetSubscription(ctx context.Context, id uint, subscribed bool) (*models.User, error)
}

type authService struct {
	userRepo repositories.UserRepository
	tokens   *TokenManager
}

func NewAuthService(userRepo repositories.UserRepository, tokens *TokenManager) AuthService {
	return &authService{userRepo: userRepo, tokens: tokens}
}

func (s *authService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	// Owners and admins are created by the seed command only.
	role := req.Role
	if role == "" {
		role = models.RoleReader
	}
	if role != models.RoleReader && role != models.RoleAuthor {
		return nil, models.ErrorValidation{Message: "role must be reader or author"}
	}

	existingUser, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err == nil && existingUser != nil {
		return nil, models.ErrorConflict{Message: "user already exists"}
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, s.internal(ctx, err, "failed to look up user")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, s.internal(ctx, err, "failed to hash password")
	}

	user := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, s.internal(ctx, err, "failed to create user")
	}

	return s.respond(ctx, user)
}

func (s *authService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrorUnauthorized{Message: "invalid credentials"}
		}
		return nil, s.internal(ctx, err, "failed to look up user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, models.ErrorUnauthorized{Message: "invalid credentials"}
	}

	return s.respond(ctx, user)
}

func (s *authService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrorNotFound{Message: "User not found"}
	}
	if err != nil {
		return nil, s.internal(ctx, err, "failed to load user")
	}
	return user, nil
}

func (s *authService) SetSubscription(ctx context.Context, id uint, subscribed bool) (*models.User, error) {
	err := s.userRepo.SetSubscribed(ctx, id, subscribed)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrorNotFound{Message: "User not found"}
	}
	if err != nil {
		return nil, s.internal(ctx, err, "failed to update subscription")
	}
	return s.GetUserByID(ctx, id)
}

func (s *authService) respond(ctx context.Context, user *models.User) (*models.AuthResponse, error) {
	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, s.internal(ctx, err, "failed to sign token")
	}
	return &models.AuthResponse{Token: token, User: *user}, nil
}

func (s *authService) internal(ctx context.Context, err error, msg string) error {
	wrapped := oops.New(err, msg)
	logging.ExtractLogger(ctx).Error().Stack().Err(wrapped).Msg(msg)
	return models.ErrorInternalServer{Message: msg, Err: wrapped}
}
