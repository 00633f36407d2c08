package service

import (
	"context"
	"errors"
	"time"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/config"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/dto"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/middleware"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/model"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("credenciales invalidas")
	ErrInvalidRefresh     = errors.New("refresh token invalido o expirado")
)

type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error)
	CrearOperador(ctx context.Context, req dto.CrearOperadorRequest) (*dto.OperadorResponse, error)
}

type authService struct {
	repo repository.OperatorRepository
	cfg  *config.Config
	now  func() time.Time
}

func NewAuthService(repo repository.OperatorRepository, cfg *config.Config) AuthService {
	return &authService{repo: repo, cfg: cfg, now: time.Now}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	op, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(op)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error) {
	claims, err := middleware.ParseToken(refreshToken, s.cfg.JWTSecret)
	if err != nil || claims.TokenType != middleware.TokenRefresh {
		return nil, ErrInvalidRefresh
	}
	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidRefresh
	}

	op, err := s.repo.FindByID(ctx, uid)
	if err != nil || !op.Activo {
		return nil, errors.New("operador no encontrado o inactivo")
	}
	return s.issue(op)
}

func (s *authService) CrearOperador(ctx context.Context, req dto.CrearOperadorRequest) (*dto.OperadorResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, err
	}
	op := &model.Operator{
		Username:     req.Username,
		Nombre:       req.Nombre,
		Email:        req.Email,
		PasswordHash: string(hash),
		Rol:          req.Rol,
		TillID:       req.TillID,
		Activo:       true,
	}
	if err := s.repo.Create(ctx, op); err != nil {
		return nil, err
	}
	resp := operadorResponse(op)
	return &resp, nil
}

func (s *authService) issue(op *model.Operator) (*dto.LoginResponse, error) {
	accessToken, err := s.generateToken(op, middleware.TokenAccess, time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.generateToken(op, middleware.TokenRefresh, time.Duration(s.cfg.JWTRefreshHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    s.cfg.JWTExpirationHours * 3600,
		User:         operadorResponse(op),
	}, nil
}

func (s *authService) generateToken(op *model.Operator, tokenType string, duration time.Duration) (string, error) {
	now := s.now()
	claims := middleware.JWTClaims{
		UserID:    op.ID.String(),
		Username:  op.Username,
		Rol:       op.Rol,
		TillID:    op.TillID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   op.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func operadorResponse(op *model.Operator) dto.OperadorResponse {
	return dto.OperadorResponse{
		ID: op.ID.String(), Username: op.Username, Nombre: op.Nombre,
		Email: op.Email, Rol: op.Rol, TillID: op.TillID, Activo: op.Activo,
	}
}
