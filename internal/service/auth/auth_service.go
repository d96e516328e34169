// Package auth 认证与账号服务
package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/quickmech/quickmech-backend/internal/common/crypto"
	apperrors "github.com/quickmech/quickmech-backend/internal/common/errors"
	"github.com/quickmech/quickmech-backend/internal/common/jwt"
	"github.com/quickmech/quickmech-backend/internal/common/logger"
	"github.com/quickmech/quickmech-backend/internal/models"
	"github.com/quickmech/quickmech-backend/internal/repository"
)

// AuthService 认证服务
type AuthService struct {
	userRepo   *repository.UserRepository
	jwtManager *jwt.Manager
}

// NewAuthService 创建认证服务
func NewAuthService(userRepo *repository.UserRepository, jwtManager *jwt.Manager) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email    string  `json:"email" binding:"required,email,max=120"`
	Password string  `json:"password" binding:"required,min=6,max=64"`
	Name     string  `json:"name" binding:"required,max=100"`
	Phone    *string `json:"phone,omitempty" binding:"omitempty,max=20"`
	UserType string  `json:"user_type" binding:"required,oneof=client mechanic autoparts"`
	Market   string  `json:"market" binding:"required,oneof=uk br"`
	Address  *string `json:"address,omitempty" binding:"omitempty,max=255"`
}

// Register 用户注册
// 技师与配件店注册后进入待审核状态，审核通过前不能接单/上架
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if exists {
		return nil, apperrors.ErrEmailExists
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.ErrInternalError.WithError(err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         req.Name,
		Phone:        req.Phone,
		UserType:     req.UserType,
		Market:       req.Market,
		Address:      req.Address,
		IsActive:     true,
		IsApproved:   !models.NeedsApproval(req.UserType),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	logger.Info("用户注册成功",
		logger.UserID(user.ID),
		logger.String("email", crypto.MaskEmail(user.Email)),
		logger.String("user_type", user.UserType),
		logger.Market(user.Market))
	return user, nil
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	User   *models.User   `json:"user"`
	Tokens *jwt.TokenPair `json:"tokens"`
}

// Login 用户登录
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPasswordError
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if !crypto.VerifyPassword(req.Password, user.PasswordHash) {
		logger.Warn("登录密码错误", logger.String("email", crypto.MaskEmail(email)))
		return nil, apperrors.ErrPasswordError
	}
	if !user.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}

	tokens, err := s.jwtManager.GenerateTokenPair(user.ID, user.UserType, "")
	if err != nil {
		return nil, apperrors.ErrInternalError.WithError(err)
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		logger.Warn("更新最后登录时间失败", logger.UserID(user.ID), logger.Err(err))
	}

	return &LoginResponse{User: user, Tokens: tokens}, nil
}

// Refresh 刷新令牌
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	claims, err := s.jwtManager.ParseToken(refreshToken)
	if err != nil {
		return nil, apperrors.ErrTokenRefreshFail.WithError(err)
	}

	// 刷新时校验账号仍然有效
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTokenRefreshFail
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if !user.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}

	tokens, err := s.jwtManager.GenerateTokenPair(user.ID, user.UserType, "")
	if err != nil {
		return nil, apperrors.ErrInternalError.WithError(err)
	}
	return tokens, nil
}

// Me 当前用户信息
func (s *AuthService) Me(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return user, nil
}

// UpdateProfileRequest 更新资料请求
type UpdateProfileRequest struct {
	Name      *string  `json:"name,omitempty" binding:"omitempty,max=100"`
	Phone     *string  `json:"phone,omitempty" binding:"omitempty,max=20"`
	Address   *string  `json:"address,omitempty" binding:"omitempty,max=255"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// UpdateProfile 更新个人资料
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, req *UpdateProfileRequest) (*models.User, error) {
	fields := map[string]interface{}{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Phone != nil {
		fields["phone"] = *req.Phone
	}
	if req.Address != nil {
		fields["address"] = *req.Address
	}
	if req.Latitude != nil {
		fields["latitude"] = *req.Latitude
	}
	if req.Longitude != nil {
		fields["longitude"] = *req.Longitude
	}
	if len(fields) > 0 {
		if err := s.userRepo.UpdateFields(ctx, userID, fields); err != nil {
			return nil, apperrors.ErrDatabaseError.WithError(err)
		}
	}
	return s.Me(ctx, userID)
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6,max=64"`
}

// ChangePassword 修改密码
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, req *ChangePasswordRequest) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if !crypto.VerifyPassword(req.OldPassword, user.PasswordHash) {
		return apperrors.ErrPasswordError
	}

	hash, err := crypto.HashPassword(req.NewPassword)
	if err != nil {
		return apperrors.ErrInternalError.WithError(err)
	}
	if err := s.userRepo.UpdateFields(ctx, userID, map[string]interface{}{"password_hash": hash}); err != nil {
		return apperrors.ErrDatabaseError.WithError(err)
	}
	return nil
}
