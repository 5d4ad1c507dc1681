package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"phonehub/internal/domain/user/model"
	"phonehub/internal/domain/user/repository"
	"phonehub/internal/pkg/notify"
	"phonehub/internal/pkg/otp"
	"phonehub/pkg/logger"
	"phonehub/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Notifier 事务外写入 outbox
type Notifier interface {
	Enqueue(ctx context.Context, msgs ...*notify.Message) error
}

// AuthResult 注册/登录返回
type AuthResult struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// ProfileInput 资料修改，空字段表示不修改
type ProfileInput struct {
	Name            string
	Email           string
	CurrentPassword string
	NewPassword     string
}

// UserService 用户服务接口
type UserService interface {
	Register(ctx context.Context, name, email, password string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserWithStats(ctx context.Context, id string) (*model.User, error)
	UpdateProfile(ctx context.Context, id string, in ProfileInput) (*model.User, error)
	ListUsers(ctx context.Context, search, role string, p *utils.Pagination) ([]model.User, int64, error)
}

// userService 实现
type userService struct {
	repo        repository.UserRepository
	tokens      *utils.TokenIssuer
	resets      otp.TokenStore
	outbox      Notifier
	frontendURL string
}

// NewUserService 创建用户服务
func NewUserService(repo repository.UserRepository, tokens *utils.TokenIssuer, resets otp.TokenStore, outbox Notifier, frontendURL string) UserService {
	return &userService{
		repo:        repo,
		tokens:      tokens,
		resets:      resets,
		outbox:      outbox,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// Register 注册并发送欢迎邮件
func (s *userService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:     strings.TrimSpace(name),
		Email:    email,
		Password: hash,
		Role:     model.RoleUser,
	}
	// 并发注册同一邮箱时由唯一索引兜底
	if err := s.repo.Create(ctx, user, welcomeEmail(user)); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	return s.issue(user)
}

// Login 邮箱密码登录，并通知新登录
func (s *userService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	// 通知失败不影响登录
	if err := s.outbox.Enqueue(ctx, loginEmail(user)); err != nil {
		logger.Log.Warn("enqueue login email failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	return s.issue(user)
}

// ForgotPassword 无论邮箱是否存在都返回 nil，避免暴露注册信息
func (s *userService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	token, err := s.resets.Issue(ctx, user.ID)
	if err != nil {
		if errors.Is(err, otp.ErrTooFrequent) {
			return nil
		}
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, url.QueryEscape(token))
	return s.outbox.Enqueue(ctx, resetEmail(user, resetURL))
}

// ResetPassword 令牌一次有效
func (s *userService) ResetPassword(ctx context.Context, token, password string) error {
	userID, err := s.resets.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, otp.ErrInvalidToken) {
			return ErrInvalidResetToken
		}
		return err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	return nil
}

// GetUser 获取单个用户
func (s *userService) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *userService) GetUserWithStats(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.GetWithStats(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// UpdateProfile 修改姓名/邮箱，同时给出当前密码与新密码时修改密码
func (s *userService) UpdateProfile(ctx context.Context, id string, in ProfileInput) (*model.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		user.Name = name
	}

	if email := normalizeEmail(in.Email); email != "" && email != user.Email {
		if _, err := s.repo.GetByEmail(ctx, email); err == nil {
			return nil, ErrUserExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		user.Email = email
	}

	if in.CurrentPassword != "" && in.NewPassword != "" {
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.CurrentPassword)) != nil {
			return nil, ErrWrongPassword
		}
		hash, err := hashPassword(in.NewPassword)
		if err != nil {
			return nil, err
		}
		user.Password = hash
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return user, nil
}

// ListUsers 管理端用户列表
func (s *userService) ListUsers(ctx context.Context, search, role string, p *utils.Pagination) ([]model.User, int64, error) {
	offset, limit := p.GetPageOffset()
	return s.repo.List(ctx, repository.ListFilter{
		Search: search,
		Role:   role,
		Offset: offset,
		Limit:  limit,
	})
}

func (s *userService) issue(user *model.User) (*AuthResult, error) {
	token, expireAt, err := s.tokens.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: *expireAt}, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
