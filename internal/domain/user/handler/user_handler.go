package handler

import (
	"errors"
	"net/http"

	"phonehub/internal/domain/user/model"
	"phonehub/internal/domain/user/service"
	"phonehub/internal/pkg/middleware"
	"phonehub/pkg/response"
	"phonehub/pkg/utils"

	"github.com/gin-gonic/gin"
)

// UserHandler 用户处理器
type UserHandler struct {
	service service.UserService
}

// NewUserHandler 创建处理器
func NewUserHandler(service service.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// RegisterInput 注册输入
type RegisterInput struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginInput 登录输入
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordInput struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordInput struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

// UpdateProfileInput 字段均可选；修改密码需同时提供当前密码
type UpdateProfileInput struct {
	Name            string `json:"name" binding:"omitempty,min=2,max=100"`
	Email           string `json:"email" binding:"omitempty,email"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" binding:"omitempty,min=6"`
}

type ListUsersQuery struct {
	utils.Pagination
	Search string `form:"search"`
	Role   string `form:"role"`
}

// Register 处理注册请求
// @Summary 注册
// @Tags Auth
// @Accept json
// @Produce json
// @Param input body RegisterInput true "Register Info"
// @Success 201 {object} response.Response{data=service.AuthResult}
// @Router /auth/register [post]
func (h *UserHandler) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	res, err := h.service.Register(c.Request.Context(), input.Name, input.Email, input.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Created(c, "User registered successfully", res)
}

// Login 处理登录请求
// @Summary 登录
// @Tags Auth
// @Accept json
// @Produce json
// @Param input body LoginInput true "Credentials"
// @Success 200 {object} response.Response{data=service.AuthResult}
// @Router /auth/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	res, err := h.service.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.SuccessWithMessage(c, "Login successful", res)
}

// ForgotPassword 发送重置链接
// @Summary 忘记密码
// @Tags Auth
// @Accept json
// @Param input body ForgotPasswordInput true "Email"
// @Success 200 {object} response.Response
// @Router /auth/forgot-password [post]
func (h *UserHandler) ForgotPassword(c *gin.Context) {
	var input ForgotPasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	if err := h.service.ForgotPassword(c.Request.Context(), input.Email); err != nil {
		response.ServerError(c, err)
		return
	}

	response.SuccessWithMessage(c, "If your email is registered, you will receive a password reset link", nil)
}

// ResetPassword 通过令牌重置密码
// @Summary 重置密码
// @Tags Auth
// @Accept json
// @Param input body ResetPasswordInput true "Token and new password"
// @Success 200 {object} response.Response
// @Router /auth/reset-password [post]
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var input ResetPasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), input.Token, input.Password); err != nil {
		h.fail(c, err)
		return
	}

	response.SuccessWithMessage(c, "Password reset successful", nil)
}

// Me 当前登录用户
// @Summary 当前用户
// @Tags Auth
// @Security BearerAuth
// @Success 200 {object} response.Response{data=model.User}
// @Router /auth/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.service.GetUser(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"user": user})
}

// UpdateProfile 修改个人资料
// @Summary 修改资料
// @Tags Users
// @Security BearerAuth
// @Accept json
// @Param input body UpdateProfileInput true "Profile"
// @Success 200 {object} response.Response{data=model.User}
// @Router /users/profile [put]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var input UpdateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), middleware.CurrentUserID(c), service.ProfileInput{
		Name:            input.Name,
		Email:           input.Email,
		CurrentPassword: input.CurrentPassword,
		NewPassword:     input.NewPassword,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	response.SuccessWithMessage(c, "Profile updated successfully", gin.H{"user": user})
}

// ListUsers 管理端用户列表
// @Summary 用户列表
// @Tags Users
// @Security BearerAuth
// @Param search query string false "name or email"
// @Param role query string false "USER or ADMIN"
// @Param page query int false "page"
// @Param limit query int false "limit"
// @Success 200 {object} response.Response
// @Router /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	var q ListUsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	if q.Role != "" && !model.ValidRole(q.Role) {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid role")
		return
	}

	users, total, err := h.service.ListUsers(c.Request.Context(), q.Search, q.Role, &q.Pagination)
	if err != nil {
		response.ServerError(c, err)
		return
	}

	response.Success(c, gin.H{
		"users":      users,
		"pagination": q.Pagination.Meta(total),
	})
}

// GetUser 管理端用户详情
// @Summary 用户详情
// @Tags Users
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Response{data=model.User}
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.service.GetUserWithStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"user": user})
}

// fail 领域错误到 HTTP 状态码的映射
func (h *UserHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserExists):
		response.Error(c, http.StatusBadRequest, response.ErrUserExists, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, response.ErrAuthFailed, "Invalid email or password")
	case errors.Is(err, service.ErrUserNotFound):
		response.Error(c, http.StatusNotFound, response.ErrUserNotFound, "User not found")
	case errors.Is(err, service.ErrInvalidResetToken):
		response.Error(c, http.StatusBadRequest, response.ErrResetToken, "Invalid or expired token")
	case errors.Is(err, service.ErrWrongPassword):
		response.Error(c, http.StatusBadRequest, response.ErrAuthFailed, "Current password is incorrect")
	default:
		response.ServerError(c, err)
	}
}
