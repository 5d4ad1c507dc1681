package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`    // 业务码
	Message string      `json:"message"` // 提示信息
	Data    interface{} `json:"data"`    // 数据
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应 (HTTP 201)
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// SuccessWithMessage 带提示信息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, httpCode int, errCode int, msg string) {
	c.JSON(httpCode, Response{
		Code:    errCode,
		Message: msg,
		Data:    nil,
	})
}

// ErrorWithData 错误响应，附带细节 (如支付网关返回)
func ErrorWithData(c *gin.Context, httpCode int, errCode int, msg string, data interface{}) {
	c.JSON(httpCode, Response{
		Code:    errCode,
		Message: msg,
		Data:    data,
	})
}

// exposeErrors 为 true 时 500 响应携带原始错误信息，仅用于开发环境
var exposeErrors bool

// SetDebug 由启动流程根据 app.debug 设置
func SetDebug(debug bool) {
	exposeErrors = debug
}

// ServerError 500 响应，错误挂到 gin 上下文供日志中间件输出
func ServerError(c *gin.Context, err error) {
	msg := "Internal server error"
	if err != nil {
		_ = c.Error(err)
		if exposeErrors {
			msg = err.Error()
		}
	}
	Error(c, http.StatusInternalServerError, ErrServerInternal, msg)
}
