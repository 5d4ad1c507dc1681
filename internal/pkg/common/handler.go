package common

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"phonehub/internal/pkg/uploader"
	"phonehub/pkg/response"

	"github.com/gin-gonic/gin"
)

// maxParallelUploads 单次请求的并发上传数
const maxParallelUploads = 5

// Pinger 健康检查依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc 适配函数为 Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Handler struct {
	uploader uploader.Uploader
	checks   map[string]Pinger
}

// NewHandler up 可为 nil，此时上传接口返回 503
func NewHandler(up uploader.Uploader, checks map[string]Pinger) *Handler {
	return &Handler{uploader: up, checks: checks}
}

// Health 健康检查
// @Summary 健康检查
// @Tags Common
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{}
	healthy := true
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		response.ErrorWithData(c, http.StatusServiceUnavailable, response.ErrServerInternal, "unhealthy", status)
		return
	}
	response.Success(c, gin.H{"status": "ok", "checks": status})
}

// UploadFiles 上传文件 (支持批量)
// @Summary 上传文件到 OSS (支持批量)
// @Tags Common
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param files formData file true "Files"
// @Success 200 {object} response.Response{data=[]string} "URLs"
// @Router /upload [post]
func (h *Handler) UploadFiles(c *gin.Context) {
	if h.uploader == nil {
		response.Error(c, http.StatusServiceUnavailable, response.ErrServerInternal, "Uploader not configured")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid form data")
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "No files uploaded")
		return
	}

	urls, err := uploadAll(h.uploader, "uploads", files)
	if err != nil {
		if errors.Is(err, uploader.ErrUnsupportedType) {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
			return
		}
		response.ServerError(c, err)
		return
	}
	response.Success(c, urls)
}

// uploadAll 并发上传，结果顺序与输入一致，遇到第一个错误即返回
func uploadAll(up uploader.Uploader, dir string, files []*multipart.FileHeader) ([]string, error) {
	urls := make([]string, len(files))

	var wg sync.WaitGroup
	var errOnce sync.Once
	var uploadErr error
	sem := make(chan struct{}, maxParallelUploads)

	for i, file := range files {
		wg.Add(1)
		go func(index int, f *multipart.FileHeader) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			url, err := up.UploadFile(dir, f)
			if err != nil {
				errOnce.Do(func() { uploadErr = err })
				return
			}
			urls[index] = url
		}(i, file)
	}
	wg.Wait()

	if uploadErr != nil {
		return nil, uploadErr
	}
	return urls, nil
}
