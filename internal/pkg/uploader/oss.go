package uploader

import (
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"phonehub/internal/pkg/config"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/google/uuid"
)

// ErrUnsupportedType 仅允许上传图片
var ErrUnsupportedType = errors.New("unsupported file type")

var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

type Uploader interface {
	// UploadFile 上传到 dir 目录并返回公网 URL
	UploadFile(dir string, file *multipart.FileHeader) (string, error)
}

type AliyunOSSUploader struct {
	bucket *oss.Bucket
	config config.OSSConfig
}

// NewAliyunOSSUploader 未配置 OSS 时返回 (nil, nil)，上层据此关闭上传接口
func NewAliyunOSSUploader(cfg config.OSSConfig) (*AliyunOSSUploader, error) {
	if cfg.Endpoint == "" || cfg.BucketName == "" {
		return nil, nil
	}
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("oss client: %w", err)
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("oss bucket: %w", err)
	}

	return &AliyunOSSUploader{
		bucket: bucket,
		config: cfg,
	}, nil
}

func (u *AliyunOSSUploader) UploadFile(dir string, file *multipart.FileHeader) (string, error) {
	key, contentType, err := objectKey(dir, file.Filename, time.Now())
	if err != nil {
		return "", err
	}

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := u.bucket.PutObject(key, src, oss.ContentType(contentType)); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	// bucket 为 public-read 或挂了 CDN，直接拼接公网地址
	return fmt.Sprintf("https://%s.%s/%s", u.config.BucketName, u.config.Endpoint, key), nil
}

// objectKey 生成 dir/YYYYMMDD/uuid.ext
func objectKey(dir, filename string, now time.Time) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := allowedExt[ext]
	if !ok {
		return "", "", ErrUnsupportedType
	}
	dir = strings.Trim(dir, "/")
	key := fmt.Sprintf("%s/%s%s", now.Format("20060102"), uuid.New().String(), ext)
	if dir != "" {
		key = dir + "/" + key
	}
	return key, contentType, nil
}
