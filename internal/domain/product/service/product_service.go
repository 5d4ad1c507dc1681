package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"phonehub/internal/domain/product/model"
	"phonehub/internal/domain/product/repository"
	"phonehub/internal/pkg/uploader"
	"phonehub/pkg/cache"
	"phonehub/pkg/logger"
	"phonehub/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrUploadDisabled   = errors.New("image upload is not configured")
	ErrInvalidPriceSpan = errors.New("minPrice must not exceed maxPrice")
)

const productCacheTTL = 10 * time.Minute

// ProductInput 创建/全量字段
type ProductInput struct {
	Name           string
	Description    string
	Price          decimal.Decimal
	Stock          int
	Category       string
	Features       []string
	Specifications map[string]interface{}
}

// ProductPatch 部分更新，nil 表示不修改
type ProductPatch struct {
	Name           *string
	Description    *string
	Price          *decimal.Decimal
	Stock          *int
	Category       *string
	Features       []string
	Specifications map[string]interface{}
}

type ListQuery struct {
	Category string
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     string
	Order    string
}

type ProductService interface {
	List(ctx context.Context, q ListQuery, p *utils.Pagination) ([]model.Product, int64, error)
	Get(ctx context.Context, id string) (*model.Product, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.Product, error)
	Create(ctx context.Context, in ProductInput) (*model.Product, error)
	Update(ctx context.Context, id string, patch ProductPatch) (*model.Product, error)
	Delete(ctx context.Context, id string) error
	UploadImages(ctx context.Context, id string, files []*multipart.FileHeader) (*model.Product, error)
	// Invalidate 库存在其他模块被修改后清理缓存
	Invalidate(ctx context.Context, ids ...string)
}

type productService struct {
	repo     repository.ProductRepository
	cache    cache.CacheService
	uploader uploader.Uploader
}

// NewProductService uploader 可为 nil，此时图片上传接口返回 ErrUploadDisabled
func NewProductService(repo repository.ProductRepository, c cache.CacheService, up uploader.Uploader) ProductService {
	return &productService{repo: repo, cache: c, uploader: up}
}

func cacheKey(id string) string {
	return "product:" + id
}

func (s *productService) List(ctx context.Context, q ListQuery, p *utils.Pagination) ([]model.Product, int64, error) {
	if q.MinPrice != nil && q.MaxPrice != nil && q.MinPrice.GreaterThan(*q.MaxPrice) {
		return nil, 0, ErrInvalidPriceSpan
	}
	offset, limit := p.GetPageOffset()
	return s.repo.List(ctx, repository.ListFilter{
		Category: q.Category,
		Search:   q.Search,
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
		Sort:     q.Sort,
		Order:    q.Order,
		Offset:   offset,
		Limit:    limit,
	})
}

// Get 先读缓存，未命中回源并回填
func (s *productService) Get(ctx context.Context, id string) (*model.Product, error) {
	var cached model.Product
	if err := s.cache.Get(ctx, cacheKey(id), &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Log.Warn("product cache read failed", zap.String("product_id", id), zap.Error(err))
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	if err := s.cache.Set(ctx, cacheKey(id), p, productCacheTTL); err != nil {
		logger.Log.Warn("product cache write failed", zap.String("product_id", id), zap.Error(err))
	}
	return p, nil
}

// FindByIDs 下单路径直接读库，库存必须是最新值
func (s *productService) FindByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	return s.repo.FindByIDs(ctx, ids)
}

func (s *productService) Create(ctx context.Context, in ProductInput) (*model.Product, error) {
	p := &model.Product{
		Name:           in.Name,
		Description:    in.Description,
		Price:          in.Price.Round(2),
		Stock:          in.Stock,
		Category:       in.Category,
		Features:       in.Features,
		Specifications: in.Specifications,
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	if p.Specifications == nil {
		p.Specifications = map[string]interface{}{}
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	p.Images = []model.ProductImage{}
	return p, nil
}

func (s *productService) Update(ctx context.Context, id string, patch ProductPatch) (*model.Product, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = patch.Price.Round(2)
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Features != nil {
		p.Features = patch.Features
	}
	if patch.Specifications != nil {
		p.Specifications = patch.Specifications
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	s.invalidate(ctx, id)
	return p, nil
}

func (s *productService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// UploadImages 逐个上传到对象存储后追加到商品图片
func (s *productService) UploadImages(ctx context.Context, id string, files []*multipart.FileHeader) (*model.Product, error) {
	if s.uploader == nil {
		return nil, ErrUploadDisabled
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(files))
	for _, f := range files {
		url, err := s.uploader.UploadFile("products/"+id, f)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", f.Filename, err)
		}
		urls = append(urls, url)
	}
	if err := s.repo.AddImages(ctx, id, urls); err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	return s.load(ctx, id)
}

func (s *productService) load(ctx context.Context, id string) (*model.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *productService) Invalidate(ctx context.Context, ids ...string) {
	for _, id := range ids {
		s.invalidate(ctx, id)
	}
}

func (s *productService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, cacheKey(id)); err != nil {
		logger.Log.Warn("product cache invalidate failed", zap.String("product_id", id), zap.Error(err))
	}
}
