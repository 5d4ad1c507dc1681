package handler

import (
	"errors"
	"net/http"

	"phonehub/internal/domain/product/service"
	"phonehub/internal/pkg/uploader"
	"phonehub/pkg/response"
	"phonehub/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const maxImagesPerUpload = 10

type ProductHandler struct {
	service service.ProductService
}

func NewProductHandler(service service.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

type CreateProductInput struct {
	Name           string                 `json:"name" binding:"required,min=3,max=200"`
	Description    string                 `json:"description" binding:"required,min=10"`
	Price          decimal.Decimal        `json:"price" binding:"required" swaggertype:"string"`
	Stock          *int                   `json:"stock" binding:"required,min=0"`
	Category       string                 `json:"category" binding:"required"`
	Features       []string               `json:"features"`
	Specifications map[string]interface{} `json:"specifications"`
}

type UpdateProductInput struct {
	Name           *string                `json:"name" binding:"omitempty,min=3,max=200"`
	Description    *string                `json:"description" binding:"omitempty,min=10"`
	Price          *decimal.Decimal       `json:"price" swaggertype:"string"`
	Stock          *int                   `json:"stock" binding:"omitempty,min=0"`
	Category       *string                `json:"category" binding:"omitempty,min=1"`
	Features       []string               `json:"features"`
	Specifications map[string]interface{} `json:"specifications"`
}

type ListProductsQuery struct {
	utils.Pagination
	Category string `form:"category"`
	Search   string `form:"search"`
	MinPrice string `form:"minPrice"`
	MaxPrice string `form:"maxPrice"`
	Sort     string `form:"sort" binding:"omitempty,oneof=createdAt price name stock"`
	Order    string `form:"order" binding:"omitempty,oneof=asc desc"`
}

// ListProducts 商品列表
// @Summary 商品列表
// @Tags Products
// @Produce json
// @Param category query string false "category"
// @Param search query string false "name or description"
// @Param minPrice query string false "min price"
// @Param maxPrice query string false "max price"
// @Param sort query string false "createdAt|price|name|stock"
// @Param order query string false "asc|desc"
// @Param page query int false "page"
// @Param limit query int false "limit"
// @Success 200 {object} response.Response
// @Router /products [get]
func (h *ProductHandler) ListProducts(c *gin.Context) {
	var q ListProductsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	minPrice, err := parsePrice(q.MinPrice)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid minPrice")
		return
	}
	maxPrice, err := parsePrice(q.MaxPrice)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid maxPrice")
		return
	}

	products, total, err := h.service.List(c.Request.Context(), service.ListQuery{
		Category: q.Category,
		Search:   q.Search,
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Sort:     q.Sort,
		Order:    q.Order,
	}, &q.Pagination)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"products":   products,
		"pagination": q.Pagination.Meta(total),
	})
}

// GetProduct 商品详情
// @Summary 商品详情
// @Tags Products
// @Param id path string true "Product ID"
// @Success 200 {object} response.Response{data=model.Product}
// @Router /products/{id} [get]
func (h *ProductHandler) GetProduct(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"product": p})
}

// CreateProduct 创建商品
// @Summary 创建商品
// @Tags Products
// @Security BearerAuth
// @Accept json
// @Param input body CreateProductInput true "Product"
// @Success 201 {object} response.Response{data=model.Product}
// @Router /products [post]
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var input CreateProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	if !input.Price.IsPositive() {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Price must be positive")
		return
	}

	p, err := h.service.Create(c.Request.Context(), service.ProductInput{
		Name:           input.Name,
		Description:    input.Description,
		Price:          input.Price,
		Stock:          *input.Stock,
		Category:       input.Category,
		Features:       input.Features,
		Specifications: input.Specifications,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, "Product created successfully", gin.H{"product": p})
}

// UpdateProduct 更新商品
// @Summary 更新商品
// @Tags Products
// @Security BearerAuth
// @Accept json
// @Param id path string true "Product ID"
// @Param input body UpdateProductInput true "Fields to update"
// @Success 200 {object} response.Response{data=model.Product}
// @Router /products/{id} [put]
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	var input UpdateProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	if input.Price != nil && !input.Price.IsPositive() {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Price must be positive")
		return
	}

	p, err := h.service.Update(c.Request.Context(), c.Param("id"), service.ProductPatch{
		Name:           input.Name,
		Description:    input.Description,
		Price:          input.Price,
		Stock:          input.Stock,
		Category:       input.Category,
		Features:       input.Features,
		Specifications: input.Specifications,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "Product updated successfully", gin.H{"product": p})
}

// DeleteProduct 删除商品
// @Summary 删除商品
// @Tags Products
// @Security BearerAuth
// @Param id path string true "Product ID"
// @Success 200 {object} response.Response
// @Router /products/{id} [delete]
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "Product deleted successfully", nil)
}

// UploadImages 上传商品图片 (multipart, 字段名 images)
// @Summary 上传商品图片
// @Tags Products
// @Security BearerAuth
// @Accept multipart/form-data
// @Param id path string true "Product ID"
// @Param images formData file true "Image files"
// @Success 200 {object} response.Response{data=model.Product}
// @Router /products/{id}/images [post]
func (h *ProductHandler) UploadImages(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Multipart form required")
		return
	}
	files := form.File["images"]
	if len(files) == 0 || len(files) > maxImagesPerUpload {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Between 1 and 10 images required")
		return
	}

	p, err := h.service.UploadImages(c.Request.Context(), c.Param("id"), files)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "Images uploaded successfully", gin.H{"product": p})
}

func (h *ProductHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		response.Error(c, http.StatusNotFound, response.ErrProductNotFound, "Product not found")
	case errors.Is(err, service.ErrInvalidPriceSpan):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
	case errors.Is(err, uploader.ErrUnsupportedType):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Only jpg, png, webp and gif images are allowed")
	case errors.Is(err, service.ErrUploadDisabled):
		response.Error(c, http.StatusServiceUnavailable, response.ErrServerInternal, err.Error())
	default:
		response.ServerError(c, err)
	}
}

func parsePrice(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return nil, errors.New("invalid price")
	}
	return &d, nil
}
