package repository

import (
	"context"
	"errors"
	"strings"

	"phonehub/internal/domain/user/model"
	"phonehub/internal/pkg/notify"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrEmailTaken 邮箱唯一索引冲突
var ErrEmailTaken = errors.New("email already registered")

// ListFilter 管理端用户列表筛选
type ListFilter struct {
	Search string
	Role   string
	Offset int
	Limit  int
}

// UserRepository 接口定义
type UserRepository interface {
	// Create 创建用户并在同一事务内写入 outbox 消息
	Create(ctx context.Context, user *model.User, msgs ...*notify.Message) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetWithStats(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context, filter ListFilter) ([]model.User, int64, error)
	Update(ctx context.Context, user *model.User) error
	UpdatePassword(ctx context.Context, id, hash string) error
}

// userRepository 实现
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建新的仓库实例
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

const orderCountSelect = "users.*, (SELECT COUNT(*) FROM orders o WHERE o.user_id = users.id) AS order_count"

func (r *userRepository) Create(ctx context.Context, user *model.User, msgs ...*notify.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return notify.Enqueue(tx, msgs...)
	})
	return translate(err)
}

// GetByID 根据ID获取用户
func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail 邮箱大小写不敏感
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetWithStats 附带订单数量
func (r *userRepository) GetWithStats(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Select(orderCountSelect).
		Where("users.id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List 获取用户列表（分页），按注册时间倒序
func (r *userRepository) List(ctx context.Context, filter ListFilter) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	where := func(db *gorm.DB) *gorm.DB {
		if s := strings.TrimSpace(filter.Search); s != "" {
			like := "%" + s + "%"
			db = db.Where("users.name ILIKE ? OR users.email ILIKE ?", like, like)
		}
		if filter.Role != "" {
			db = db.Where("users.role = ?", filter.Role)
		}
		return db
	}

	if err := r.db.WithContext(ctx).Model(&model.User{}).Scopes(where).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Scopes(where).
		Select(orderCountSelect).
		Order("users.created_at DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Update 更新资料 (姓名、邮箱、密码)
func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).Model(user).
		Select("name", "email", "password").
		Updates(user).Error
	return translate(err)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("password", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// translate 将唯一索引冲突转换为领域错误
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrEmailTaken
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
