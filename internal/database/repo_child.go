package database

import (
	"context"

	"gorm.io/gorm"
)

// ChildRepo 孩子档案数据仓库
type ChildRepo struct {
	db *gorm.DB
}

func NewChildRepo(db *gorm.DB) *ChildRepo {
	return &ChildRepo{db: db}
}

func (r *ChildRepo) Create(ctx context.Context, child *Child) error {
	return r.db.WithContext(ctx).Omit("Devices").Create(child).Error
}

// FindByID 查询孩子档案并预加载其设备
func (r *ChildRepo) FindByID(ctx context.Context, id uint) (*Child, error) {
	var c Child
	err := r.db.WithContext(ctx).
		Preload("Devices", func(db *gorm.DB) *gorm.DB { return db.Order("last_seen desc") }).
		First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List 按创建时间倒序列出孩子及其设备
func (r *ChildRepo) List(ctx context.Context) ([]Child, error) {
	var children []Child
	err := r.db.WithContext(ctx).
		Preload("Devices", func(db *gorm.DB) *gorm.DB { return db.Order("last_seen desc") }).
		Order("created_at desc").Order("id desc").
		Find(&children).Error
	return children, err
}

func (r *ChildRepo) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Child{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
