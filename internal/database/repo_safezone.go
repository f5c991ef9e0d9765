package database

import (
	"context"

	"gorm.io/gorm"
)

// SafeZoneRepo 安全区域数据仓库
type SafeZoneRepo struct {
	db *gorm.DB
}

func NewSafeZoneRepo(db *gorm.DB) *SafeZoneRepo {
	return &SafeZoneRepo{db: db}
}

func (r *SafeZoneRepo) Create(ctx context.Context, zone *SafeZone) error {
	return r.db.WithContext(ctx).Create(zone).Error
}

func (r *SafeZoneRepo) ListByChild(ctx context.Context, childID uint) ([]SafeZone, error) {
	var zones []SafeZone
	err := r.db.WithContext(ctx).Where("child_id = ?", childID).Order("id asc").Find(&zones).Error
	return zones, err
}

func (r *SafeZoneRepo) Delete(ctx context.Context, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&SafeZone{}, id)
	return res.RowsAffected, res.Error
}
