package database

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// LocationRepo 位置数据仓库
type LocationRepo struct {
	db *gorm.DB
}

func NewLocationRepo(db *gorm.DB) *LocationRepo {
	return &LocationRepo{db: db}
}

func (r *LocationRepo) Create(ctx context.Context, loc *Location) error {
	return r.db.WithContext(ctx).Create(loc).Error
}

// Latest 获取设备最新位置；无记录时返回 gorm.ErrRecordNotFound
func (r *LocationRepo) Latest(ctx context.Context, deviceID uint) (*Location, error) {
	var loc Location
	err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("timestamp desc").Order("id desc").
		First(&loc).Error
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// History 按时间倒序返回位置记录；start/end 为空时不过滤日期
func (r *LocationRepo) History(ctx context.Context, deviceID uint, start, end *time.Time, limit int) ([]Location, error) {
	var locs []Location
	q := r.db.WithContext(ctx).Where("device_id = ?", deviceID)
	if start != nil && end != nil {
		q = q.Where("timestamp >= ? AND timestamp < ?", *start, *end)
	}
	err := q.Order("timestamp desc").Order("id desc").Limit(limit).Find(&locs).Error
	return locs, err
}
