package database

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// AlertRepo 告警数据仓库
type AlertRepo struct {
	db *gorm.DB
}

func NewAlertRepo(db *gorm.DB) *AlertRepo {
	return &AlertRepo{db: db}
}

// Create 创建告警记录
func (r *AlertRepo) Create(ctx context.Context, alert *Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

// RecentForDevice 获取设备最近 N 条告警
func (r *AlertRepo) RecentForDevice(ctx context.Context, deviceID uint, limit int) ([]Alert, error) {
	var alerts []Alert
	err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).Order("id desc").Limit(limit).Find(&alerts).Error
	return alerts, err
}

// LatestForDevice 获取设备最新告警；无告警时返回 gorm.ErrRecordNotFound
func (r *AlertRepo) LatestForDevice(ctx context.Context, deviceID uint) (*Alert, error) {
	var a Alert
	if err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).Order("id desc").First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// CountSince 统计 timestamp >= since 的告警数；deviceID 为 nil 时统计全部设备
func (r *AlertRepo) CountSince(ctx context.Context, since time.Time, deviceID *uint) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&Alert{}).Where("timestamp >= ?", since)
	if deviceID != nil {
		q = q.Where("device_id = ?", *deviceID)
	}
	err := q.Count(&count).Error
	return count, err
}

// List 分页查询告警
func (r *AlertRepo) List(ctx context.Context, filter AlertFilter) ([]Alert, int64, error) {
	var alerts []Alert
	var total int64

	q := r.db.WithContext(ctx).Model(&Alert{})
	if filter.DeviceID != 0 {
		q = q.Where("device_id = ?", filter.DeviceID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if !filter.Since.IsZero() {
		q = q.Where("timestamp >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("timestamp <= ?", filter.Until)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortOrder := filter.SortOrder
	if sortOrder != "asc" {
		sortOrder = "desc"
	}

	err := q.Order("timestamp " + sortOrder).Order("id " + sortOrder).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&alerts).Error
	return alerts, total, err
}

// AlertFilter 告警查询筛选条件
type AlertFilter struct {
	Page      int
	PageSize  int
	SortOrder string
	DeviceID  uint
	Type      string
	Since     time.Time
	Until     time.Time
}

func (f *AlertFilter) Offset() int {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	return (f.Page - 1) * f.PageSize
}
