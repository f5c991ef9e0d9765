package database

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// ActivityRepo 活动日志数据仓库
type ActivityRepo struct {
	db *gorm.DB
}

func NewActivityRepo(db *gorm.DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

// ActivityScope 限定查询的设备范围；DeviceIDs 为 nil 表示全部设备
type ActivityScope struct {
	DeviceIDs []uint
	Start     time.Time
	End       time.Time
}

func (s ActivityScope) apply(q *gorm.DB) *gorm.DB {
	q = q.Where("timestamp >= ? AND timestamp < ?", s.Start, s.End)
	if s.DeviceIDs != nil {
		q = q.Where("device_id IN ?", s.DeviceIDs)
	}
	return q
}

// Create 创建活动记录
func (r *ActivityRepo) Create(ctx context.Context, log *ActivityLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// Recent 获取最近 N 条活动
func (r *ActivityRepo) Recent(ctx context.Context, limit int) ([]ActivityLog, error) {
	var logs []ActivityLog
	err := r.db.WithContext(ctx).Order("timestamp desc").Order("id desc").Limit(limit).Find(&logs).Error
	return logs, err
}

// InRange 返回时长为正的记录，按时间正序
func (r *ActivityRepo) InRange(ctx context.Context, scope ActivityScope) ([]ActivityLog, error) {
	if scope.DeviceIDs != nil && len(scope.DeviceIDs) == 0 {
		return nil, nil
	}
	var logs []ActivityLog
	err := scope.apply(r.db.WithContext(ctx).Model(&ActivityLog{})).
		Where("duration_seconds > 0").
		Order("timestamp asc").Order("id asc").
		Find(&logs).Error
	return logs, err
}

// SumDuration 按 screen_time 分组累计时长
func (r *ActivityRepo) SumDuration(ctx context.Context, scope ActivityScope) (focused, screen int64, err error) {
	if scope.DeviceIDs != nil && len(scope.DeviceIDs) == 0 {
		return 0, 0, nil
	}
	type result struct {
		ScreenTime bool
		Total      int64
	}
	var results []result
	err = scope.apply(r.db.WithContext(ctx).Model(&ActivityLog{})).
		Select("screen_time, COALESCE(SUM(duration_seconds), 0) AS total").
		Where("duration_seconds > 0").
		Group("screen_time").
		Find(&results).Error
	if err != nil {
		return 0, 0, err
	}
	for _, res := range results {
		if res.ScreenTime {
			screen += res.Total
		} else {
			focused += res.Total
		}
	}
	return focused, screen, nil
}

// Count 统计活动总数
func (r *ActivityRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&ActivityLog{}).Count(&count).Error
	return count, err
}
