package database

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LiveStatusRepo 实时应用状态数据仓库
type LiveStatusRepo struct {
	db *gorm.DB
}

func NewLiveStatusRepo(db *gorm.DB) *LiveStatusRepo {
	return &LiveStatusRepo{db: db}
}

// ReplaceForDevice 先将设备全部应用标记为未运行，再把上报的应用写为运行中；两步共用一个事务
func (r *LiveStatusRepo) ReplaceForDevice(ctx context.Context, deviceID uint, apps []LiveAppStatus, seenAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&LiveAppStatus{}).
			Where("device_id = ?", deviceID).
			Update("is_running", false).Error; err != nil {
			return err
		}
		for i := range apps {
			row := LiveAppStatus{
				DeviceID:    deviceID,
				AppName:     apps[i].AppName,
				WindowTitle: apps[i].WindowTitle,
				IsRunning:   true,
				LastSeen:    seenAt,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "device_id"}, {Name: "app_name"}},
				DoUpdates: clause.AssignmentColumns([]string{"window_title", "is_running", "last_seen"}),
			}).Create(&row).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Running 返回指定时间之后仍在运行的应用
func (r *LiveStatusRepo) Running(ctx context.Context, deviceID uint, since time.Time) ([]LiveAppStatus, error) {
	var rows []LiveAppStatus
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND is_running = ? AND last_seen >= ?", deviceID, true, since).
		Order("app_name asc").
		Find(&rows).Error
	return rows, err
}

// ForDevice 返回设备的全部状态行（含已停止）
func (r *LiveStatusRepo) ForDevice(ctx context.Context, deviceID uint) ([]LiveAppStatus, error) {
	var rows []LiveAppStatus
	err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).Order("app_name asc").Find(&rows).Error
	return rows, err
}
