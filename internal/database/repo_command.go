package database

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommandRepo 控制指令数据仓库
type CommandRepo struct {
	db *gorm.DB
}

func NewCommandRepo(db *gorm.DB) *CommandRepo {
	return &CommandRepo{db: db}
}

// Activate 按 (device, app, action) 插入或更新指令为有效，刷新 created_at 并写入 schedule
func (r *CommandRepo) Activate(ctx context.Context, deviceID uint, appName, action string, schedule *string, at time.Time) (*ControlCommand, error) {
	var out ControlCommand
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return activate(tx, deviceID, appName, action, schedule, at, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Relaunch 在同一事务中失效 kill 指令并激活 relaunch 指令
func (r *CommandRepo) Relaunch(ctx context.Context, deviceID uint, appName string, killAction, relaunchAction string, at time.Time) (*ControlCommand, error) {
	var out ControlCommand
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&ControlCommand{}).
			Where("device_id = ? AND app_name = ? AND action = ?", deviceID, appName, killAction).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return activate(tx, deviceID, appName, relaunchAction, nil, at, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func activate(tx *gorm.DB, deviceID uint, appName, action string, schedule *string, at time.Time, out *ControlCommand) error {
	row := ControlCommand{
		DeviceID:  deviceID,
		AppName:   appName,
		Action:    action,
		Schedule:  schedule,
		IsActive:  true,
		CreatedAt: at,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}, {Name: "app_name"}, {Name: "action"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_active", "created_at", "schedule"}),
	}).Create(&row).Error
	if err != nil {
		return err
	}
	return tx.Where("device_id = ? AND app_name = ? AND action = ?", deviceID, appName, action).First(out).Error
}

// TakePending 返回设备的有效指令，并将 action 不是 persistentAction 的一次性指令置为失效
func (r *CommandRepo) TakePending(ctx context.Context, deviceID uint, persistentAction string) ([]ControlCommand, error) {
	var rows []ControlCommand
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("device_id = ? AND is_active = ?", deviceID, true).
			Order("created_at asc").Order("id asc").
			Find(&rows).Error; err != nil {
			return err
		}
		var oneShot []uint
		for _, c := range rows {
			if c.Action != persistentAction {
				oneShot = append(oneShot, c.ID)
			}
		}
		if len(oneShot) == 0 {
			return nil
		}
		return tx.Model(&ControlCommand{}).
			Where("id IN ? AND is_active = ?", oneShot, true).
			Update("is_active", false).Error
	})
	return rows, err
}

// Deactivate 将指令置为失效，返回受影响行数
func (r *CommandRepo) Deactivate(ctx context.Context, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&ControlCommand{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

func (r *CommandRepo) Find(ctx context.Context, deviceID uint, appName, action string) (*ControlCommand, error) {
	var c ControlCommand
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND app_name = ? AND action = ?", deviceID, appName, action).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ActiveForDevice 列出设备全部有效指令（不消费）
func (r *CommandRepo) ActiveForDevice(ctx context.Context, deviceID uint) ([]ControlCommand, error) {
	var rows []ControlCommand
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND is_active = ?", deviceID, true).
		Order("created_at asc").Order("id asc").
		Find(&rows).Error
	return rows, err
}
