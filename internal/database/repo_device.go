package database

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceRepo 设备数据仓库
type DeviceRepo struct {
	db *gorm.DB
}

func NewDeviceRepo(db *gorm.DB) *DeviceRepo {
	return &DeviceRepo{db: db}
}

// DeviceUpsert 一次设备注册的数据；MAC 已存在时 nil 指针字段保留原值
type DeviceUpsert struct {
	MACAddress   string
	DeviceUUID   string
	UUIDExplicit bool
	MachineName  *string
	UserName     *string
	OS           *string
	ChildID      *uint
	SeenAt       time.Time
}

// UpsertByMAC 单条语句按 MAC 插入或更新设备，并在同一事务中回读该行
func (r *DeviceRepo) UpsertByMAC(ctx context.Context, in DeviceUpsert) (*Device, error) {
	mac := in.MACAddress
	row := &Device{
		DeviceUUID:  in.DeviceUUID,
		MACAddress:  &mac,
		MachineName: in.MachineName,
		UserName:    in.UserName,
		OS:          in.OS,
		ChildID:     in.ChildID,
		LastSeen:    in.SeenAt,
	}

	set := map[string]interface{}{
		"last_seen":  gorm.Expr("excluded.last_seen"),
		"updated_at": gorm.Expr("excluded.updated_at"),
	}
	if in.UUIDExplicit {
		set["device_uuid"] = gorm.Expr("excluded.device_uuid")
	} else {
		set["device_uuid"] = gorm.Expr("COALESCE(NULLIF(devices.device_uuid, ''), excluded.device_uuid)")
	}
	if in.MachineName != nil {
		set["machine_name"] = gorm.Expr("excluded.machine_name")
	}
	if in.UserName != nil {
		set["user_name"] = gorm.Expr("excluded.user_name")
	}
	if in.OS != nil {
		set["os"] = gorm.Expr("excluded.os")
	}
	if in.ChildID != nil {
		set["child_id"] = gorm.Expr("excluded.child_id")
	}

	var out Device
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "mac_address"}},
			DoUpdates: clause.Assignments(set),
		}).Create(row).Error; err != nil {
			return err
		}
		return tx.Where("mac_address = ?", mac).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateByMAC 仅更新已存在的设备，不插入
func (r *DeviceRepo) UpdateByMAC(ctx context.Context, in DeviceUpsert) (*Device, error) {
	updates := map[string]interface{}{"last_seen": in.SeenAt}
	if in.UUIDExplicit {
		updates["device_uuid"] = in.DeviceUUID
	}
	if in.MachineName != nil {
		updates["machine_name"] = *in.MachineName
	}
	if in.UserName != nil {
		updates["user_name"] = *in.UserName
	}
	if in.OS != nil {
		updates["os"] = *in.OS
	}
	if in.ChildID != nil {
		updates["child_id"] = *in.ChildID
	}

	var out Device
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Device{}).Where("mac_address = ?", in.MACAddress).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Model(&Device{}).
			Where("mac_address = ? AND (device_uuid = '' OR device_uuid IS NULL)", in.MACAddress).
			Update("device_uuid", in.DeviceUUID).Error; err != nil {
			return err
		}
		return tx.Where("mac_address = ?", in.MACAddress).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *DeviceRepo) FindByID(ctx context.Context, id uint) (*Device, error) {
	var d Device
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DeviceRepo) FindByMAC(ctx context.Context, mac string) (*Device, error) {
	var d Device
	if err := r.db.WithContext(ctx).Where("mac_address = ?", mac).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// FindByUUID 返回携带该 uuid 的最早设备
func (r *DeviceRepo) FindByUUID(ctx context.Context, uuid string) (*Device, error) {
	var d Device
	if err := r.db.WithContext(ctx).Where("device_uuid = ?", uuid).Order("id asc").First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DeviceRepo) FindByMachineName(ctx context.Context, name string) (*Device, error) {
	var d Device
	if err := r.db.WithContext(ctx).Where("machine_name = ?", name).Order("id asc").First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// Touch 刷新设备最后在线时间
func (r *DeviceRepo) Touch(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&Device{}).Where("id = ?", id).UpdateColumn("last_seen", at).Error
}

// List 按最后在线时间倒序列出所有设备
func (r *DeviceRepo) List(ctx context.Context) ([]Device, error) {
	var devices []Device
	err := r.db.WithContext(ctx).Order("last_seen desc").Find(&devices).Error
	return devices, err
}

// ListUnassigned 列出未绑定孩子的设备
func (r *DeviceRepo) ListUnassigned(ctx context.Context) ([]Device, error) {
	var devices []Device
	err := r.db.WithContext(ctx).Where("child_id IS NULL").Order("last_seen desc").Find(&devices).Error
	return devices, err
}

func (r *DeviceRepo) IDsByChild(ctx context.Context, childID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&Device{}).Where("child_id = ?", childID).Pluck("id", &ids).Error
	return ids, err
}

// AssignChild 将设备绑定到孩子，返回受影响行数
func (r *DeviceRepo) AssignChild(ctx context.Context, deviceID, childID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Device{}).Where("id = ?", deviceID).Update("child_id", childID)
	return res.RowsAffected, res.Error
}

func (r *DeviceRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Device{}).Count(&count).Error
	return count, err
}
