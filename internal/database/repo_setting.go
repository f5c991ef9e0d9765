package database

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepo 运行时设置仓库（通知渠道等）
type SettingRepo struct {
	db *gorm.DB
}

func NewSettingRepo(db *gorm.DB) *SettingRepo {
	return &SettingRepo{db: db}
}

// Get 读取单个设置；key 不存在时返回 gorm.ErrRecordNotFound
func (r *SettingRepo) Get(ctx context.Context, key string) (string, error) {
	var setting Setting
	if err := r.db.WithContext(ctx).Where(&Setting{Key: key}).First(&setting).Error; err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (r *SettingRepo) Set(ctx context.Context, key, value string) error {
	return r.SetBatch(ctx, map[string]string{key: value})
}

// SetBatch 在同一事务中批量写入设置
func (r *SettingRepo) SetBatch(ctx context.Context, items map[string]string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range items {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&Setting{Key: key, Value: value}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// WithPrefix 返回 key 以 prefix 开头的设置，结果以去掉前缀后的 key 为键；空值跳过
func (r *SettingRepo) WithPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	var rows []Setting
	err := r.db.WithContext(ctx).
		Where("key LIKE ?", likePattern(prefix)).
		Order("key asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, s := range rows {
		if !strings.HasPrefix(s.Key, prefix) || strings.TrimSpace(s.Value) == "" {
			continue
		}
		out[strings.TrimPrefix(s.Key, prefix)] = strings.TrimSpace(s.Value)
	}
	return out, nil
}

func (r *SettingRepo) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where(&Setting{Key: key}).Delete(&Setting{}).Error
}

// likePattern 去掉 prefix 中的 LIKE 通配符；调用方需对结果再次校验前缀
func likePattern(prefix string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(prefix) + "%"
}
