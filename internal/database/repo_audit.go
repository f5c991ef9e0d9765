package database

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type AuditLogRepo struct {
	db *gorm.DB
}

func NewAuditLogRepo(db *gorm.DB) *AuditLogRepo {
	return &AuditLogRepo{db: db}
}

func (r *AuditLogRepo) Create(ctx context.Context, log *AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// List 分页查询审计日志，按时间倒序
func (r *AuditLogRepo) List(ctx context.Context, filter AuditFilter) ([]AuditLog, int64, error) {
	var logs []AuditLog
	var total int64

	q := r.db.WithContext(ctx).Model(&AuditLog{})
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.Subject != "" {
		q = q.Where("subject = ?", filter.Subject)
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("created_at <= ?", filter.Until)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortOrder := filter.SortOrder
	if sortOrder != "asc" {
		sortOrder = "desc"
	}

	offset := filter.Offset()
	err := q.Order("created_at " + sortOrder).Order("id " + sortOrder).
		Offset(offset).
		Limit(filter.PageSize).
		Find(&logs).Error
	return logs, total, err
}

type AuditFilter struct {
	Page      int
	PageSize  int
	SortOrder string
	Action    string
	Subject   string
	Since     time.Time
	Until     time.Time
}

func (f *AuditFilter) Offset() int {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	return (f.Page - 1) * f.PageSize
}
