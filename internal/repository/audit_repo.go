package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"dripmail/internal/domain"
)

type AuditListParams struct {
	Outcome *domain.Outcome
	Before  *time.Time
	Limit   int
}

type AuditRepository interface {
	Create(ctx context.Context, a *domain.AuditRecord) error
	ListBySendID(ctx context.Context, sendID string) ([]domain.AuditRecord, error)
	List(ctx context.Context, params AuditListParams) ([]domain.AuditRecord, error)
	// LastAttemptAt returns the most recent delivery attempt for any send of
	// the given template to the given user, or nil when none exists. The
	// evaluator's cooldown check relies on this.
	LastAttemptAt(ctx context.Context, userID string, templateID string) (*time.Time, error)
}

type GormAuditRepo struct {
	db *gorm.DB
}

func NewGormAuditRepo(db *gorm.DB) *GormAuditRepo {
	return &GormAuditRepo{db: db}
}

func (r *GormAuditRepo) Create(ctx context.Context, a *domain.AuditRecord) error {
	model := auditModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if a != nil {
		*a = *auditModelToDomain(model)
	}
	return nil
}

func (r *GormAuditRepo) ListBySendID(ctx context.Context, sendID string) ([]domain.AuditRecord, error) {
	var models []AuditRecordModel
	err := r.db.WithContext(ctx).
		Where("send_id = ?", sendID).
		Order("attempt_number ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.AuditRecord, 0, len(models))
	for i := range models {
		records = append(records, *auditModelToDomain(&models[i]))
	}

	return records, nil
}

func (r *GormAuditRepo) List(ctx context.Context, params AuditListParams) ([]domain.AuditRecord, error) {
	query := r.db.WithContext(ctx).Model(&AuditRecordModel{})

	if params.Outcome != nil {
		query = query.Where("outcome = ?", *params.Outcome)
	}
	if params.Before != nil {
		query = query.Where("attempted_at < ?", *params.Before)
	}

	limit := params.Limit
	if limit < 1 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	var models []AuditRecordModel
	err := query.
		Order("attempted_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.AuditRecord, 0, len(models))
	for i := range models {
		records = append(records, *auditModelToDomain(&models[i]))
	}

	return records, nil
}

func (r *GormAuditRepo) LastAttemptAt(ctx context.Context, userID string, templateID string) (*time.Time, error) {
	var result struct {
		Last *time.Time `gorm:"column:last"`
	}

	err := r.db.WithContext(ctx).
		Model(&AuditRecordModel{}).
		Select("MAX(audit_records.attempted_at) as last").
		Joins("JOIN pending_sends ON pending_sends.id = audit_records.send_id").
		Where("pending_sends.user_id = ? AND pending_sends.template_id = ?", userID, templateID).
		Scan(&result).Error
	if err != nil {
		return nil, err
	}

	return result.Last, nil
}
