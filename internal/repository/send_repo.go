package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dripmail/internal/domain"
)

// claimLease is how long a claimed send is invisible to other dispatchers.
// A worker that dies mid-send leaves the record to be retried after the lease.
const claimLease = 2 * time.Minute

type SendListParams struct {
	Status     *domain.SendStatus
	UserID     string
	TemplateID string
	Before     *time.Time
	Limit      int
}

type SendStatusCount struct {
	TemplateID string            `gorm:"column:template_id"`
	Status     domain.SendStatus `gorm:"column:status"`
	Count      int               `gorm:"column:count"`
}

type SendRepository interface {
	// CreateIfAbsent inserts the send unless a PENDING record already exists
	// for the same (user, template) pair, or the same (event, rule) pair has
	// already produced a send. It reports whether a row was actually created;
	// losing to an existing row is not an error.
	CreateIfAbsent(ctx context.Context, s *domain.PendingSend) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.PendingSend, error)
	List(ctx context.Context, params SendListParams) ([]domain.PendingSend, error)
	GetDueForDispatch(ctx context.Context, now time.Time, limit int) ([]domain.PendingSend, error)
	// ClaimForDispatch serializes dispatch attempts on one record: it bumps
	// the attempt count and leases the row, returning nil when the send is
	// not claimable (already terminal, not yet due, or claimed elsewhere).
	ClaimForDispatch(ctx context.Context, id string, now time.Time) (*domain.PendingSend, error)
	MarkSent(ctx context.Context, id string, providerMessageID string) error
	MarkFailed(ctx context.Context, id string) error
	UpdateForRetry(ctx context.Context, id string, nextAttemptAt time.Time) error
	Suppress(ctx context.Context, id string) error
	HasNonTerminal(ctx context.Context, userID string, templateID string) (bool, error)
	StatusCounts(ctx context.Context) ([]SendStatusCount, error)
}

type GormSendRepo struct {
	db *gorm.DB
}

func NewGormSendRepo(db *gorm.DB) *GormSendRepo {
	return &GormSendRepo{db: db}
}

func (r *GormSendRepo) CreateIfAbsent(ctx context.Context, s *domain.PendingSend) (bool, error) {
	model := sendModelFromDomain(s)

	// No arbiter: the insert must lose to either unique index, the partial
	// (user_id, template_id) PENDING one or the (event_id, rule_id) one.
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	if s != nil {
		*s = *sendModelToDomain(model)
	}
	return true, nil
}

func (r *GormSendRepo) GetByID(ctx context.Context, id string) (*domain.PendingSend, error) {
	var model PendingSendModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sendModelToDomain(&model), nil
}

func (r *GormSendRepo) List(ctx context.Context, params SendListParams) ([]domain.PendingSend, error) {
	query := r.db.WithContext(ctx).Model(&PendingSendModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.UserID != "" {
		query = query.Where("user_id = ?", params.UserID)
	}
	if params.TemplateID != "" {
		query = query.Where("template_id = ?", params.TemplateID)
	}
	if params.Before != nil {
		query = query.Where("created_at < ?", *params.Before)
	}

	limit := params.Limit
	if limit < 1 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	var models []PendingSendModel
	err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	sends := make([]domain.PendingSend, 0, len(models))
	for i := range models {
		sends = append(sends, *sendModelToDomain(&models[i]))
	}

	return sends, nil
}

func (r *GormSendRepo) GetDueForDispatch(ctx context.Context, now time.Time, limit int) ([]domain.PendingSend, error) {
	var models []PendingSendModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)",
			domain.SendStatusPending, now, now).
		Order("scheduled_for ASC, id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	sends := make([]domain.PendingSend, 0, len(models))
	for i := range models {
		sends = append(sends, *sendModelToDomain(&models[i]))
	}

	return sends, nil
}

func (r *GormSendRepo) ClaimForDispatch(ctx context.Context, id string, now time.Time) (*domain.PendingSend, error) {
	var claimed *PendingSendModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model PendingSendModel
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		// Terminal or not-yet-due records are skipped, not errors. A terminal
		// record comes back unclaimed so the caller can observe its status
		// before dropping the message.
		if model.Status != domain.SendStatusPending {
			claimed = &model
			return nil
		}
		if model.ScheduledFor.After(now) {
			return nil
		}
		if model.NextAttemptAt != nil && model.NextAttemptAt.After(now) {
			return nil
		}

		lease := now.Add(claimLease)
		model.AttemptCount++
		model.NextAttemptAt = &lease
		if err := tx.Model(&PendingSendModel{}).
			Where("id = ?", model.ID).
			Updates(map[string]any{
				"attempt_count":   model.AttemptCount,
				"next_attempt_at": lease,
			}).Error; err != nil {
			return err
		}

		claimed = &model
		return nil
	})
	if err != nil {
		return nil, err
	}

	return sendModelToDomain(claimed), nil
}

func (r *GormSendRepo) MarkSent(ctx context.Context, id string, providerMessageID string) error {
	updates := map[string]any{
		"status":          domain.SendStatusSent,
		"next_attempt_at": nil,
	}
	if providerMessageID != "" {
		updates["provider_message_id"] = providerMessageID
	}

	return r.transitionFromPending(ctx, id, updates)
}

func (r *GormSendRepo) MarkFailed(ctx context.Context, id string) error {
	return r.transitionFromPending(ctx, id, map[string]any{
		"status":          domain.SendStatusFailed,
		"next_attempt_at": nil,
	})
}

func (r *GormSendRepo) UpdateForRetry(ctx context.Context, id string, nextAttemptAt time.Time) error {
	return r.transitionFromPending(ctx, id, map[string]any{
		"next_attempt_at": nextAttemptAt,
	})
}

func (r *GormSendRepo) Suppress(ctx context.Context, id string) error {
	return r.transitionFromPending(ctx, id, map[string]any{
		"status":          domain.SendStatusSuppressed,
		"next_attempt_at": nil,
	})
}

// transitionFromPending enforces that PENDING is the only source state; a
// transition that finds the record already moved on loses the race and
// reports ErrConflict.
func (r *GormSendRepo) transitionFromPending(ctx context.Context, id string, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&PendingSendModel{}).
		Where("id = ? AND status = ?", id, domain.SendStatusPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&PendingSendModel{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

func (r *GormSendRepo) HasNonTerminal(ctx context.Context, userID string, templateID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&PendingSendModel{}).
		Where("user_id = ? AND template_id = ? AND status = ?", userID, templateID, domain.SendStatusPending).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormSendRepo) StatusCounts(ctx context.Context) ([]SendStatusCount, error) {
	var counts []SendStatusCount
	err := r.db.WithContext(ctx).
		Model(&PendingSendModel{}).
		Select("template_id, status, COUNT(*) as count").
		Group("template_id, status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
