package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dripmail/internal/domain"
	"dripmail/internal/repository"
)

// SendDetail is a pending send together with its full attempt history.
type SendDetail struct {
	Send    domain.PendingSend
	History []domain.AuditRecord
}

// TemplateStats aggregates send outcomes for one template.
type TemplateStats struct {
	TemplateID string
	Counts     map[domain.SendStatus]int
}

// SendQueryService is the read side for sends, audit history and stats, plus
// the operator-facing suppress action.
type SendQueryService struct {
	sends  repository.SendRepository
	audits repository.AuditRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewSendQueryService(
	sends repository.SendRepository,
	audits repository.AuditRepository,
	logger *zap.Logger,
) (*SendQueryService, error) {
	if sends == nil {
		return nil, fmt.Errorf("send repository is required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SendQueryService{
		sends:  sends,
		audits: audits,
		logger: logger,
		now:    time.Now,
	}, nil
}

// SuppressSend cancels a send that has not reached a terminal state.
// Suppressing an already sent, failed, or suppressed send reports ErrConflict.
func (s *SendQueryService) SuppressSend(ctx context.Context, id string) (*SendDetail, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: send id is required", domain.ErrValidation)
	}

	send, err := s.sends.GetByID(ctx, trimmed)
	if err != nil {
		return nil, err
	}

	if err := s.sends.Suppress(ctx, send.ID); err != nil {
		return nil, err
	}

	detail := "suppressed by operator"
	record := &domain.AuditRecord{
		ID:            uuid.NewString(),
		SendID:        send.ID,
		AttemptNumber: send.AttemptCount,
		Outcome:       domain.OutcomeSuppressed,
		ErrorDetail:   &detail,
		AttemptedAt:   s.now().UTC(),
	}
	if err := s.audits.Create(ctx, record); err != nil {
		s.logger.Error("failed to record suppression audit",
			zap.String("send_id", send.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("send suppressed", zap.String("send_id", send.ID))
	return s.GetSend(ctx, send.ID)
}

func (s *SendQueryService) GetSend(ctx context.Context, id string) (*SendDetail, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: send id is required", domain.ErrValidation)
	}

	send, err := s.sends.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}

	history, err := s.audits.ListBySendID(ctx, send.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit history: %w", err)
	}

	return &SendDetail{
		Send:    *send,
		History: history,
	}, nil
}

func (s *SendQueryService) ListSends(ctx context.Context, params repository.SendListParams) ([]domain.PendingSend, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, fmt.Errorf("%w: invalid send status %q", domain.ErrValidation, *params.Status)
	}
	return s.sends.List(ctx, params)
}

func (s *SendQueryService) ListAudits(ctx context.Context, params repository.AuditListParams) ([]domain.AuditRecord, error) {
	if params.Outcome != nil && !params.Outcome.IsValid() {
		return nil, fmt.Errorf("%w: invalid outcome %q", domain.ErrValidation, *params.Outcome)
	}
	return s.audits.List(ctx, params)
}

// Stats groups send counts by template and status.
func (s *SendQueryService) Stats(ctx context.Context) ([]TemplateStats, error) {
	counts, err := s.sends.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}

	byTemplate := make(map[string]*TemplateStats)
	order := make([]string, 0)
	for _, c := range counts {
		stats, ok := byTemplate[c.TemplateID]
		if !ok {
			stats = &TemplateStats{
				TemplateID: c.TemplateID,
				Counts:     make(map[domain.SendStatus]int),
			}
			byTemplate[c.TemplateID] = stats
			order = append(order, c.TemplateID)
		}
		stats.Counts[c.Status] += c.Count
	}

	result := make([]TemplateStats, 0, len(order))
	for _, templateID := range order {
		result = append(result, *byTemplate[templateID])
	}

	return result, nil
}
