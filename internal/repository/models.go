package repository

import (
	"time"

	"dripmail/internal/domain"
)

// EventModel is the persistence model for the events table.
type EventModel struct {
	ID         string            `gorm:"type:uuid;primaryKey"`
	UserID     string            `gorm:"type:varchar(64);not null"`
	Type       domain.EventType  `gorm:"type:varchar(20);not null"`
	Recipient  string            `gorm:"type:varchar(255);not null"`
	Payload    map[string]string `gorm:"serializer:json;type:jsonb"`
	OccurredAt time.Time         `gorm:"not null"`
	CreatedAt  time.Time
}

func (EventModel) TableName() string {
	return "events"
}

// TemplateModel is the persistence model for templates.
type TemplateModel struct {
	ID                string   `gorm:"type:varchar(64);primaryKey"`
	Subject           string   `gorm:"type:varchar(500);not null"`
	Body              string   `gorm:"type:text;not null"`
	RequiredVariables []string `gorm:"serializer:json;type:jsonb"`
	Active            bool     `gorm:"not null;default:true"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (TemplateModel) TableName() string {
	return "templates"
}

// DripRuleModel is the persistence model for drip_rules. Durations are stored
// as whole seconds.
type DripRuleModel struct {
	ID              string                 `gorm:"type:uuid;primaryKey"`
	Name            string                 `gorm:"type:varchar(255);not null"`
	EventType       domain.EventType       `gorm:"type:varchar(20);not null"`
	TemplateID      string                 `gorm:"type:varchar(64);not null"`
	DelaySeconds    int64                  `gorm:"not null;default:0"`
	CooldownSeconds int64                  `gorm:"not null;default:0"`
	Conditions      []domain.RuleCondition `gorm:"serializer:json;type:jsonb"`
	Priority        domain.Priority        `gorm:"type:varchar(10);not null"`
	StartAt         *time.Time
	EndAt           *time.Time
	Active          bool `gorm:"not null;default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (DripRuleModel) TableName() string {
	return "drip_rules"
}

// PendingSendModel is the persistence model for pending_sends.
type PendingSendModel struct {
	ID                string            `gorm:"type:uuid;primaryKey"`
	EventID           string            `gorm:"type:uuid;not null"`
	UserID            string            `gorm:"type:varchar(64);not null"`
	RuleID            string            `gorm:"type:uuid;not null"`
	TemplateID        string            `gorm:"type:varchar(64);not null"`
	Recipient         string            `gorm:"type:varchar(255);not null"`
	Variables         map[string]string `gorm:"serializer:json;type:jsonb"`
	Priority          domain.Priority   `gorm:"type:varchar(10);not null"`
	Status            domain.SendStatus `gorm:"type:varchar(20);not null"`
	ScheduledFor      time.Time         `gorm:"not null"`
	AttemptCount      int               `gorm:"not null;default:0"`
	MaxAttempts       int               `gorm:"not null;default:3"`
	NextAttemptAt     *time.Time
	ProviderMessageID *string `gorm:"type:varchar(255)"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (PendingSendModel) TableName() string {
	return "pending_sends"
}

// AuditRecordModel is the persistence model for audit_records.
type AuditRecordModel struct {
	ID                string         `gorm:"type:uuid;primaryKey"`
	SendID            string         `gorm:"type:uuid;not null"`
	AttemptNumber     int            `gorm:"not null"`
	Outcome           domain.Outcome `gorm:"type:varchar(20);not null"`
	ProviderMessageID *string        `gorm:"type:varchar(255)"`
	ErrorDetail       *string        `gorm:"type:text"`
	AttemptedAt       time.Time      `gorm:"not null"`
	CreatedAt         time.Time
}

func (AuditRecordModel) TableName() string {
	return "audit_records"
}

func eventModelFromDomain(e *domain.Event) *EventModel {
	if e == nil {
		return nil
	}

	return &EventModel{
		ID:         e.ID,
		UserID:     e.UserID,
		Type:       e.Type,
		Recipient:  e.Recipient,
		Payload:    e.Payload,
		OccurredAt: e.OccurredAt,
		CreatedAt:  e.CreatedAt,
	}
}

func eventModelToDomain(m *EventModel) *domain.Event {
	if m == nil {
		return nil
	}

	return &domain.Event{
		ID:         m.ID,
		UserID:     m.UserID,
		Type:       m.Type,
		Recipient:  m.Recipient,
		Payload:    m.Payload,
		OccurredAt: m.OccurredAt,
		CreatedAt:  m.CreatedAt,
	}
}

func templateModelFromDomain(t *domain.Template) *TemplateModel {
	if t == nil {
		return nil
	}

	return &TemplateModel{
		ID:                t.ID,
		Subject:           t.Subject,
		Body:              t.Body,
		RequiredVariables: t.RequiredVariables,
		Active:            t.Active,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func templateModelToDomain(m *TemplateModel) *domain.Template {
	if m == nil {
		return nil
	}

	return &domain.Template{
		ID:                m.ID,
		Subject:           m.Subject,
		Body:              m.Body,
		RequiredVariables: m.RequiredVariables,
		Active:            m.Active,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func ruleModelFromDomain(r *domain.DripRule) *DripRuleModel {
	if r == nil {
		return nil
	}

	return &DripRuleModel{
		ID:              r.ID,
		Name:            r.Name,
		EventType:       r.EventType,
		TemplateID:      r.TemplateID,
		DelaySeconds:    int64(r.Delay / time.Second),
		CooldownSeconds: int64(r.Cooldown / time.Second),
		Conditions:      r.Conditions,
		Priority:        r.Priority,
		StartAt:         r.StartAt,
		EndAt:           r.EndAt,
		Active:          r.Active,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func ruleModelToDomain(m *DripRuleModel) *domain.DripRule {
	if m == nil {
		return nil
	}

	return &domain.DripRule{
		ID:         m.ID,
		Name:       m.Name,
		EventType:  m.EventType,
		TemplateID: m.TemplateID,
		Delay:      time.Duration(m.DelaySeconds) * time.Second,
		Cooldown:   time.Duration(m.CooldownSeconds) * time.Second,
		Conditions: m.Conditions,
		Priority:   m.Priority,
		StartAt:    m.StartAt,
		EndAt:      m.EndAt,
		Active:     m.Active,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func sendModelFromDomain(s *domain.PendingSend) *PendingSendModel {
	if s == nil {
		return nil
	}

	return &PendingSendModel{
		ID:                s.ID,
		EventID:           s.EventID,
		UserID:            s.UserID,
		RuleID:            s.RuleID,
		TemplateID:        s.TemplateID,
		Recipient:         s.Recipient,
		Variables:         s.Variables,
		Priority:          s.Priority,
		Status:            s.Status,
		ScheduledFor:      s.ScheduledFor,
		AttemptCount:      s.AttemptCount,
		MaxAttempts:       s.MaxAttempts,
		NextAttemptAt:     s.NextAttemptAt,
		ProviderMessageID: s.ProviderMessageID,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

func sendModelToDomain(m *PendingSendModel) *domain.PendingSend {
	if m == nil {
		return nil
	}

	return &domain.PendingSend{
		ID:                m.ID,
		EventID:           m.EventID,
		UserID:            m.UserID,
		RuleID:            m.RuleID,
		TemplateID:        m.TemplateID,
		Recipient:         m.Recipient,
		Variables:         m.Variables,
		Priority:          m.Priority,
		Status:            m.Status,
		ScheduledFor:      m.ScheduledFor,
		AttemptCount:      m.AttemptCount,
		MaxAttempts:       m.MaxAttempts,
		NextAttemptAt:     m.NextAttemptAt,
		ProviderMessageID: m.ProviderMessageID,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func auditModelFromDomain(a *domain.AuditRecord) *AuditRecordModel {
	if a == nil {
		return nil
	}

	return &AuditRecordModel{
		ID:                a.ID,
		SendID:            a.SendID,
		AttemptNumber:     a.AttemptNumber,
		Outcome:           a.Outcome,
		ProviderMessageID: a.ProviderMessageID,
		ErrorDetail:       a.ErrorDetail,
		AttemptedAt:       a.AttemptedAt,
		CreatedAt:         a.CreatedAt,
	}
}

func auditModelToDomain(m *AuditRecordModel) *domain.AuditRecord {
	if m == nil {
		return nil
	}

	return &domain.AuditRecord{
		ID:                m.ID,
		SendID:            m.SendID,
		AttemptNumber:     m.AttemptNumber,
		Outcome:           m.Outcome,
		ProviderMessageID: m.ProviderMessageID,
		ErrorDetail:       m.ErrorDetail,
		AttemptedAt:       m.AttemptedAt,
		CreatedAt:         m.CreatedAt,
	}
}
