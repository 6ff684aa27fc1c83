// internal/service/audit/service.go
package audit

import (
	"context"
	"fmt"
	"time"

	auditdom "fleetcheck-service/internal/domain/audit"
	compliancedom "fleetcheck-service/internal/domain/compliance"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Repository appends audit entries. Append-only; there is no update or
// delete.
type Repository interface {
	Insert(ctx context.Context, e *auditdom.Entry) error
	ListByRegistration(ctx context.Context, registrationNo string, limit int) ([]auditdom.Entry, error)
}

// Service is the audit trail writer, used as compliance evidence. Every
// verification decision and administrative override lands here.
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// RecordDecision appends one decision with its per-check statuses.
func (s *Service) RecordDecision(ctx context.Context, d *compliancedom.Decision, statuses map[string]compliancedom.CheckStatus) error {
	entry := &auditdom.Entry{
		ID:             ulid.Make().String(),
		RegistrationNo: d.RegistrationNo,
		OperatorID:     d.OperatorID,
		Type:           auditdom.EventDecision,
		Actor:          auditdom.ActorSystem,
		Details: map[string]interface{}{
			"allowed":       d.Allowed,
			"reasons":       d.Reasons,
			"rules_applied": d.RulesApplied,
			"provider":      d.Provider,
			"confidence":    d.InferenceConfidence,
			"checks":        statuses,
		},
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return fmt.Errorf("failed to append decision audit entry: %w", err)
	}
	return nil
}

// RecordOverride appends an administrative action (flag resolution, ticket
// transition, manual review outcome) with the actor's identity.
func (s *Service) RecordOverride(ctx context.Context, registrationNo string, operatorID int64, eventType auditdom.EventType, actor string, details map[string]interface{}) error {
	entry := &auditdom.Entry{
		ID:             ulid.Make().String(),
		RegistrationNo: registrationNo,
		OperatorID:     operatorID,
		Type:           eventType,
		Actor:          actor,
		Details:        details,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return fmt.Errorf("failed to append override audit entry: %w", err)
	}
	s.logger.Info("administrative action audited",
		zap.String("registration", registrationNo),
		zap.String("type", string(eventType)),
		zap.String("actor", actor),
	)
	return nil
}

// History returns the most recent audit entries for a registration.
func (s *Service) History(ctx context.Context, registrationNo string, limit int) ([]auditdom.Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByRegistration(ctx, registrationNo, limit)
}
