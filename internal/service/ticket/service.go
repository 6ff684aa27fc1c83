// internal/service/ticket/service.go
package ticket

import (
	"context"
	"fmt"
	"time"

	ticketdom "fleetcheck-service/internal/domain/ticket"
	xerrors "fleetcheck-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Repository persists tickets. This service is the sole writer.
type Repository interface {
	Insert(ctx context.Context, t *ticketdom.Ticket) error
	FindByID(ctx context.Context, id string) (*ticketdom.Ticket, error)
	FindOpenByVehicleAndReason(ctx context.Context, vehicleID int64, reason ticketdom.ReasonCode) (*ticketdom.Ticket, error)
	UpdateStatus(ctx context.Context, id string, status ticketdom.Status, resolvedBy string, resolvedAt *time.Time) error
	List(ctx context.Context, filters *ticketdom.ListFilters) ([]ticketdom.Ticket, int64, error)
}

// EventPublisher pushes ticket lifecycle events to connected admin
// dashboards. Fire-and-forget.
type EventPublisher interface {
	Publish(event string, payload interface{})
}

type Service struct {
	repo   Repository
	events EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, events EventPublisher, logger *zap.Logger) *Service {
	return &Service{repo: repo, events: events, logger: logger, now: time.Now}
}

// Open creates a ticket unless an open or in-progress one already exists for
// the same vehicle and reason; re-runs of the batch must not pile duplicates
// onto the review queue. Returns the ticket id either way, with created=false
// when an existing ticket was reused.
func (s *Service) Open(ctx context.Context, t *ticketdom.Ticket) (string, bool, error) {
	existing, err := s.repo.FindOpenByVehicleAndReason(ctx, t.VehicleID, t.Reason)
	if err != nil && !xerrors.Is(err, xerrors.ErrNotFound) {
		return "", false, fmt.Errorf("failed to check existing tickets: %w", err)
	}
	if existing != nil {
		s.logger.Debug("open ticket already exists, not duplicating",
			zap.String("ticket_id", existing.ID),
			zap.Int64("vehicle_id", t.VehicleID),
			zap.String("reason", string(t.Reason)),
		)
		return existing.ID, false, nil
	}

	t.ID = ulid.Make().String()
	t.Status = ticketdom.StatusOpen
	t.CreatedAt = s.now().UTC()
	t.UpdatedAt = t.CreatedAt

	if err := s.repo.Insert(ctx, t); err != nil {
		return "", false, fmt.Errorf("failed to create ticket: %w", err)
	}

	s.logger.Info("ticket opened",
		zap.String("ticket_id", t.ID),
		zap.String("registration", t.RegistrationNo),
		zap.String("reason", string(t.Reason)),
		zap.String("severity", string(t.Severity)),
	)
	if s.events != nil {
		s.events.Publish("ticket.opened", t)
	}
	return t.ID, true, nil
}

// Get retrieves one ticket.
func (s *Service) Get(ctx context.Context, id string) (*ticketdom.Ticket, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateStatus applies an administrator-driven transition. Tickets never
// auto-close; every transition comes through here with the actor recorded.
func (s *Service) UpdateStatus(ctx context.Context, id string, status ticketdom.Status, resolvedBy string) (*ticketdom.Ticket, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !ticketdom.ValidTransition(t.Status, status) {
		return nil, fmt.Errorf("cannot move ticket from %s to %s: %w", t.Status, status, xerrors.ErrInvalidInput)
	}

	var resolvedAt *time.Time
	if status == ticketdom.StatusResolved || status == ticketdom.StatusClosed {
		ts := s.now().UTC()
		resolvedAt = &ts
	}

	if err := s.repo.UpdateStatus(ctx, id, status, resolvedBy, resolvedAt); err != nil {
		return nil, fmt.Errorf("failed to update ticket status: %w", err)
	}

	return s.repo.FindByID(ctx, id)
}

// List returns tickets matching the filters.
func (s *Service) List(ctx context.Context, filters *ticketdom.ListFilters) ([]ticketdom.Ticket, int64, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	if filters.PageSize > 100 {
		filters.PageSize = 100
	}
	return s.repo.List(ctx, filters)
}
