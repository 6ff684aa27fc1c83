package ticket

import (
	"context"
	"fmt"
	"testing"
	"time"

	ticketdom "fleetcheck-service/internal/domain/ticket"
	xerrors "fleetcheck-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	tickets map[string]*ticketdom.Ticket
	open    map[string]*ticketdom.Ticket // vehicleID/reason -> ticket
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		tickets: map[string]*ticketdom.Ticket{},
		open:    map[string]*ticketdom.Ticket{},
	}
}

func openKey(vehicleID int64, reason ticketdom.ReasonCode) string {
	return fmt.Sprintf("%d/%s", vehicleID, reason)
}

func (f *fakeRepo) Insert(ctx context.Context, t *ticketdom.Ticket) error {
	cp := *t
	f.tickets[t.ID] = &cp
	f.open[openKey(t.VehicleID, t.Reason)] = &cp
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id string) (*ticketdom.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeRepo) FindOpenByVehicleAndReason(ctx context.Context, vehicleID int64, reason ticketdom.ReasonCode) (*ticketdom.Ticket, error) {
	t, ok := f.open[openKey(vehicleID, reason)]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return t, nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, id string, status ticketdom.Status, resolvedBy string, resolvedAt *time.Time) error {
	t, ok := f.tickets[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	t.Status = status
	if status == ticketdom.StatusResolved || status == ticketdom.StatusClosed {
		delete(f.open, openKey(t.VehicleID, t.Reason))
	}
	return nil
}

func (f *fakeRepo) List(ctx context.Context, filters *ticketdom.ListFilters) ([]ticketdom.Ticket, int64, error) {
	var out []ticketdom.Ticket
	for _, t := range f.tickets {
		out = append(out, *t)
	}
	return out, int64(len(out)), nil
}

type fakeEvents struct {
	published []string
}

func (f *fakeEvents) Publish(event string, payload interface{}) {
	f.published = append(f.published, event)
}

func newTicket() *ticketdom.Ticket {
	return &ticketdom.Ticket{
		VehicleID:      101,
		OperatorID:     7,
		RegistrationNo: "KA01AB1234",
		Reason:         ticketdom.ReasonDuplicateIdentity,
		Severity:       "critical",
	}
}

func TestOpenCreatesTicket(t *testing.T) {
	repo := newFakeRepo()
	events := &fakeEvents{}
	s := NewService(repo, events, zap.NewNop())

	id, created, err := s.Open(context.Background(), newTicket())
	require.NoError(t, err)

	assert.True(t, created)
	assert.NotEmpty(t, id)
	stored, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, ticketdom.StatusOpen, stored.Status)
	assert.Contains(t, events.published, "ticket.opened")
}

func TestOpenDeduplicatesSameVehicleAndReason(t *testing.T) {
	repo := newFakeRepo()
	s := NewService(repo, nil, zap.NewNop())

	first, created, err := s.Open(context.Background(), newTicket())
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := s.Open(context.Background(), newTicket())
	require.NoError(t, err)

	assert.False(t, created, "re-runs must not pile duplicates onto the queue")
	assert.Equal(t, first, second)
	assert.Len(t, repo.tickets, 1)
}

func TestOpenAllowsNewTicketAfterResolution(t *testing.T) {
	repo := newFakeRepo()
	s := NewService(repo, nil, zap.NewNop())

	first, _, err := s.Open(context.Background(), newTicket())
	require.NoError(t, err)

	_, err = s.UpdateStatus(context.Background(), first, ticketdom.StatusResolved, "admin-1")
	require.NoError(t, err)

	second, created, err := s.Open(context.Background(), newTicket())
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first, second)
}

func TestOpenDifferentReasonsCoexist(t *testing.T) {
	repo := newFakeRepo()
	s := NewService(repo, nil, zap.NewNop())

	_, created, err := s.Open(context.Background(), newTicket())
	require.NoError(t, err)
	require.True(t, created)

	other := newTicket()
	other.Reason = ticketdom.ReasonProviderMismatch
	_, created, err = s.Open(context.Background(), other)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	repo := newFakeRepo()
	s := NewService(repo, nil, zap.NewNop())

	id, _, err := s.Open(context.Background(), newTicket())
	require.NoError(t, err)

	_, err = s.UpdateStatus(context.Background(), id, ticketdom.StatusClosed, "admin-1")
	require.NoError(t, err, "open -> closed is allowed")

	_, err = s.UpdateStatus(context.Background(), id, ticketdom.StatusInProgress, "admin-1")
	require.Error(t, err, "closed tickets stay closed")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestUpdateStatusUnknownTicket(t *testing.T) {
	s := NewService(newFakeRepo(), nil, zap.NewNop())

	_, err := s.UpdateStatus(context.Background(), "missing", ticketdom.StatusResolved, "admin-1")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestValidTransitions(t *testing.T) {
	cases := []struct {
		from, to ticketdom.Status
		ok       bool
	}{
		{ticketdom.StatusOpen, ticketdom.StatusInProgress, true},
		{ticketdom.StatusOpen, ticketdom.StatusResolved, true},
		{ticketdom.StatusInProgress, ticketdom.StatusResolved, true},
		{ticketdom.StatusResolved, ticketdom.StatusClosed, true},
		{ticketdom.StatusClosed, ticketdom.StatusOpen, false},
		{ticketdom.StatusResolved, ticketdom.StatusInProgress, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, ticketdom.ValidTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}
