package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	compliancedom "fleetcheck-service/internal/domain/compliance"
	flagdom "fleetcheck-service/internal/domain/flag"
	ticketdom "fleetcheck-service/internal/domain/ticket"
	"fleetcheck-service/internal/domain/vehicle"
	"fleetcheck-service/internal/service/compliance"
	"fleetcheck-service/internal/service/flags"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFleet struct {
	trucks []vehicle.DeclaredTruck
	err    error
}

func (f *fakeFleet) SelectNeedingVerification(ctx context.Context, staleness time.Duration, limit int) ([]vehicle.DeclaredTruck, error) {
	return f.trucks, f.err
}

type fakeVerifier struct {
	mu sync.Mutex
	fn func(registrationNo string) (*vehicle.Snapshot, error)
}

func (f *fakeVerifier) Verify(ctx context.Context, registrationNo string) (*vehicle.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fn(registrationNo)
}

type fakeSnapshots struct {
	mu       sync.Mutex
	upserted []*vehicle.Snapshot
	other    map[string]*vehicle.Snapshot
	otherErr error
}

func (f *fakeSnapshots) Upsert(ctx context.Context, snap *vehicle.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, snap)
	return nil
}

func (f *fakeSnapshots) FindLatestOtherProvider(ctx context.Context, registrationNo, provider string) (*vehicle.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.otherErr != nil {
		return nil, f.otherErr
	}
	return f.other[registrationNo], nil
}

type fakeFlagRepo struct {
	mu         sync.Mutex
	appended   []flagdom.Flag
	history    map[int64][]flagdom.Flag
	historyErr error
}

func (f *fakeFlagRepo) Append(ctx context.Context, fl *flagdom.Flag) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, *fl)
	return nil
}

func (f *fakeFlagRepo) HistoryByVehicle(ctx context.Context, vehicleID int64) ([]flagdom.Flag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history[vehicleID], nil
}

type fakeTickets struct {
	mu     sync.Mutex
	opened []ticketdom.Ticket
}

func (f *fakeTickets) Open(ctx context.Context, t *ticketdom.Ticket) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, *t)
	return "tkt-1", true, nil
}

type fakeReview struct {
	mu       sync.Mutex
	requests []int64
}

func (f *fakeReview) RequestPhotoCheck(vehicleID, operatorID, flagID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, vehicleID)
}

type fakeDecider struct {
	mu sync.Mutex
	fn func(in compliance.Input) (*compliancedom.Decision, error)
}

func (f *fakeDecider) Decide(ctx context.Context, in compliance.Input) (*compliancedom.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fn(in)
}

type fixture struct {
	fleet     *fakeFleet
	verifier  *fakeVerifier
	snapshots *fakeSnapshots
	flagRepo  *fakeFlagRepo
	tickets   *fakeTickets
	review    *fakeReview
	decider   *fakeDecider
}

func allowAll(in compliance.Input) (*compliancedom.Decision, error) {
	return &compliancedom.Decision{
		RegistrationNo: in.RegistrationNo,
		OperatorID:     in.OperatorID,
		Allowed:        true,
	}, nil
}

func okSnapshot(reg string) *vehicle.Snapshot {
	return &vehicle.Snapshot{
		RegistrationNo: reg,
		Manufacturer:   "TATA MOTORS",
		Model:          "1109",
		BodyTypeName:   "OPEN BODY",
		Category:       "GOODS CARRIER",
		GrossWeightKG:  11990,
		Provider:       "national_registry",
	}
}

func truck(reg string, id int64) vehicle.DeclaredTruck {
	return vehicle.DeclaredTruck{
		VehicleID:      id,
		OperatorID:     7,
		RegistrationNo: reg,
		TyreCount:      6,
		BodyLengthFt:   17,
		BodyType:       "OPEN",
	}
}

func newFixture(trucks ...vehicle.DeclaredTruck) *fixture {
	return &fixture{
		fleet:     &fakeFleet{trucks: trucks},
		verifier:  &fakeVerifier{fn: func(reg string) (*vehicle.Snapshot, error) { return okSnapshot(reg), nil }},
		snapshots: &fakeSnapshots{other: map[string]*vehicle.Snapshot{}},
		flagRepo:  &fakeFlagRepo{history: map[int64][]flagdom.Flag{}},
		tickets:   &fakeTickets{},
		review:    &fakeReview{},
		decider:   &fakeDecider{fn: allowAll},
	}
}

func (f *fixture) orchestrator(cfg Config) *Orchestrator {
	return NewOrchestrator(
		f.fleet, f.verifier, f.snapshots, f.flagRepo,
		flags.NewComputer(), f.decider, f.tickets, f.review, nil,
		cfg, zap.NewNop(),
	)
}

func TestRunHappyPath(t *testing.T) {
	f := newFixture(truck("KA01AB0001", 1), truck("KA01AB0002", 2), truck("KA01AB0003", 3))
	o := f.orchestrator(Config{BatchSize: 2, Concurrency: 2})

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 3, res.Succeeded)
	assert.Zero(t, res.Failed)
	assert.Len(t, f.snapshots.upserted, 3)
	assert.Empty(t, f.tickets.opened)
}

func TestRunSelectFailureIsCatastrophic(t *testing.T) {
	f := newFixture()
	f.fleet.err = errors.New("db down")
	o := f.orchestrator(Config{})

	_, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to select verification candidates")
}

func TestRunIsolatesItemFailures(t *testing.T) {
	f := newFixture(truck("KA01AB0001", 1), truck("FAIL000002", 2), truck("KA01AB0003", 3))
	f.verifier.fn = func(reg string) (*vehicle.Snapshot, error) {
		if reg == "FAIL000002" {
			return nil, errors.New("all providers failed")
		}
		return okSnapshot(reg), nil
	}
	o := f.orchestrator(Config{BatchSize: 10, Concurrency: 3})

	res, err := o.Run(context.Background())
	require.NoError(t, err, "per-item failures never fail the run")

	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "FAIL000002", res.Failures[0].RegistrationNo)
	assert.Contains(t, res.Failures[0].Error, "fetch failed")
	assert.Len(t, f.snapshots.upserted, 2, "failed fetch stores nothing")
}

func TestRunContainsPanics(t *testing.T) {
	f := newFixture(truck("KA01AB0001", 1), truck("PANIC00002", 2))
	f.verifier.fn = func(reg string) (*vehicle.Snapshot, error) {
		if reg == "PANIC00002" {
			panic("boom")
		}
		return okSnapshot(reg), nil
	}
	o := f.orchestrator(Config{BatchSize: 10, Concurrency: 2})

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0].Error, "panic")
}

func TestRunAppendsFlagsAndRequestsPhotoCheck(t *testing.T) {
	tr := truck("KA01AB0001", 1)
	tr.BodyLengthFt = 24 // outside the 6-tyre typical range
	f := newFixture(tr)
	o := f.orchestrator(Config{})

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)

	var codes []flagdom.Code
	for _, fl := range f.flagRepo.appended {
		codes = append(codes, fl.Code)
	}
	assert.Contains(t, codes, flagdom.CodeLengthMismatch)
	assert.Contains(t, codes, flagdom.CodePhotoCheckRequired)
	assert.Equal(t, []int64{1}, f.review.requests)
}

func TestRunOpensProviderMismatchTicket(t *testing.T) {
	f := newFixture(truck("KA01AB0001", 1))
	prev := okSnapshot("KA01AB0001")
	prev.Provider = "state_transport"
	prev.GrossWeightKG = 16200 // >10% off the fresh 11990
	f.snapshots.other["KA01AB0001"] = prev
	o := f.orchestrator(Config{})

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.TicketsOpened)
	require.Len(t, f.tickets.opened, 1)
	assert.Equal(t, ticketdom.ReasonProviderMismatch, f.tickets.opened[0].Reason)
}

func TestRunEscalatesPersistentMismatch(t *testing.T) {
	f := newFixture(truck("KA01AB0001", 1))
	f.flagRepo.history[1] = []flagdom.Flag{
		{Code: flagdom.CodeLengthMismatch, Occurrences: 4},
	}
	o := f.orchestrator(Config{})

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.TicketsOpened)
	require.Len(t, f.tickets.opened, 1)
	assert.Equal(t, ticketdom.ReasonPersistentMismatch, f.tickets.opened[0].Reason)
}

func TestRunToleratesAdvisoryLookupFailures(t *testing.T) {
	// Cross-provider comparison and flag history are advisory. When their
	// lookups fail the item still verifies, it just skips those checks.
	f := newFixture(truck("KA01AB0001", 1))
	f.snapshots.otherErr = errors.New("snapshot store timeout")
	f.flagRepo.historyErr = errors.New("flag store timeout")
	o := f.orchestrator(Config{})

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Succeeded)
	assert.Zero(t, res.Failed)
	assert.Empty(t, f.tickets.opened)
}

func TestRunOpensTicketForDuplicateIdentityBlock(t *testing.T) {
	f := newFixture(truck("KA01AB0001", 1))
	f.decider.fn = func(in compliance.Input) (*compliancedom.Decision, error) {
		return &compliancedom.Decision{
			RegistrationNo: in.RegistrationNo,
			OperatorID:     in.OperatorID,
			Allowed:        false,
			Reasons:        []string{"chassis/engine identity already active as registration MH12XY9876 under operator 12"},
			ReasonCodes:    []compliancedom.ReasonCode{compliancedom.ReasonCodeDuplicateIdentity},
		}, nil
	}
	o := f.orchestrator(Config{})

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.TicketsOpened)
	require.Len(t, f.tickets.opened, 1)
	assert.Equal(t, ticketdom.ReasonDuplicateIdentity, f.tickets.opened[0].Reason)
	assert.Equal(t, flagdom.SeverityCritical, f.tickets.opened[0].Severity)
}

func TestRunNonCriticalBlockOpensNoTicket(t *testing.T) {
	f := newFixture(truck("KA01AB0001", 1))
	f.decider.fn = func(in compliance.Input) (*compliancedom.Decision, error) {
		return &compliancedom.Decision{
			Allowed: false,
			Reasons: []string{"insurance certificate expired on 2026-01-01"},
		}, nil
	}
	o := f.orchestrator(Config{})

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Succeeded, "a blocked decision is still a successful item")
	assert.Empty(t, f.tickets.opened)
}

func TestRunRespectsBatchBoundaries(t *testing.T) {
	var trucks []vehicle.DeclaredTruck
	for i := int64(1); i <= 7; i++ {
		trucks = append(trucks, truck("KA01AB000"+string(rune('0'+i)), i))
	}
	f := newFixture(trucks...)
	o := f.orchestrator(Config{BatchSize: 3, Concurrency: 2})

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, res.Processed)
	assert.Equal(t, 7, res.Succeeded)
}
