// internal/service/batch/orchestrator.go
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	compliancedom "fleetcheck-service/internal/domain/compliance"
	flagdom "fleetcheck-service/internal/domain/flag"
	ticketdom "fleetcheck-service/internal/domain/ticket"
	"fleetcheck-service/internal/domain/vehicle"
	"fleetcheck-service/internal/service/compliance"
	"fleetcheck-service/internal/service/flags"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Verifier fetches and normalizes one registration through the provider
// cascade.
type Verifier interface {
	Verify(ctx context.Context, registrationNo string) (*vehicle.Snapshot, error)
}

// Decider runs the compliance rule evaluation for one vehicle.
type Decider interface {
	Decide(ctx context.Context, in compliance.Input) (*compliancedom.Decision, error)
}

// FleetRepository selects the vehicles due for re-verification: no cache
// entry, an expired one, or one older than the staleness window,
// oldest-verified-first.
type FleetRepository interface {
	SelectNeedingVerification(ctx context.Context, staleness time.Duration, limit int) ([]vehicle.DeclaredTruck, error)
}

// SnapshotRepository stores fetched snapshots and answers the provider
// disagreement question.
type SnapshotRepository interface {
	Upsert(ctx context.Context, snap *vehicle.Snapshot) error
	FindLatestOtherProvider(ctx context.Context, registrationNo, provider string) (*vehicle.Snapshot, error)
}

// FlagRepository appends computed flags and serves flag history.
type FlagRepository interface {
	Append(ctx context.Context, f *flagdom.Flag) error
	HistoryByVehicle(ctx context.Context, vehicleID int64) ([]flagdom.Flag, error)
}

// TicketOpener escalates critical findings.
type TicketOpener interface {
	Open(ctx context.Context, t *ticketdom.Ticket) (string, bool, error)
}

// ReviewRequester emits photo-check tasks for flags that need human eyes.
type ReviewRequester interface {
	RequestPhotoCheck(vehicleID, operatorID, flagID int64)
}

// EventPublisher streams batch progress to connected dashboards.
type EventPublisher interface {
	Publish(event string, payload interface{})
}

// Config tunes batching and fan-out.
type Config struct {
	BatchSize   int           // default 50
	Concurrency int           // default 10
	Staleness   time.Duration // default 7d
	MaxVehicles int           // cap per run, default 5000
}

// ItemFailure is one (registration, error) pair in the aggregate result.
type ItemFailure struct {
	RegistrationNo string `json:"registration_no"`
	Error          string `json:"error"`
}

// Result is the aggregate outcome of one run. A run never fails because
// individual vehicles did; only catastrophic errors propagate.
type Result struct {
	RunID         string        `json:"run_id"`
	Processed     int           `json:"processed"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	TicketsOpened int           `json:"tickets_opened"`
	Failures      []ItemFailure `json:"failures,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
}

// Orchestrator drives the nightly (or on-demand) re-verification sweep.
// Candidates are processed in fixed-size batches with bounded concurrency;
// within one vehicle the steps are strictly sequential, and nothing blocks
// on another vehicle's processing.
type Orchestrator struct {
	fleet     FleetRepository
	verifier  Verifier
	snapshots SnapshotRepository
	flagRepo  FlagRepository
	computer  *flags.Computer
	decider   Decider
	tickets   TicketOpener
	review    ReviewRequester
	events    EventPublisher

	cfg    Config
	logger *zap.Logger
}

func NewOrchestrator(
	fleet FleetRepository,
	verifier Verifier,
	snapshots SnapshotRepository,
	flagRepo FlagRepository,
	computer *flags.Computer,
	decider Decider,
	tickets TicketOpener,
	review ReviewRequester,
	events EventPublisher,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.Staleness <= 0 {
		cfg.Staleness = 7 * 24 * time.Hour
	}
	if cfg.MaxVehicles <= 0 {
		cfg.MaxVehicles = 5000
	}
	return &Orchestrator{
		fleet:     fleet,
		verifier:  verifier,
		snapshots: snapshots,
		flagRepo:  flagRepo,
		computer:  computer,
		decider:   decider,
		tickets:   tickets,
		review:    review,
		events:    events,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run selects candidates and processes them batch by batch. The returned
// error covers only catastrophic problems (candidate selection failing);
// per-vehicle failures are recorded in the result.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:     ulid.Make().String(),
		StartedAt: time.Now().UTC(),
	}

	candidates, err := o.fleet.SelectNeedingVerification(ctx, o.cfg.Staleness, o.cfg.MaxVehicles)
	if err != nil {
		return nil, fmt.Errorf("failed to select verification candidates: %w", err)
	}

	o.logger.Info("batch run starting",
		zap.String("run_id", res.RunID),
		zap.Int("candidates", len(candidates)),
		zap.Int("batch_size", o.cfg.BatchSize),
		zap.Int("concurrency", o.cfg.Concurrency),
	)
	if o.events != nil {
		o.events.Publish("batch.started", map[string]interface{}{
			"run_id": res.RunID, "candidates": len(candidates),
		})
	}

	var mu sync.Mutex

	for start := 0; start < len(candidates); start += o.cfg.BatchSize {
		end := start + o.cfg.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		// Every item in the batch finishes (success or failure) before the
		// next batch starts; errgroup is used for bounded fan-out only, so
		// goroutines never return errors into it.
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.cfg.Concurrency)

		for _, truck := range candidates[start:end] {
			truck := truck
			g.Go(func() error {
				outcome := o.processOne(gctx, res.RunID, &truck)

				mu.Lock()
				res.Processed++
				res.TicketsOpened += outcome.ticketsOpened
				if outcome.err != nil {
					res.Failed++
					res.Failures = append(res.Failures, ItemFailure{
						RegistrationNo: truck.RegistrationNo,
						Error:          outcome.err.Error(),
					})
				} else {
					res.Succeeded++
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	res.FinishedAt = time.Now().UTC()
	o.logger.Info("batch run finished",
		zap.String("run_id", res.RunID),
		zap.Int("processed", res.Processed),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Int("tickets_opened", res.TicketsOpened),
	)
	if o.events != nil {
		o.events.Publish("batch.finished", res)
	}
	return res, nil
}

type itemOutcome struct {
	ticketsOpened int
	err           error
}

// processOne walks a single vehicle through fetch -> store -> disagreement
// check -> flags -> decide -> maybe escalate. Panics are contained here so a
// programmer error in one item cannot abort its siblings.
func (o *Orchestrator) processOne(ctx context.Context, runID string, truck *vehicle.DeclaredTruck) (out itemOutcome) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic while processing vehicle",
				zap.String("run_id", runID),
				zap.String("registration", truck.RegistrationNo),
				zap.Any("panic", r),
			)
			out.err = fmt.Errorf("panic: %v", r)
		}
	}()

	// Fetch. On failure the item stops here; no decision is attempted.
	snap, err := o.verifier.Verify(ctx, truck.RegistrationNo)
	if err != nil {
		o.logger.Warn("fetch failed for vehicle",
			zap.String("run_id", runID),
			zap.String("registration", truck.RegistrationNo),
			zap.Error(err),
		)
		return itemOutcome{err: fmt.Errorf("fetch failed: %w", err)}
	}

	if err := o.snapshots.Upsert(ctx, snap); err != nil {
		return itemOutcome{err: fmt.Errorf("failed to store snapshot: %w", err)}
	}

	tickets := 0

	// Provider disagreement against the latest snapshot from a different
	// source.
	prev, err := o.snapshots.FindLatestOtherProvider(ctx, truck.RegistrationNo, snap.Provider)
	if err != nil {
		o.logger.Warn("provider-disagreement check skipped",
			zap.String("registration", truck.RegistrationNo),
			zap.Error(err),
		)
	}
	if prev != nil {
		if mismatch := providersDisagree(snap, prev); mismatch != "" {
			_, created, terr := o.tickets.Open(ctx, &ticketdom.Ticket{
				VehicleID:      truck.VehicleID,
				OperatorID:     truck.OperatorID,
				RegistrationNo: truck.RegistrationNo,
				Reason:         ticketdom.ReasonProviderMismatch,
				Severity:       flagdom.SeverityHigh,
				Notes: map[string]interface{}{
					"mismatch": mismatch,
					"current":  snap.Info(),
					"previous": prev.Info(),
					"run_id":   runID,
				},
			})
			if terr != nil {
				o.logger.Error("failed to open provider-mismatch ticket",
					zap.String("registration", truck.RegistrationNo),
					zap.Error(terr),
				)
			} else if created {
				tickets++
			}
		}
	}

	// Declared-vs-registry flags, appended to the vehicle's history.
	computed := o.computer.Compute(truck, snap)
	for i := range computed {
		if err := o.flagRepo.Append(ctx, &computed[i]); err != nil {
			return itemOutcome{ticketsOpened: tickets, err: fmt.Errorf("failed to store flag: %w", err)}
		}
		if computed[i].Code == flagdom.CodePhotoCheckRequired && o.review != nil {
			o.review.RequestPhotoCheck(truck.VehicleID, truck.OperatorID, computed[i].ID)
		}
	}

	// Persistent mismatches escalate regardless of severity.
	history, err := o.flagRepo.HistoryByVehicle(ctx, truck.VehicleID)
	if err != nil {
		o.logger.Warn("persistent-mismatch check skipped",
			zap.String("registration", truck.RegistrationNo),
			zap.Error(err),
		)
	}
	if persistent := o.computer.PersistentMismatches(history); len(persistent) > 0 {
		_, created, terr := o.tickets.Open(ctx, &ticketdom.Ticket{
			VehicleID:      truck.VehicleID,
			OperatorID:     truck.OperatorID,
			RegistrationNo: truck.RegistrationNo,
			Reason:         ticketdom.ReasonPersistentMismatch,
			Severity:       flagdom.SeverityHigh,
			Notes:          map[string]interface{}{"codes": persistent, "run_id": runID},
		})
		if terr != nil {
			o.logger.Error("failed to open persistent-mismatch ticket",
				zap.String("registration", truck.RegistrationNo),
				zap.Error(terr),
			)
		} else if created {
			tickets++
		}
	}

	// Decision.
	decision, err := o.decider.Decide(ctx, compliance.Input{
		RegistrationNo:  truck.RegistrationNo,
		OperatorID:      truck.OperatorID,
		VehicleID:       truck.VehicleID,
		Snapshot:        snap,
		GPSLastPingAt:   truck.GPSLastPingAt,
		IsTrailer:       truck.IsTrailer,
		LinkedTractorNo: truck.LinkedTractorNo,
	})
	if err != nil {
		return itemOutcome{ticketsOpened: tickets, err: fmt.Errorf("decision failed: %w", err)}
	}

	// Critical block reasons open a ticket.
	if !decision.Allowed {
		if reason, sev, critical := criticalReason(decision); critical {
			_, created, terr := o.tickets.Open(ctx, &ticketdom.Ticket{
				VehicleID:      truck.VehicleID,
				OperatorID:     truck.OperatorID,
				RegistrationNo: truck.RegistrationNo,
				Reason:         reason,
				Severity:       sev,
				Notes: map[string]interface{}{
					"reasons": decision.Reasons,
					"run_id":  runID,
				},
			})
			if terr != nil {
				o.logger.Error("failed to open critical-decision ticket",
					zap.String("registration", truck.RegistrationNo),
					zap.Error(terr),
				)
			} else if created {
				tickets++
			}
		}
	}

	return itemOutcome{ticketsOpened: tickets}
}

// providersDisagree compares category and gross weight between differently
// sourced snapshots; either diverging is a registry-level conflict a human
// should look at.
func providersDisagree(a, b *vehicle.Snapshot) string {
	if a.Category != "" && b.Category != "" && !equalFold(a.Category, b.Category) {
		return fmt.Sprintf("category %q (%s) vs %q (%s)", a.Category, a.Provider, b.Category, b.Provider)
	}
	if a.GrossWeightKG > 0 && b.GrossWeightKG > 0 {
		diff := a.GrossWeightKG - b.GrossWeightKG
		if diff < 0 {
			diff = -diff
		}
		if diff/b.GrossWeightKG > 0.10 {
			return fmt.Sprintf("gross weight %.0f kg (%s) vs %.0f kg (%s)",
				a.GrossWeightKG, a.Provider, b.GrossWeightKG, b.Provider)
		}
	}
	return ""
}

// criticalReason picks out the block codes that warrant immediate human
// escalation: duplicate identity and invalid-length-for-class.
func criticalReason(d *compliancedom.Decision) (ticketdom.ReasonCode, flagdom.Severity, bool) {
	for _, code := range d.ReasonCodes {
		switch code {
		case compliancedom.ReasonCodeDuplicateIdentity:
			return ticketdom.ReasonDuplicateIdentity, flagdom.SeverityCritical, true
		case compliancedom.ReasonCodeLengthExceedsClassMax:
			return ticketdom.ReasonInvalidLengthForClass, flagdom.SeverityHigh, true
		}
	}
	return "", "", false
}
