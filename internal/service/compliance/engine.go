// internal/service/compliance/engine.go
package compliance

import (
	"context"
	"fmt"
	"time"

	compliancedom "fleetcheck-service/internal/domain/compliance"
	"fleetcheck-service/internal/domain/vehicle"
	"fleetcheck-service/internal/pkg/hash"
	"fleetcheck-service/internal/registry"
	"fleetcheck-service/internal/service/classifier"
	"fleetcheck-service/internal/service/inference"

	"go.uber.org/zap"
)

// CacheRepository persists compliance cache entries. The engine is the sole
// writer; keyed by (registration, operator) with upsert semantics.
type CacheRepository interface {
	Upsert(ctx context.Context, entry *compliancedom.CacheEntry) error
	FindByKey(ctx context.Context, registrationNo string, operatorID int64) (*compliancedom.CacheEntry, error)
	FindByIdentityHash(ctx context.Context, identityHash string) ([]compliancedom.CacheEntry, error)
}

// FleetRepository answers operator fleet-size questions.
type FleetRepository interface {
	CountOtherActiveTrucks(ctx context.Context, operatorID int64, excludeRegistrationNo string) (int, error)
}

// DecisionCache is the hot allow/block lookup (redis).
type DecisionCache interface {
	Put(ctx context.Context, decision *compliancedom.Decision, ttl time.Duration) error
	Invalidate(ctx context.Context, registrationNo string, operatorID int64) error
}

// AuditRecorder appends decision evidence to the audit trail.
type AuditRecorder interface {
	RecordDecision(ctx context.Context, decision *compliancedom.Decision, statuses map[string]compliancedom.CheckStatus) error
}

// Config tunes the engine's policy constants. Zero values take the platform
// defaults.
type Config struct {
	GPSWindow  time.Duration // default 60m
	FleetLimit int           // default 10
	CacheTTL   time.Duration // default 7d
}

// Input is everything one decision needs. Decisions are a pure function of
// this input plus cache state at call time (for the duplicate check).
type Input struct {
	RegistrationNo  string
	OperatorID      int64
	VehicleID       int64
	Snapshot        *vehicle.Snapshot
	GPSLastPingAt   *time.Time
	IsTrailer       bool
	LinkedTractorNo string
}

// Engine is the central rule evaluator. Every check contributes its block
// reason independently; unlike the classifier's internal short-circuit, the
// engine never stops at the first failure, so an administrator sees every
// problem at once.
type Engine struct {
	normalizer *registry.Normalizer
	inference  *inference.Engine
	classifier *classifier.Classifier

	cacheRepo CacheRepository
	fleetRepo FleetRepository
	hotCache  DecisionCache
	audit     AuditRecorder

	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func NewEngine(
	normalizer *registry.Normalizer,
	inf *inference.Engine,
	cls *classifier.Classifier,
	cacheRepo CacheRepository,
	fleetRepo FleetRepository,
	hotCache DecisionCache,
	audit AuditRecorder,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	if cfg.GPSWindow <= 0 {
		cfg.GPSWindow = 60 * time.Minute
	}
	if cfg.FleetLimit <= 0 {
		cfg.FleetLimit = 10
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 7 * 24 * time.Hour
	}
	return &Engine{
		normalizer: normalizer,
		inference:  inf,
		classifier: cls,
		cacheRepo:  cacheRepo,
		fleetRepo:  fleetRepo,
		hotCache:   hotCache,
		audit:      audit,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Decide evaluates every compliance rule for the vehicle under the operator,
// persists the cache entry and audit evidence, and returns the decision.
// A blocked decision is a successful, fully-reasoned outcome, not an error;
// the error return covers persistence and hashing failures only.
func (e *Engine) Decide(ctx context.Context, in Input) (*compliancedom.Decision, error) {
	now := e.now().UTC()
	snap := in.Snapshot

	var (
		reasons []string
		codes   []compliancedom.ReasonCode
		rules   []string
	)
	entry := &compliancedom.CacheEntry{
		RegistrationNo: in.RegistrationNo,
		OperatorID:     in.OperatorID,
		VehicleID:      in.VehicleID,
		LastVerifiedAt: now,
		ExpiresAt:      now.Add(e.cfg.CacheTTL),
	}

	// Snapshot validity.
	rules = append(rules, "snapshot_validity")
	validationErrs := e.normalizer.Validate(snap)
	for _, verr := range validationErrs {
		reasons = append(reasons, fmt.Sprintf("registry snapshot unusable: %s", verr.Error()))
	}

	// Duplicate identity over hashed chassis/engine numbers.
	rules = append(rules, "duplicate_identity")
	entry.DuplicateStatus = compliancedom.CheckSkipped
	if len(validationErrs) == 0 {
		dupReasons, chassisHash, engineHash, err := e.checkDuplicates(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to run duplicate check: %w", err)
		}
		entry.ChassisHash = chassisHash
		entry.EngineHash = engineHash
		entry.DuplicateStatus = compliancedom.CheckPass
		if len(dupReasons) > 0 {
			entry.DuplicateStatus = compliancedom.CheckFail
			reasons = append(reasons, dupReasons...)
			codes = append(codes, compliancedom.ReasonCodeDuplicateIdentity)
		}
	}

	// Inference and classification.
	inferred := e.inference.Infer(snap)
	cls := e.classifier.Classify(snap, inferred)
	rules = append(rules, cls.RulesApplied...)
	entry.ClassificationStatus = compliancedom.CheckPass
	if cls.Blocked {
		entry.ClassificationStatus = compliancedom.CheckFail
		reasons = append(reasons, cls.BlockReasons...)
		codes = append(codes, cls.BlockCodes...)
	}
	entry.InferenceConfidence = inferred.Confidence

	// Permit and document expiries.
	rules = append(rules, "permit")
	res := checkPermit(snap, now)
	entry.PermitStatus = res.status
	reasons = appendReason(reasons, res)

	rules = append(rules, "fitness")
	res = checkDocumentExpiry("fitness", snap.FitnessExpiry, now)
	entry.FitnessStatus = res.status
	reasons = appendReason(reasons, res)

	rules = append(rules, "insurance")
	res = checkDocumentExpiry("insurance", snap.InsuranceExpiry, now)
	entry.InsuranceStatus = res.status
	reasons = appendReason(reasons, res)

	rules = append(rules, "pollution")
	res = checkDocumentExpiry("pollution", snap.PollutionExpiry, now)
	entry.PollutionStatus = res.status
	reasons = appendReason(reasons, res)

	// Vehicle category.
	rules = append(rules, "category")
	res = checkCategory(snap)
	entry.CategoryStatus = res.status
	reasons = appendReason(reasons, res)

	// GPS telemetry freshness.
	rules = append(rules, "telemetry")
	res = checkTelemetry(in.GPSLastPingAt, now, e.cfg.GPSWindow)
	entry.TelemetryStatus = res.status
	reasons = appendReason(reasons, res)

	// Trailer pairing.
	rules = append(rules, "trailer_pairing")
	res = checkTrailerPairing(in.IsTrailer, in.LinkedTractorNo)
	reasons = appendReason(reasons, res)

	// Operator fleet-size limit. The subject vehicle is excluded from the
	// count so re-verifying an already-active truck never trips the limit.
	rules = append(rules, "fleet_limit")
	activeCount, err := e.fleetRepo.CountOtherActiveTrucks(ctx, in.OperatorID, in.RegistrationNo)
	if err != nil {
		return nil, fmt.Errorf("failed to count operator fleet: %w", err)
	}
	res = checkFleetLimit(activeCount, e.cfg.FleetLimit)
	reasons = appendReason(reasons, res)

	decision := &compliancedom.Decision{
		RegistrationNo:      in.RegistrationNo,
		OperatorID:          in.OperatorID,
		Allowed:             len(reasons) == 0,
		Reasons:             reasons,
		ReasonCodes:         codes,
		RulesApplied:        rules,
		Provider:            snap.Provider,
		InferenceConfidence: inferred.Confidence,
		LastVerifiedAt:      now,
		DecidedAt:           now,
	}

	entry.Allowed = decision.Allowed
	entry.Reasons = reasons
	entry.RulesApplied = rules
	entry.Provider = snap.Provider

	if err := e.cacheRepo.Upsert(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to persist compliance cache entry: %w", err)
	}
	if err := e.hotCache.Put(ctx, decision, e.cfg.CacheTTL); err != nil {
		// The persisted entry is authoritative; a cold hot-cache only costs
		// a lookup. Drop any stale copy so the two stores cannot disagree.
		if ierr := e.hotCache.Invalidate(ctx, in.RegistrationNo, in.OperatorID); ierr != nil {
			e.logger.Warn("failed to invalidate hot decision cache",
				zap.String("registration", in.RegistrationNo),
				zap.Error(ierr),
			)
		}
		e.logger.Warn("failed to write hot decision cache",
			zap.String("registration", in.RegistrationNo),
			zap.Error(err),
		)
	}
	if err := e.audit.RecordDecision(ctx, decision, entry.Statuses()); err != nil {
		return nil, fmt.Errorf("failed to write audit entry: %w", err)
	}

	e.logger.Info("compliance decision",
		zap.String("registration", in.RegistrationNo),
		zap.Int64("operator_id", in.OperatorID),
		zap.Bool("allowed", decision.Allowed),
		zap.Int("reasons", len(reasons)),
	)
	return decision, nil
}

// checkDuplicates hashes the identity numbers and searches existing cache
// entries for the same physical unit under a different registration or
// operator.
func (e *Engine) checkDuplicates(ctx context.Context, in Input) (reasons []string, chassisHash, engineHash string, err error) {
	snap := in.Snapshot

	chassisHash, err = hash.Identity(snap.ChassisNo)
	if err != nil {
		return nil, "", "", err
	}
	engineHash, err = hash.Identity(snap.EngineNo)
	if err != nil {
		return nil, "", "", err
	}

	seen := make(map[string]bool)
	for _, h := range []string{chassisHash, engineHash} {
		matches, ferr := e.cacheRepo.FindByIdentityHash(ctx, h)
		if ferr != nil {
			return nil, "", "", ferr
		}
		for _, m := range matches {
			if m.RegistrationNo == in.RegistrationNo && m.OperatorID == in.OperatorID {
				continue // our own previous entry
			}
			key := fmt.Sprintf("%s/%d", m.RegistrationNo, m.OperatorID)
			if seen[key] {
				continue
			}
			seen[key] = true
			reasons = append(reasons, fmt.Sprintf(
				"chassis/engine identity already active as registration %s under operator %d",
				m.RegistrationNo, m.OperatorID))
		}
	}
	return reasons, chassisHash, engineHash, nil
}

func appendReason(reasons []string, res checkResult) []string {
	if res.status == compliancedom.CheckFail {
		return append(reasons, res.reason)
	}
	return reasons
}
