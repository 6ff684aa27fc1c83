package compliance

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	compliancedom "fleetcheck-service/internal/domain/compliance"
	"fleetcheck-service/internal/domain/vehicle"
	"fleetcheck-service/internal/pkg/hash"
	"fleetcheck-service/internal/registry"
	"fleetcheck-service/internal/service/classifier"
	"fleetcheck-service/internal/service/inference"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

type fakeCacheRepo struct {
	upserted []*compliancedom.CacheEntry
	byHash   map[string][]compliancedom.CacheEntry
	findErr  error
}

func (f *fakeCacheRepo) Upsert(ctx context.Context, entry *compliancedom.CacheEntry) error {
	f.upserted = append(f.upserted, entry)
	return nil
}

func (f *fakeCacheRepo) FindByKey(ctx context.Context, reg string, op int64) (*compliancedom.CacheEntry, error) {
	return nil, nil
}

func (f *fakeCacheRepo) FindByIdentityHash(ctx context.Context, h string) ([]compliancedom.CacheEntry, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.byHash[h], nil
}

type fakeFleetRepo struct {
	active []string
	err    error
}

func (f *fakeFleetRepo) CountOtherActiveTrucks(ctx context.Context, operatorID int64, excludeRegistrationNo string) (int, error) {
	n := 0
	for _, reg := range f.active {
		if reg != excludeRegistrationNo {
			n++
		}
	}
	return n, f.err
}

type fakeHotCache struct {
	puts        []*compliancedom.Decision
	invalidated []string
	err         error
}

func (f *fakeHotCache) Put(ctx context.Context, d *compliancedom.Decision, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.puts = append(f.puts, d)
	return nil
}

func (f *fakeHotCache) Invalidate(ctx context.Context, registrationNo string, operatorID int64) error {
	f.invalidated = append(f.invalidated, registrationNo)
	return nil
}

type fakeAudit struct {
	decisions []*compliancedom.Decision
}

func (f *fakeAudit) RecordDecision(ctx context.Context, d *compliancedom.Decision, statuses map[string]compliancedom.CheckStatus) error {
	f.decisions = append(f.decisions, d)
	return nil
}

type engineFixture struct {
	engine *Engine
	cache  *fakeCacheRepo
	fleet  *fakeFleetRepo
	hot    *fakeHotCache
	audit  *fakeAudit
}

func newFixture() *engineFixture {
	f := &engineFixture{
		cache: &fakeCacheRepo{byHash: map[string][]compliancedom.CacheEntry{}},
		fleet: &fakeFleetRepo{active: otherRegistrations(3)},
		hot:   &fakeHotCache{},
		audit: &fakeAudit{},
	}
	logger := zap.NewNop()
	f.engine = NewEngine(
		registry.NewNormalizer(),
		inference.NewEngine(logger),
		classifier.NewClassifier(logger),
		f.cache, f.fleet, f.hot, f.audit,
		Config{},
		logger,
	)
	f.engine.now = func() time.Time { return testNow }
	return f
}

func cleanSnapshot() *vehicle.Snapshot {
	return &vehicle.Snapshot{
		RegistrationNo: "KA01AB1234",
		Manufacturer:   "TATA MOTORS",
		Model:          "1613",
		GrossWeightKG:  16200,
		BodyTypeName:   "OPEN BODY",
		Category:       "GOODS CARRIER",
		EmissionNorms:  "BS6",
		PermitType:     "NATIONAL PERMIT",
		PermitExpiry:   testNow.Add(90 * 24 * time.Hour),
		FitnessExpiry:  testNow.Add(200 * 24 * time.Hour),
		ChassisNo:      "MB1NACHD4PRXX1234",
		EngineNo:       "ENG998877",
		Provider:       "national_registry",
	}
}

func otherRegistrations(n int) []string {
	regs := make([]string, n)
	for i := range regs {
		regs[i] = fmt.Sprintf("KA05ZZ%04d", i+1)
	}
	return regs
}

func cleanInput(snap *vehicle.Snapshot) Input {
	ping := testNow.Add(-10 * time.Minute)
	return Input{
		RegistrationNo: "KA01AB1234",
		OperatorID:     7,
		VehicleID:      101,
		Snapshot:       snap,
		GPSLastPingAt:  &ping,
	}
}

func TestDecideCleanVehicleAllowed(t *testing.T) {
	f := newFixture()

	d, err := f.engine.Decide(context.Background(), cleanInput(cleanSnapshot()))
	require.NoError(t, err)

	assert.True(t, d.Allowed)
	assert.Empty(t, d.Reasons)
	assert.Equal(t, "national_registry", d.Provider)

	require.Len(t, f.cache.upserted, 1)
	entry := f.cache.upserted[0]
	assert.True(t, entry.Allowed)
	assert.Equal(t, compliancedom.CheckPass, entry.PermitStatus)
	assert.Equal(t, compliancedom.CheckSkipped, entry.InsuranceStatus, "absent expiry is acceptable, not a failure")
	assert.Equal(t, compliancedom.CheckPass, entry.TelemetryStatus)
	assert.NotEmpty(t, entry.ChassisHash)
	assert.Equal(t, testNow.Add(7*24*time.Hour), entry.ExpiresAt)

	assert.Len(t, f.hot.puts, 1)
	assert.Len(t, f.audit.decisions, 1)
}

func TestDecideCollectsEveryReason(t *testing.T) {
	f := newFixture()
	snap := cleanSnapshot()
	snap.PermitExpiry = testNow.Add(-24 * time.Hour)
	snap.FitnessExpiry = testNow.Add(-48 * time.Hour)
	snap.Category = "PASSENGER"
	in := cleanInput(snap)
	in.GPSLastPingAt = nil

	d, err := f.engine.Decide(context.Background(), in)
	require.NoError(t, err)

	assert.False(t, d.Allowed)
	assert.GreaterOrEqual(t, len(d.Reasons), 4, "the engine never stops at the first failure: %v", d.Reasons)
}

func TestDecideDuplicateIdentityBlocked(t *testing.T) {
	f := newFixture()
	snap := cleanSnapshot()

	chassisHash, err := hash.Identity(snap.ChassisNo)
	require.NoError(t, err)
	f.cache.byHash[chassisHash] = []compliancedom.CacheEntry{
		{RegistrationNo: "MH12XY9876", OperatorID: 12},
	}

	d, err := f.engine.Decide(context.Background(), cleanInput(snap))
	require.NoError(t, err)

	assert.False(t, d.Allowed)
	require.NotEmpty(t, d.Reasons)
	assert.Contains(t, d.Reasons[0], "MH12XY9876")
	assert.Contains(t, d.ReasonCodes, compliancedom.ReasonCodeDuplicateIdentity)
	assert.Equal(t, compliancedom.CheckFail, f.cache.upserted[0].DuplicateStatus)
}

func TestDecideOwnPreviousEntryIsNotADuplicate(t *testing.T) {
	f := newFixture()
	snap := cleanSnapshot()

	chassisHash, err := hash.Identity(snap.ChassisNo)
	require.NoError(t, err)
	f.cache.byHash[chassisHash] = []compliancedom.CacheEntry{
		{RegistrationNo: "KA01AB1234", OperatorID: 7},
	}

	d, err := f.engine.Decide(context.Background(), cleanInput(snap))
	require.NoError(t, err)

	assert.True(t, d.Allowed)
	assert.Equal(t, compliancedom.CheckPass, f.cache.upserted[0].DuplicateStatus)
}

func TestDecideGPSFreshnessWindow(t *testing.T) {
	f := newFixture()

	t.Run("stale ping blocks", func(t *testing.T) {
		in := cleanInput(cleanSnapshot())
		ping := testNow.Add(-90 * time.Minute)
		in.GPSLastPingAt = &ping

		d, err := f.engine.Decide(context.Background(), in)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		require.Len(t, d.Reasons, 1)
		assert.Contains(t, d.Reasons[0], "GPS ping")
	})

	t.Run("fresh ping passes", func(t *testing.T) {
		in := cleanInput(cleanSnapshot())
		ping := testNow.Add(-10 * time.Minute)
		in.GPSLastPingAt = &ping

		d, err := f.engine.Decide(context.Background(), in)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})
}

func TestDecideBlankDocumentsAreSkippedNotFailed(t *testing.T) {
	f := newFixture()
	snap := cleanSnapshot()
	snap.PermitType = ""
	snap.PermitExpiry = time.Time{}
	snap.FitnessExpiry = time.Time{}

	d, err := f.engine.Decide(context.Background(), cleanInput(snap))
	require.NoError(t, err)

	assert.True(t, d.Allowed)
	entry := f.cache.upserted[0]
	assert.Equal(t, compliancedom.CheckSkipped, entry.PermitStatus)
	assert.Equal(t, compliancedom.CheckSkipped, entry.FitnessStatus)
}

func TestDecideBlockedPermitTypes(t *testing.T) {
	f := newFixture()

	for _, permit := range []string{"TEMPORARY PERMIT", "PRIVATE", "NON-TRANSPORT"} {
		snap := cleanSnapshot()
		snap.PermitType = permit

		d, err := f.engine.Decide(context.Background(), cleanInput(snap))
		require.NoError(t, err)
		assert.False(t, d.Allowed, "permit %q", permit)
	}
}

func TestDecidePermitNearExpiry(t *testing.T) {
	f := newFixture()
	snap := cleanSnapshot()
	snap.PermitExpiry = testNow.Add(3 * 24 * time.Hour)

	d, err := f.engine.Decide(context.Background(), cleanInput(snap))
	require.NoError(t, err)

	assert.False(t, d.Allowed)
	require.Len(t, d.Reasons, 1)
	assert.Contains(t, d.Reasons[0], "expires within 7 days")
}

func TestDecideUnusableSnapshotSkipsDuplicateCheck(t *testing.T) {
	f := newFixture()
	snap := cleanSnapshot()
	snap.ChassisNo = ""

	d, err := f.engine.Decide(context.Background(), cleanInput(snap))
	require.NoError(t, err)

	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reasons[0], "registry snapshot unusable")
	assert.Equal(t, compliancedom.CheckSkipped, f.cache.upserted[0].DuplicateStatus)
}

func TestDecideFleetLimit(t *testing.T) {
	f := newFixture()
	f.fleet.active = otherRegistrations(10)

	d, err := f.engine.Decide(context.Background(), cleanInput(cleanSnapshot()))
	require.NoError(t, err)

	assert.False(t, d.Allowed)
	require.Len(t, d.Reasons, 1)
	assert.Contains(t, d.Reasons[0], "limit 10")
}

func TestDecideFleetLimitIgnoresSubjectVehicle(t *testing.T) {
	f := newFixture()
	// Ten active trucks, but one of them is the vehicle under decision.
	// Nightly re-verification of an at-limit fleet must not block its own
	// members.
	f.fleet.active = append(otherRegistrations(9), "KA01AB1234")

	d, err := f.engine.Decide(context.Background(), cleanInput(cleanSnapshot()))
	require.NoError(t, err)

	assert.True(t, d.Allowed)
	assert.Empty(t, d.Reasons)
}

func TestDecideTrailerPairing(t *testing.T) {
	f := newFixture()

	in := cleanInput(cleanSnapshot())
	in.IsTrailer = true

	d, err := f.engine.Decide(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	in.LinkedTractorNo = "KA02TR4455"
	d, err = f.engine.Decide(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestDecideHotCacheFailureIsTolerated(t *testing.T) {
	f := newFixture()
	f.hot.err = errors.New("redis unavailable")

	d, err := f.engine.Decide(context.Background(), cleanInput(cleanSnapshot()))

	require.NoError(t, err, "the persisted entry is authoritative")
	assert.True(t, d.Allowed)
	assert.Len(t, f.audit.decisions, 1)
	assert.Equal(t, []string{"KA01AB1234"}, f.hot.invalidated,
		"a failed write must drop any stale hot copy")
}

func TestDecideIsIdempotent(t *testing.T) {
	f := newFixture()
	in := cleanInput(cleanSnapshot())

	first, err := f.engine.Decide(context.Background(), in)
	require.NoError(t, err)
	second, err := f.engine.Decide(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first.Allowed, second.Allowed)
	assert.Equal(t, first.Reasons, second.Reasons)
	assert.Len(t, f.cache.upserted, 2, "each run rewrites the same keyed entry")
}
