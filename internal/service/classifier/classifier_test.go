package classifier

import (
	"testing"

	"fleetcheck-service/internal/domain/compliance"
	"fleetcheck-service/internal/domain/vehicle"
	"fleetcheck-service/internal/service/inference"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func cleanSnapshot() *vehicle.Snapshot {
	return &vehicle.Snapshot{
		RegistrationNo: "KA01AB1234",
		BodyTypeName:   "OPEN BODY",
		EmissionNorms:  "BS6",
		GrossWeightKG:  16200,
	}
}

func TestClassifyTipperBlockedImmediately(t *testing.T) {
	c := NewClassifier(zap.NewNop())
	snap := cleanSnapshot()
	snap.BodyTypeName = "TIPPER BODY OPEN"

	res := c.Classify(snap, inference.Result{})

	assert.True(t, res.Blocked)
	require.Len(t, res.BlockReasons, 1)
	assert.Contains(t, res.BlockReasons[0], "TIPPER")
	assert.Equal(t, []compliance.ReasonCode{compliance.ReasonCodeBlockedBodyType}, res.BlockCodes)
	assert.Equal(t, []string{"body_type_blocklist"}, res.RulesApplied,
		"body-type block short-circuits before any other rule")
}

func TestClassifyBlockedBodyTypes(t *testing.T) {
	c := NewClassifier(zap.NewNop())

	for _, body := range []string{"TANKER", "DUMPER PLACER", "GARBAGE COMPACTOR", "MOBILE CRANE", "TRANSIT MIXER"} {
		snap := cleanSnapshot()
		snap.BodyTypeName = body
		res := c.Classify(snap, inference.Result{})
		assert.True(t, res.Blocked, "body %q", body)
	}
}

func TestClassifyEmissionGrades(t *testing.T) {
	c := NewClassifier(zap.NewNop())

	cases := []struct {
		norms   string
		blocked bool
	}{
		{"BS6", false},
		{"BHARAT STAGE VI", false},
		{"BS4", false},
		{"BS3", true},
		{"BHARAT STAGE II", true},
		{"", true},
	}
	for _, tc := range cases {
		snap := cleanSnapshot()
		snap.EmissionNorms = tc.norms
		res := c.Classify(snap, inference.Result{})
		assert.Equal(t, tc.blocked, res.Blocked, "norms %q", tc.norms)
	}
}

func TestClassifyCategoryFromWeight(t *testing.T) {
	c := NewClassifier(zap.NewNop())

	cases := []struct {
		grossKG  float64
		category string
	}{
		{5000, CategoryLCV},
		{16200, CategoryMCV},
		{25000, CategoryHCV},
		{35000, CategoryMAV},
		{45000, CategoryTrailer},
	}
	for _, tc := range cases {
		snap := cleanSnapshot()
		snap.GrossWeightKG = tc.grossKG
		res := c.Classify(snap, inference.Result{})
		assert.Equal(t, tc.category, res.Category, "gross %v", tc.grossKG)
		assert.False(t, res.Blocked, "gross %v", tc.grossKG)
	}
}

func TestClassifyLengthCeilingPerCategory(t *testing.T) {
	c := NewClassifier(zap.NewNop())

	snap := cleanSnapshot() // 16200 kg -> MCV, ceiling 24 ft

	res := c.Classify(snap, inference.Result{HasLength: true, LengthFt: 22})
	assert.False(t, res.Blocked)

	res = c.Classify(snap, inference.Result{HasLength: true, LengthFt: 26})
	assert.True(t, res.Blocked)
	require.Len(t, res.BlockReasons, 1)
	assert.Contains(t, res.BlockReasons[0], "exceeds MCV maximum")
	assert.Equal(t, []compliance.ReasonCode{compliance.ReasonCodeLengthExceedsClassMax}, res.BlockCodes)
	assert.Equal(t, 2, res.ExpectedAxles, "MCV runs on two axles")
}

func TestClassifyWeightSanityRange(t *testing.T) {
	c := NewClassifier(zap.NewNop())

	// 8600 kg buckets to 6 tyres (MCV) and sits inside the MCV gross range.
	snap := cleanSnapshot()
	snap.GrossWeightKG = 8600
	res := c.Classify(snap, inference.Result{})
	assert.Equal(t, CategoryMCV, res.Category)
	assert.False(t, res.Blocked)
}

func TestClassifyNoWeightSignal(t *testing.T) {
	c := NewClassifier(zap.NewNop())
	snap := cleanSnapshot()
	snap.GrossWeightKG = 0

	res := c.Classify(snap, inference.Result{HasLength: true, LengthFt: 40})

	assert.False(t, res.Blocked, "no category means no length ceiling to enforce")
	assert.Empty(t, res.Category)
	assert.Equal(t, 0.3, res.Confidence)
}

func TestBodyCategoryMapping(t *testing.T) {
	c := NewClassifier(zap.NewNop())

	cases := map[string]string{
		"CONTAINER BODY": "CONTAINER",
		"OPEN BODY":      "OPEN",
		"CLOSED BODY":    "CLOSED",
		"BOX BODY":       "CLOSED",
		"FLAT BED":       "FLATBED",
	}
	for body, want := range cases {
		snap := cleanSnapshot()
		snap.BodyTypeName = body
		res := c.Classify(snap, inference.Result{})
		assert.Equal(t, want, res.BodyCategory, "body %q", body)
	}
}

func TestExpectedAxlesAndMaxLength(t *testing.T) {
	assert.Equal(t, 2, ExpectedAxles(CategoryLCV))
	assert.Equal(t, 5, ExpectedAxles(CategoryTrailer))
	assert.Equal(t, 19.0, MaxLengthFt(CategoryLCV))
	assert.Equal(t, 53.0, MaxLengthFt(CategoryTrailer))
}

func TestBlockedBodyType(t *testing.T) {
	assert.True(t, BlockedBodyType("tipper body"))
	assert.True(t, BlockedBodyType("WATER TANKER"))
	assert.False(t, BlockedBodyType("OPEN BODY"))
}
