// internal/service/classifier/classifier.go
package classifier

import (
	"fmt"
	"strings"

	"fleetcheck-service/internal/domain/compliance"
	"fleetcheck-service/internal/domain/vehicle"
	"fleetcheck-service/internal/service/inference"

	"go.uber.org/zap"
)

// Fleet categories by axle/tyre configuration.
const (
	CategoryLCV     = "LCV"
	CategoryMCV     = "MCV"
	CategoryHCV     = "HCV"
	CategoryMAV     = "MAV"
	CategoryTrailer = "TRAILER"
)

// blockedBodyTypes are body classes the platform does not support. Matching
// is substring, upper-cased; registries are verbose ("TIPPER BODY OPEN").
var blockedBodyTypes = []string{"TIPPER", "TANKER", "DUMPER", "GARBAGE", "CRANE", "MIXER"}

// acceptedEmissionGrades are the only two grades currently allowed.
var acceptedEmissionGrades = []string{"BS4", "BHARAT STAGE IV", "BS6", "BHARAT STAGE VI"}

type categorySpec struct {
	tyreCount   int
	axles       int
	maxLengthFt float64
	minGrossKG  float64
	maxGrossKG  float64
}

var categorySpecs = map[string]categorySpec{
	CategoryLCV:     {tyreCount: 4, axles: 2, maxLengthFt: 19, minGrossKG: 2500, maxGrossKG: 8500},
	CategoryMCV:     {tyreCount: 6, axles: 2, maxLengthFt: 24, minGrossKG: 7500, maxGrossKG: 19000},
	CategoryHCV:     {tyreCount: 10, axles: 3, maxLengthFt: 28, minGrossKG: 16000, maxGrossKG: 31000},
	CategoryMAV:     {tyreCount: 12, axles: 4, maxLengthFt: 34, minGrossKG: 26000, maxGrossKG: 40000},
	CategoryTrailer: {tyreCount: 14, axles: 5, maxLengthFt: 53, minGrossKG: 35000, maxGrossKG: 55000},
}

const lowConfidence = 0.3

// Result is a classification outcome with the rules that produced it.
// BlockCodes mirrors BlockReasons entry for entry with machine-readable
// codes.
type Result struct {
	Category      string                  `json:"category,omitempty"`
	BodyCategory  string                  `json:"body_category,omitempty"`
	ExpectedAxles int                     `json:"expected_axles,omitempty"`
	Blocked       bool                    `json:"blocked"`
	BlockReasons  []string                `json:"block_reasons,omitempty"`
	BlockCodes    []compliance.ReasonCode `json:"block_codes,omitempty"`
	Confidence    float64                 `json:"confidence"`
	RulesApplied  []string                `json:"rules_applied"`
}

// Classifier maps tyre/axle/weight/body-type data to a fleet category and
// applies the hard blocking rules. Rules are evaluated in order and
// short-circuit on the first block.
type Classifier struct {
	logger *zap.Logger
}

func NewClassifier(logger *zap.Logger) *Classifier {
	return &Classifier{logger: logger}
}

// Classify evaluates the blocking rules in order, then derives the fleet
// category and checks its sanity ranges.
func (c *Classifier) Classify(snap *vehicle.Snapshot, inferred inference.Result) Result {
	res := Result{Confidence: 1.0}

	// 1. Body-type block list.
	res.RulesApplied = append(res.RulesApplied, "body_type_blocklist")
	body := strings.ToUpper(snap.BodyTypeName)
	for _, blocked := range blockedBodyTypes {
		if strings.Contains(body, blocked) {
			res.Blocked = true
			res.BodyCategory = blocked
			res.BlockReasons = append(res.BlockReasons,
				fmt.Sprintf("body type %q is not supported (%s class)", snap.BodyTypeName, blocked))
			res.BlockCodes = append(res.BlockCodes, compliance.ReasonCodeBlockedBodyType)
			return res
		}
	}
	res.BodyCategory = bodyCategory(body)

	// 2. Emission-code compliance.
	res.RulesApplied = append(res.RulesApplied, "emission_grade")
	if !emissionAccepted(snap.EmissionNorms) {
		res.Blocked = true
		if strings.TrimSpace(snap.EmissionNorms) == "" {
			res.BlockReasons = append(res.BlockReasons, "emission grade missing from registry record")
		} else {
			res.BlockReasons = append(res.BlockReasons,
				fmt.Sprintf("emission grade %q is not accepted", snap.EmissionNorms))
		}
		res.BlockCodes = append(res.BlockCodes, compliance.ReasonCodeEmissionNotAccepted)
		return res
	}

	// 3. Category from tyre/axle count, inferred from weight when absent.
	res.RulesApplied = append(res.RulesApplied, "category_derivation")
	tyres := tyreCountFromWeight(snap.GrossWeightKG)
	if tyres == 0 {
		// No tyre/axle signal at all; classification stands but cannot be
		// trusted for length enforcement.
		res.Confidence = lowConfidence
		return res
	}
	res.Category = categoryForTyres(tyres)
	res.ExpectedAxles = ExpectedAxles(res.Category)

	spec := categorySpecs[res.Category]

	// 4. Per-category maximum length.
	if inferred.HasLength {
		res.RulesApplied = append(res.RulesApplied, "max_length")
		if max := MaxLengthFt(res.Category); inferred.LengthFt > max {
			res.Blocked = true
			res.BlockReasons = append(res.BlockReasons,
				fmt.Sprintf("length %.1f ft exceeds %s maximum %.0f ft", inferred.LengthFt, res.Category, max))
			res.BlockCodes = append(res.BlockCodes, compliance.ReasonCodeLengthExceedsClassMax)
			return res
		}
	}

	// 5. Weight-vs-tyre-count sanity range.
	if snap.GrossWeightKG > 0 {
		res.RulesApplied = append(res.RulesApplied, "weight_sanity")
		if snap.GrossWeightKG < spec.minGrossKG || snap.GrossWeightKG > spec.maxGrossKG {
			res.Blocked = true
			res.BlockReasons = append(res.BlockReasons,
				fmt.Sprintf("gross weight %.0f kg outside %s range %.0f-%.0f kg",
					snap.GrossWeightKG, res.Category, spec.minGrossKG, spec.maxGrossKG))
			res.BlockCodes = append(res.BlockCodes, compliance.ReasonCodeWeightOutsideClassRange)
			return res
		}
	}

	return res
}

// ExpectedAxles returns the axle count expected for a fleet category.
func ExpectedAxles(category string) int {
	return categorySpecs[category].axles
}

// MaxLengthFt returns the per-category body length ceiling.
func MaxLengthFt(category string) float64 {
	return categorySpecs[category].maxLengthFt
}

func emissionAccepted(norms string) bool {
	n := strings.ToUpper(strings.TrimSpace(norms))
	if n == "" {
		return false
	}
	for _, grade := range acceptedEmissionGrades {
		if strings.Contains(n, grade) {
			return true
		}
	}
	return false
}

// tyreCountFromWeight buckets gross weight into the usual tyre configuration.
func tyreCountFromWeight(grossKG float64) int {
	switch {
	case grossKG <= 0:
		return 0
	case grossKG < 8500:
		return 4
	case grossKG < 19000:
		return 6
	case grossKG < 31000:
		return 10
	case grossKG < 40000:
		return 12
	default:
		return 14
	}
}

func categoryForTyres(tyres int) string {
	switch {
	case tyres <= 4:
		return CategoryLCV
	case tyres <= 6:
		return CategoryMCV
	case tyres <= 10:
		return CategoryHCV
	case tyres <= 12:
		return CategoryMAV
	default:
		return CategoryTrailer
	}
}

func bodyCategory(upperBody string) string {
	switch {
	case strings.Contains(upperBody, "CONTAINER"):
		return "CONTAINER"
	case strings.Contains(upperBody, "OPEN"):
		return "OPEN"
	case strings.Contains(upperBody, "CLOSED"), strings.Contains(upperBody, "BOX"):
		return "CLOSED"
	case strings.Contains(upperBody, "FLAT"):
		return "FLATBED"
	default:
		return ""
	}
}

// BlockedBodyType reports whether a body-type name falls in the hard block
// list; the flag computer uses it for critical discrepancy flags.
func BlockedBodyType(bodyTypeName string) bool {
	body := strings.ToUpper(bodyTypeName)
	for _, blocked := range blockedBodyTypes {
		if strings.Contains(body, blocked) {
			return true
		}
	}
	return false
}
