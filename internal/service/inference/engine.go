// internal/service/inference/engine.go
package inference

import (
	"strings"

	"fleetcheck-service/internal/domain/vehicle"

	"go.uber.org/zap"
)

const (
	MethodModelLookup  = "model_lookup"
	MethodWheelbase    = "wheelbase"
	MethodWeightBucket = "weight_bucket"

	confModelLookup = 0.9
	confWheelbase   = 0.7
	confWeightUpper = 0.6
	confWeightLower = 0.5
	confFallback    = 0.3
	usabilityCutoff = 0.6

	// Wheelbase values outside this window are registry noise; rejected
	// outright rather than extrapolated.
	wheelbaseMinMM = 2500
	wheelbaseMaxMM = 8500
)

// Estimate is one candidate body length with its own confidence.
type Estimate struct {
	LengthFt   float64 `json:"length_ft"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// Result is the engine's output. HasLength is false when no candidate cleared
// the usability threshold; candidates are retained either way so downstream
// logic can require manual verification.
type Result struct {
	LengthFt   float64    `json:"length_ft"`
	HasLength  bool       `json:"has_length"`
	Confidence float64    `json:"confidence"`
	Method     string     `json:"method"`
	Candidates []Estimate `json:"candidates"`
}

// Engine estimates a vehicle's body length from whatever signals the
// snapshot carries, via three independent estimators.
type Engine struct {
	models map[string]float64 // "MANUFACTURER|MODEL" -> typical length ft
	logger *zap.Logger
}

func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{models: defaultModelLengths(), logger: logger}
}

// Infer runs every estimator and selects the highest-confidence candidate.
func (e *Engine) Infer(snap *vehicle.Snapshot) Result {
	var candidates []Estimate

	if est, ok := e.estimateFromModel(snap); ok {
		candidates = append(candidates, est)
	}
	if est, ok := e.estimateFromWheelbase(snap); ok {
		candidates = append(candidates, est)
	}
	if est, ok := e.estimateFromWeight(snap); ok {
		candidates = append(candidates, est)
	}

	best := Estimate{}
	for _, c := range candidates {
		if c.Confidence > best.Confidence {
			best = c
		}
	}

	if best.Confidence < usabilityCutoff {
		// Nothing usable; keep the candidates and report low confidence so
		// the decision layer can route to manual verification.
		return Result{
			Confidence: confFallback,
			Candidates: candidates,
		}
	}

	return Result{
		LengthFt:   best.LengthFt,
		HasLength:  true,
		Confidence: best.Confidence,
		Method:     best.Method,
		Candidates: candidates,
	}
}

// estimateFromModel looks the manufacturer+model pair up in the reference
// table, exact match first, then prefix match on the model name.
func (e *Engine) estimateFromModel(snap *vehicle.Snapshot) (Estimate, bool) {
	maker := normalizeKey(snap.Manufacturer)
	model := normalizeKey(snap.Model)
	if maker == "" || model == "" {
		return Estimate{}, false
	}

	if length, ok := e.models[maker+"|"+model]; ok {
		return Estimate{LengthFt: length, Confidence: confModelLookup, Method: MethodModelLookup}, true
	}

	// Fuzzy: registry model strings often carry variant suffixes
	// ("1109G XL" vs "1109G").
	for key, length := range e.models {
		parts := strings.SplitN(key, "|", 2)
		if parts[0] != maker {
			continue
		}
		if strings.HasPrefix(model, parts[1]) || strings.HasPrefix(parts[1], model) {
			return Estimate{LengthFt: length, Confidence: confModelLookup, Method: MethodModelLookup}, true
		}
	}
	return Estimate{}, false
}

// estimateFromWheelbase derives body length from wheelbase geometry. Only
// applicable inside the plausible wheelbase window.
func (e *Engine) estimateFromWheelbase(snap *vehicle.Snapshot) (Estimate, bool) {
	wb := snap.WheelbaseMM
	if wb < wheelbaseMinMM || wb > wheelbaseMaxMM {
		return Estimate{}, false
	}
	// Body length tracks wheelbase plus front/rear overhang; the factor and
	// constant come from fitting the manufacturer reference table.
	lengthFt := (wb*1.45 + 1800) / 304.8
	return Estimate{LengthFt: roundHalf(lengthFt), Confidence: confWheelbase, Method: MethodWheelbase}, true
}

// estimateFromWeight is the coarse fallback: gross weight bucket to typical
// body length. Uses unladen weight when gross is absent, at lower confidence.
func (e *Engine) estimateFromWeight(snap *vehicle.Snapshot) (Estimate, bool) {
	weight := snap.GrossWeightKG
	conf := confWeightUpper
	if weight <= 0 {
		weight = snap.UnladenWeightKG * 2.2
		conf = confWeightLower
	}
	if weight <= 0 {
		return Estimate{}, false
	}

	var lengthFt float64
	switch {
	case weight < 3500:
		lengthFt = 9
	case weight < 7500:
		lengthFt = 14
	case weight < 12000:
		lengthFt = 17
	case weight < 16500:
		lengthFt = 19
	case weight < 25000:
		lengthFt = 22
	case weight < 31000:
		lengthFt = 24
	case weight < 37000:
		lengthFt = 28
	default:
		lengthFt = 32
	}
	return Estimate{LengthFt: lengthFt, Confidence: conf, Method: MethodWeightBucket}, true
}

func normalizeKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func roundHalf(f float64) float64 {
	return float64(int(f*2+0.5)) / 2
}
