// internal/registry/normalizer.go
package registry

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	registrydom "fleetcheck-service/internal/domain/registry"
	"fleetcheck-service/internal/domain/vehicle"
)

// Normalizer converts any provider's raw payload into the canonical vehicle
// snapshot. Providers disagree on field naming (camel case, snake case,
// legacy rc_ prefixes) and on number/date encodings; unparseable fields
// normalize to the zero value rather than failing the whole record.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Synonym sets per canonical field, checked in order.
var (
	keysRegistration  = []string{"rc_regn_no", "regNo", "reg_no", "registration_number", "registrationNumber"}
	keysStateCode     = []string{"state_code", "stateCode", "rc_state_code"}
	keysManufacturer  = []string{"rc_maker_desc", "maker", "manufacturer", "makerDescription"}
	keysModel         = []string{"rc_maker_model", "model", "makerModel", "model_name"}
	keysModelCode     = []string{"model_code", "modelCode", "rc_model_code"}
	keysGrossWeight   = []string{"rc_gvw", "grossWeight", "gross_vehicle_weight", "gvw"}
	keysUnladenWeight = []string{"rc_unld_wt", "unladenWeight", "unladen_weight"}
	keysWheelbase     = []string{"rc_wheelbase", "wheelBase", "wheelbase", "wheel_base"}
	keysBodyTypeCode  = []string{"rc_body_type_code", "bodyTypeCode", "body_type_code"}
	keysBodyTypeName  = []string{"rc_body_type_desc", "bodyType", "body_type", "bodyTypeDescription"}
	keysCategory      = []string{"rc_vch_catg", "vehicleCategory", "vehicle_class", "vehicleClass", "category"}
	keysEmission      = []string{"rc_norms_desc", "emissionNorms", "emission_norms", "norms"}
	keysPermitType    = []string{"rc_permit_type", "permitType", "permit_type"}
	keysPermitExpiry  = []string{"rc_permit_valid_upto", "permitValidUpto", "permit_valid_upto", "permit_expiry"}
	keysFitness       = []string{"rc_fit_upto", "fitnessUpto", "fitness_upto", "fitness_valid_upto"}
	keysInsurance     = []string{"rc_insurance_upto", "insuranceUpto", "insurance_upto", "insurance_valid_upto"}
	keysPollution     = []string{"rc_pucc_upto", "puccUpto", "pucc_upto", "pollution_valid_upto"}
	keysStatus        = []string{"rc_status", "status", "registration_status", "registrationStatus"}
	keysChassis       = []string{"rc_chasi_no", "chassisNo", "chassis_no", "chassis_number", "chassisNumber"}
	keysEngine        = []string{"rc_eng_no", "engineNo", "engine_no", "engine_number", "engineNumber"}
)

var dateLayouts = []string{
	"2006-01-02",
	"02-Jan-2006",
	"02/01/2006",
	"2006-01-02T15:04:05Z07:00",
	"02-01-2006",
}

// Normalize maps a raw provider record into a canonical snapshot.
func (n *Normalizer) Normalize(raw *registrydom.RawRecord) *vehicle.Snapshot {
	p := raw.Payload

	return &vehicle.Snapshot{
		RegistrationNo:     pickString(p, keysRegistration),
		StateCode:          pickString(p, keysStateCode),
		Manufacturer:       pickString(p, keysManufacturer),
		Model:              pickString(p, keysModel),
		ModelCode:          pickString(p, keysModelCode),
		GrossWeightKG:      pickNumber(p, keysGrossWeight),
		UnladenWeightKG:    pickNumber(p, keysUnladenWeight),
		WheelbaseMM:        pickNumber(p, keysWheelbase),
		BodyTypeCode:       pickString(p, keysBodyTypeCode),
		BodyTypeName:       pickString(p, keysBodyTypeName),
		Category:           pickString(p, keysCategory),
		EmissionNorms:      pickString(p, keysEmission),
		PermitType:         pickString(p, keysPermitType),
		PermitExpiry:       pickDate(p, keysPermitExpiry),
		FitnessExpiry:      pickDate(p, keysFitness),
		InsuranceExpiry:    pickDate(p, keysInsurance),
		PollutionExpiry:    pickDate(p, keysPollution),
		RegistrationStatus: pickString(p, keysStatus),
		ChassisNo:          pickString(p, keysChassis),
		EngineNo:           pickString(p, keysEngine),
		Provider:           raw.Provider,
		ProviderTxnID:      raw.TransactionID,
		CapturedAt:         raw.CapturedAt,
		RawPayload:         p,
	}
}

// Validate enforces the usability invariant: registration, chassis and engine
// numbers must be non-empty for a snapshot to feed compliance decisions.
// An incomplete snapshot is still retained for audit. The snapshot is not
// mutated.
func (n *Normalizer) Validate(snap *vehicle.Snapshot) []error {
	var errs []error
	if strings.TrimSpace(snap.RegistrationNo) == "" {
		errs = append(errs, fmt.Errorf("registration number is empty"))
	}
	if strings.TrimSpace(snap.ChassisNo) == "" {
		errs = append(errs, fmt.Errorf("chassis number is empty"))
	}
	if strings.TrimSpace(snap.EngineNo) == "" {
		errs = append(errs, fmt.Errorf("engine number is empty"))
	}
	return errs
}

func pickString(p map[string]interface{}, keys []string) string {
	for _, k := range keys {
		v, ok := lookup(p, k)
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			if t := strings.TrimSpace(s); t != "" {
				return t
			}
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		}
	}
	return ""
}

func pickNumber(p map[string]interface{}, keys []string) float64 {
	for _, k := range keys {
		v, ok := lookup(p, k)
		if !ok {
			continue
		}
		switch num := v.(type) {
		case float64:
			if num > 0 {
				return num
			}
		case int:
			if num > 0 {
				return float64(num)
			}
		case string:
			if f := parseNumeric(num); f > 0 {
				return f
			}
		}
	}
	return 0
}

func pickDate(p map[string]interface{}, keys []string) time.Time {
	for _, k := range keys {
		v, ok := lookup(p, k)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// lookup is case-insensitive on the final fallback so providers that
// capitalize differently still match.
func lookup(p map[string]interface{}, key string) (interface{}, bool) {
	if v, ok := p[key]; ok {
		return v, true
	}
	for k, v := range p {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// parseNumeric handles strings like "12500 KG", "4,250 MM" or "7500.5".
func parseNumeric(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		} else if r == ',' {
			continue
		} else if b.Len() > 0 {
			break
		}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return f
}
