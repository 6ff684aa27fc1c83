// internal/service/flags/computer.go
package flags

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fleetcheck-service/internal/domain/flag"
	"fleetcheck-service/internal/domain/vehicle"
	"fleetcheck-service/internal/service/classifier"
)

// typicalLengthRange is the usual body length window (ft) per declared tyre
// count.
var typicalLengthRange = map[int][2]float64{
	4:  {8, 14},
	6:  {12, 18},
	10: {17, 24},
	12: {20, 28},
	14: {24, 34},
	18: {28, 53},
}

// typicalTyreCounts is the set of tyre configurations each manufacturer+model
// is sold with, keyed like the inference reference table.
var typicalTyreCounts = map[string][]int{
	"TATA MOTORS|709":    {4, 6},
	"TATA MOTORS|1109":   {6},
	"TATA MOTORS|2518":   {10},
	"TATA MOTORS|3518":   {12},
	"ASHOK LEYLAND|DOST": {4},
	"ASHOK LEYLAND|BOSS": {6},
	"ASHOK LEYLAND|2820": {10, 12},
	"EICHER|PRO 1110":    {6},
	"EICHER|PRO 6028":    {10, 12},
	"MAHINDRA|FURIO 7":   {4, 6},
	"BHARATBENZ|2823R":   {10},
}

// payloadPerTyreKG is the rough per-tyre load capacity used for the payload
// sanity check.
const payloadPerTyreKG = 1800

// payloadTolerance is how far over the derived capacity a declaration may go
// before it is flagged.
const payloadTolerance = 1.2

// Computer diffs operator declarations against the verified snapshot and
// manufacturer norms. Pure comparison logic; it persists nothing.
type Computer struct {
	now func() time.Time
}

func NewComputer() *Computer {
	return &Computer{now: time.Now}
}

// Compute returns the flags raised by comparing the declaration with the
// snapshot. The snapshot may be nil when no registry data is available yet;
// declaration-only checks still run.
func (c *Computer) Compute(declared *vehicle.DeclaredTruck, snap *vehicle.Snapshot) []flag.Flag {
	var out []flag.Flag
	now := c.now().UTC()

	newFlag := func(code flag.Code, sev flag.Severity, reason, declaredVal, registryVal string) flag.Flag {
		f := flag.Flag{
			VehicleID:   declared.VehicleID,
			OperatorID:  declared.OperatorID,
			Code:        code,
			Severity:    sev,
			Reason:      reason,
			FirstSeenAt: now,
			LastSeenAt:  now,
			Occurrences: 1,
		}
		if declaredVal != "" {
			f.DeclaredValue = sql.NullString{String: declaredVal, Valid: true}
		}
		if registryVal != "" {
			f.RegistryValue = sql.NullString{String: registryVal, Valid: true}
		}
		return f
	}

	// Declared length vs typical range for the declared tyre count.
	if r, ok := typicalLengthRange[declared.TyreCount]; ok && declared.BodyLengthFt > 0 {
		if declared.BodyLengthFt < r[0] || declared.BodyLengthFt > r[1] {
			sev := flag.SeverityLow
			if declared.BodyLengthFt > r[1] {
				sev = flag.SeverityMedium
			}
			out = append(out, newFlag(flag.CodeLengthMismatch, sev,
				fmt.Sprintf("declared length %.1f ft outside typical %.0f-%.0f ft for %d tyres",
					declared.BodyLengthFt, r[0], r[1], declared.TyreCount),
				fmt.Sprintf("%.1f ft", declared.BodyLengthFt),
				fmt.Sprintf("%.0f-%.0f ft typical", r[0], r[1])))
		}
	}

	if snap != nil {
		// Declared tyre count vs the model's typical set.
		key := normalizeKey(snap.Manufacturer) + "|" + normalizeKey(snap.Model)
		if typical, ok := typicalTyreCounts[key]; ok && declared.TyreCount > 0 {
			if !containsInt(typical, declared.TyreCount) {
				out = append(out, newFlag(flag.CodeTyreCountUnusual, flag.SeverityMedium,
					fmt.Sprintf("declared %d tyres; %s %s is typically sold with %v",
						declared.TyreCount, snap.Manufacturer, snap.Model, typical),
					fmt.Sprintf("%d", declared.TyreCount),
					fmt.Sprintf("%v", typical)))
			}
		}

		// Declared payload vs gross-weight-derived per-tyre capacity.
		if declared.PayloadCapacityKG > 0 && declared.TyreCount > 0 {
			capacity := float64(declared.TyreCount) * payloadPerTyreKG
			if snap.GrossWeightKG > 0 && snap.UnladenWeightKG > 0 {
				capacity = snap.GrossWeightKG - snap.UnladenWeightKG
			}
			if declared.PayloadCapacityKG > capacity*payloadTolerance {
				out = append(out, newFlag(flag.CodePayloadMismatch, flag.SeverityMedium,
					fmt.Sprintf("declared payload %.0f kg exceeds derived capacity %.0f kg by more than 20%%",
						declared.PayloadCapacityKG, capacity),
					fmt.Sprintf("%.0f kg", declared.PayloadCapacityKG),
					fmt.Sprintf("%.0f kg derived", capacity)))
			}
		}

		// Declared body type vs registry body type.
		if declared.BodyType != "" && snap.BodyTypeName != "" && !bodyTypesAgree(declared.BodyType, snap.BodyTypeName) {
			if classifier.BlockedBodyType(snap.BodyTypeName) {
				// Registry says the body class is unsupported; whatever was
				// declared, this is critical.
				out = append(out, newFlag(flag.CodeBlockedBodyType, flag.SeverityCritical,
					fmt.Sprintf("registry body type %q is in the blocked class list", snap.BodyTypeName),
					declared.BodyType, snap.BodyTypeName))
			} else {
				out = append(out, newFlag(flag.CodeRegistryDiscrepancy, flag.SeverityHigh,
					fmt.Sprintf("declared body type %q disagrees with registry %q",
						declared.BodyType, snap.BodyTypeName),
					declared.BodyType, snap.BodyTypeName))
			}
		}
	}

	// Any length- or tyre-related finding routes to human photo review.
	for _, f := range out {
		if f.Code == flag.CodeLengthMismatch || f.Code == flag.CodeTyreCountUnusual {
			out = append(out, newFlag(flag.CodePhotoCheckRequired, flag.SeverityMedium,
				"length/tyre discrepancy requires manual photo verification", "", ""))
			break
		}
	}

	return out
}

// PersistentMismatches returns every code in the history that has recurred
// at least the persistence threshold times unresolved. Repetition itself is
// evidence of a systemic problem, independent of severity.
func (c *Computer) PersistentMismatches(history []flag.Flag) []flag.Code {
	counts := make(map[flag.Code]int)
	for _, f := range history {
		if f.Resolved {
			continue
		}
		if f.Occurrences > 1 {
			counts[f.Code] += f.Occurrences
		} else {
			counts[f.Code]++
		}
	}

	var out []flag.Code
	for code, n := range counts {
		if n >= flag.PersistentThreshold {
			out = append(out, code)
		}
	}
	return out
}

func bodyTypesAgree(declared, registry string) bool {
	d := strings.ToUpper(strings.TrimSpace(declared))
	r := strings.ToUpper(strings.TrimSpace(registry))
	return strings.Contains(r, d) || strings.Contains(d, r)
}

func normalizeKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
