// internal/service/compliance/checks.go
package compliance

import (
	"fmt"
	"strings"
	"time"

	"fleetcheck-service/internal/domain/compliance"
	"fleetcheck-service/internal/domain/vehicle"
)

// Each sub-check is a small pure function returning a tri-state:
// pass / fail / skipped-because-blank. Blank registry fields are accepted
// deliberately (registries are inconsistent about populating them) and the
// skip makes that policy auditable per field rather than implicit.

type checkResult struct {
	status compliance.CheckStatus
	reason string
}

func pass() checkResult    { return checkResult{status: compliance.CheckPass} }
func skipped() checkResult { return checkResult{status: compliance.CheckSkipped} }
func fail(reason string) checkResult {
	return checkResult{status: compliance.CheckFail, reason: reason}
}

// permitBlockedTypes always block regardless of expiry.
var permitBlockedTypes = []string{"TEMPORARY", "PRIVATE", "NON-TRANSPORT", "NON TRANSPORT"}

const permitExpiryWindow = 7 * 24 * time.Hour

func checkPermit(snap *vehicle.Snapshot, now time.Time) checkResult {
	permitType := strings.ToUpper(strings.TrimSpace(snap.PermitType))
	if permitType != "" {
		for _, blocked := range permitBlockedTypes {
			if strings.Contains(permitType, blocked) {
				return fail(fmt.Sprintf("permit type %q is not allowed for platform operation", snap.PermitType))
			}
		}
	}

	if snap.PermitExpiry.IsZero() {
		return skipped()
	}
	if snap.PermitExpiry.Before(now) {
		return fail(fmt.Sprintf("permit expired on %s", snap.PermitExpiry.Format("2006-01-02")))
	}
	if snap.PermitExpiry.Before(now.Add(permitExpiryWindow)) {
		return fail(fmt.Sprintf("permit expires within 7 days, on %s", snap.PermitExpiry.Format("2006-01-02")))
	}
	return pass()
}

// checkDocumentExpiry covers fitness, insurance and pollution certificates:
// each blocks only when present and in the past.
func checkDocumentExpiry(name string, expiry time.Time, now time.Time) checkResult {
	if expiry.IsZero() {
		return skipped()
	}
	if expiry.Before(now) {
		return fail(fmt.Sprintf("%s certificate expired on %s", name, expiry.Format("2006-01-02")))
	}
	return pass()
}

func checkCategory(snap *vehicle.Snapshot) checkResult {
	cat := strings.ToUpper(strings.TrimSpace(snap.Category))
	if cat == "" {
		return fail("vehicle category missing from registry record")
	}
	if cat == "GOODS" || strings.Contains(cat, "GOODS CARRIER") {
		return pass()
	}
	return fail(fmt.Sprintf("vehicle category %q is not a goods vehicle", snap.Category))
}

func checkTelemetry(lastPing *time.Time, now time.Time, window time.Duration) checkResult {
	if lastPing == nil || lastPing.IsZero() {
		return fail("no GPS ping recorded for this vehicle")
	}
	age := now.Sub(*lastPing)
	if age > window {
		return fail(fmt.Sprintf("last GPS ping %.0f minutes ago exceeds %.0f minute freshness window",
			age.Minutes(), window.Minutes()))
	}
	return pass()
}

func checkTrailerPairing(isTrailer bool, linkedTractorNo string) checkResult {
	if !isTrailer {
		return skipped()
	}
	if strings.TrimSpace(linkedTractorNo) == "" {
		return fail("trailer has no linked tractor registration")
	}
	return pass()
}

func checkFleetLimit(activeCount, limit int) checkResult {
	if activeCount >= limit {
		return fail(fmt.Sprintf("operator already has %d active trucks (limit %d)", activeCount, limit))
	}
	return pass()
}
