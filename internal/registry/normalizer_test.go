package registry

import (
	"testing"
	"time"

	registrydom "fleetcheck-service/internal/domain/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLegacyFieldNames(t *testing.T) {
	raw := &registrydom.RawRecord{
		Provider:      registrydom.ProviderNational,
		TransactionID: "txn-42",
		CapturedAt:    time.Date(2026, 1, 15, 6, 30, 0, 0, time.UTC),
		Payload: map[string]interface{}{
			"rc_regn_no":           "KA01AB1234",
			"rc_maker_desc":        " TATA MOTORS ",
			"rc_maker_model":       "LPT 1613",
			"rc_gvw":               "16200 KG",
			"rc_unld_wt":           float64(5900),
			"rc_wheelbase":         "4,225 MM",
			"rc_body_type_desc":    "OPEN BODY",
			"rc_vch_catg":          "GOODS CARRIER",
			"rc_norms_desc":        "BS6",
			"rc_permit_type":       "NATIONAL PERMIT",
			"rc_permit_valid_upto": "2027-03-31",
			"rc_fit_upto":          "15-Aug-2026",
			"rc_status":            "ACTIVE",
			"rc_chasi_no":          "MB1NACHD4PRXX1234",
			"rc_eng_no":            "ENG998877",
		},
	}

	snap := NewNormalizer().Normalize(raw)

	assert.Equal(t, "KA01AB1234", snap.RegistrationNo)
	assert.Equal(t, "TATA MOTORS", snap.Manufacturer)
	assert.Equal(t, "LPT 1613", snap.Model)
	assert.Equal(t, 16200.0, snap.GrossWeightKG)
	assert.Equal(t, 5900.0, snap.UnladenWeightKG)
	assert.Equal(t, 4225.0, snap.WheelbaseMM)
	assert.Equal(t, "OPEN BODY", snap.BodyTypeName)
	assert.Equal(t, "GOODS CARRIER", snap.Category)
	assert.Equal(t, "BS6", snap.EmissionNorms)
	assert.Equal(t, time.Date(2027, 3, 31, 0, 0, 0, 0, time.UTC), snap.PermitExpiry)
	assert.Equal(t, time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), snap.FitnessExpiry)
	assert.Equal(t, registrydom.ProviderNational, snap.Provider)
	assert.Equal(t, "txn-42", snap.ProviderTxnID)
}

func TestNormalizeCamelCaseFieldNames(t *testing.T) {
	raw := &registrydom.RawRecord{
		Provider: registrydom.ProviderState,
		Payload: map[string]interface{}{
			"regNo":           "MH12XY9876",
			"maker":           "ASHOK LEYLAND",
			"grossWeight":     float64(25000),
			"wheelBase":       float64(5650),
			"bodyType":        "CONTAINER",
			"vehicleClass":    "GOODS",
			"permitValidUpto": "31/12/2026",
			"chassisNo":       "ALXX5566",
			"engineNo":        "ALENG7788",
		},
	}

	snap := NewNormalizer().Normalize(raw)

	assert.Equal(t, "MH12XY9876", snap.RegistrationNo)
	assert.Equal(t, "ASHOK LEYLAND", snap.Manufacturer)
	assert.Equal(t, 25000.0, snap.GrossWeightKG)
	assert.Equal(t, 5650.0, snap.WheelbaseMM)
	assert.Equal(t, "CONTAINER", snap.BodyTypeName)
	assert.Equal(t, time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), snap.PermitExpiry)
}

func TestNormalizeCaseInsensitiveKeys(t *testing.T) {
	raw := &registrydom.RawRecord{
		Payload: map[string]interface{}{
			"RC_REGN_NO":  "DL01CA5544",
			"RC_CHASI_NO": "CHS1122",
		},
	}

	snap := NewNormalizer().Normalize(raw)

	assert.Equal(t, "DL01CA5544", snap.RegistrationNo)
	assert.Equal(t, "CHS1122", snap.ChassisNo)
}

func TestNormalizeUnparseableFieldsZeroOut(t *testing.T) {
	raw := &registrydom.RawRecord{
		Payload: map[string]interface{}{
			"rc_regn_no":           "KA05MN3311",
			"rc_gvw":               "not a number",
			"rc_permit_valid_upto": "someday",
			"rc_chasi_no":          "CHS9",
			"rc_eng_no":            "ENG9",
		},
	}

	snap := NewNormalizer().Normalize(raw)

	assert.Zero(t, snap.GrossWeightKG)
	assert.True(t, snap.PermitExpiry.IsZero())
	assert.Equal(t, "KA05MN3311", snap.RegistrationNo, "bad fields must not sink the record")
}

func TestValidateRequiresIdentityFields(t *testing.T) {
	n := NewNormalizer()

	full := NewNormalizer().Normalize(&registrydom.RawRecord{
		Payload: map[string]interface{}{
			"rc_regn_no":  "KA01AB1234",
			"rc_chasi_no": "CHS1",
			"rc_eng_no":   "ENG1",
		},
	})
	assert.Empty(t, n.Validate(full))

	missing := NewNormalizer().Normalize(&registrydom.RawRecord{
		Payload: map[string]interface{}{
			"rc_regn_no": "KA01AB1234",
		},
	})
	errs := n.Validate(missing)
	require.Len(t, errs, 2)
}
