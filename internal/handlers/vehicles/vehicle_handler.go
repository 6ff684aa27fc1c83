// internal/handlers/vehicles/vehicle_handler.go
package vehicles

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"fleetcheck-service/internal/cache"
	auditdom "fleetcheck-service/internal/domain/audit"
	flagdom "fleetcheck-service/internal/domain/flag"
	"fleetcheck-service/internal/middleware"
	xerrors "fleetcheck-service/internal/pkg/errors"
	"fleetcheck-service/internal/pkg/response"
	"fleetcheck-service/internal/registry"
	"fleetcheck-service/internal/repository/postgres"
	auditsvc "fleetcheck-service/internal/service/audit"
	compliancesvc "fleetcheck-service/internal/service/compliance"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type VehicleHandler struct {
	verifier  *registry.Client
	engine    *compliancesvc.Engine
	fleetRepo *postgres.FleetRepository
	snapRepo  *postgres.SnapshotRepository
	cacheRepo *postgres.ComplianceCacheRepository
	hotCache  *cache.DecisionCache
	flagRepo  *postgres.FlagRepository
	audit     *auditsvc.Service
	logger    *zap.Logger
}

func NewVehicleHandler(
	verifier *registry.Client,
	engine *compliancesvc.Engine,
	fleetRepo *postgres.FleetRepository,
	snapRepo *postgres.SnapshotRepository,
	cacheRepo *postgres.ComplianceCacheRepository,
	hotCache *cache.DecisionCache,
	flagRepo *postgres.FlagRepository,
	audit *auditsvc.Service,
	logger *zap.Logger,
) *VehicleHandler {
	return &VehicleHandler{
		verifier:  verifier,
		engine:    engine,
		fleetRepo: fleetRepo,
		snapRepo:  snapRepo,
		cacheRepo: cacheRepo,
		hotCache:  hotCache,
		flagRepo:  flagRepo,
		audit:     audit,
		logger:    logger,
	}
}

// Verify fetches a fresh registry snapshot for the vehicle and re-runs the
// full compliance decision against its declared fleet record.
func (h *VehicleHandler) Verify(c *gin.Context) {
	registrationNo := c.Param("reg")
	if registrationNo == "" {
		response.ValidationError(c, "registration number is required", nil)
		return
	}

	ctx := c.Request.Context()

	truck, err := h.fleetRepo.FindByRegistration(ctx, registrationNo)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "vehicle is not declared in any fleet")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load fleet record", err)
		return
	}

	snap, err := h.verifier.Verify(ctx, registrationNo)
	if err != nil {
		var apf *registry.AllProvidersFailedError
		switch {
		case errors.Is(err, xerrors.ErrVehicleNotFound):
			response.NotFound(c, "vehicle not found in any registry")
		case errors.As(err, &apf):
			response.Error(c, http.StatusBadGateway, "all registry providers failed", err, apf.Attempts)
		default:
			response.Error(c, http.StatusBadGateway, "registry lookup failed", err)
		}
		return
	}

	if err := h.snapRepo.Upsert(ctx, snap); err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to store registry snapshot", err)
		return
	}

	decision, err := h.engine.Decide(ctx, compliancesvc.Input{
		RegistrationNo:  truck.RegistrationNo,
		OperatorID:      truck.OperatorID,
		VehicleID:       truck.VehicleID,
		Snapshot:        snap,
		GPSLastPingAt:   truck.GPSLastPingAt,
		IsTrailer:       truck.IsTrailer,
		LinkedTractorNo: truck.LinkedTractorNo,
	})
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to evaluate compliance", err)
		return
	}

	response.Success(c, http.StatusOK, "vehicle verified", gin.H{
		"snapshot": snap.Info(),
		"decision": decision,
	})
}

// Compliance returns the cached decision for (registration, operator)
// without touching any provider.
func (h *VehicleHandler) Compliance(c *gin.Context) {
	registrationNo := c.Param("reg")
	operatorID, err := strconv.ParseInt(c.Query("operator_id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid operator_id", err)
		return
	}

	// Hot path: the redis copy answers without touching postgres.
	if d, cerr := h.hotCache.Get(c.Request.Context(), registrationNo, operatorID); cerr == nil {
		response.Success(c, http.StatusOK, "compliance decision retrieved", gin.H{
			"decision": d,
			"source":   "cache",
		})
		return
	}

	entry, err := h.cacheRepo.FindByKey(c.Request.Context(), registrationNo, operatorID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "no compliance decision on record")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load compliance decision", err)
		return
	}

	response.Success(c, http.StatusOK, "compliance decision retrieved", gin.H{
		"entry":   entry,
		"expired": entry.Expired(time.Now().UTC()),
		"checks":  entry.Statuses(),
	})
}

// Snapshot returns the latest stored registry snapshot for a vehicle.
func (h *VehicleHandler) Snapshot(c *gin.Context) {
	registrationNo := c.Param("reg")

	snap, err := h.snapRepo.FindLatestByRegistration(c.Request.Context(), registrationNo)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "no snapshot on record")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load snapshot", err)
		return
	}

	response.Success(c, http.StatusOK, "snapshot retrieved", snap.Info())
}

// Flags lists flags raised against a vehicle. Unresolved only by default;
// ?all=true includes resolved history.
func (h *VehicleHandler) Flags(c *gin.Context) {
	ctx := c.Request.Context()

	truck, err := h.fleetRepo.FindByRegistration(ctx, c.Param("reg"))
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "vehicle is not declared in any fleet")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load fleet record", err)
		return
	}

	var list []flagdom.Flag
	if c.Query("all") == "true" {
		list, err = h.flagRepo.HistoryByVehicle(ctx, truck.VehicleID)
	} else {
		list, err = h.flagRepo.ActiveByVehicle(ctx, truck.VehicleID)
	}
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list flags", err)
		return
	}

	response.Success(c, http.StatusOK, "flags retrieved", gin.H{
		"flags": list,
		"count": len(list),
	})
}

type resolveFlagRequest struct {
	RegistrationNo string `json:"registration_no"`
	OperatorID     int64  `json:"operator_id"`
	Note           string `json:"note"`
}

// ResolveFlag marks a flag resolved and records who did it.
func (h *VehicleHandler) ResolveFlag(c *gin.Context) {
	flagID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid flag ID", err)
		return
	}

	var req resolveFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	actor := middleware.Actor(c)
	ctx := c.Request.Context()

	if err := h.flagRepo.Resolve(ctx, flagID, actor); err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "flag not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to resolve flag", err)
		return
	}

	if err := h.audit.RecordOverride(ctx, req.RegistrationNo, req.OperatorID, auditdom.EventFlagResolved, actor, map[string]interface{}{
		"flag_id": flagID,
		"note":    req.Note,
	}); err != nil {
		h.logger.Warn("failed to audit flag resolution",
			zap.Int64("flag_id", flagID), zap.Error(err))
	}

	response.Success(c, http.StatusOK, "flag resolved", nil)
}

// History returns the audit trail for a vehicle registration.
func (h *VehicleHandler) History(c *gin.Context) {
	registrationNo := c.Param("reg")
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.audit.History(c.Request.Context(), registrationNo, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load audit history", err)
		return
	}

	response.Success(c, http.StatusOK, "audit history retrieved", gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}
