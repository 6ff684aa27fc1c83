// internal/service/review/dispatcher.go
package review

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	auditdom "fleetcheck-service/internal/domain/audit"
	flagdom "fleetcheck-service/internal/domain/flag"
	ticketdom "fleetcheck-service/internal/domain/ticket"

	"go.uber.org/zap"
)

// FlagRepository is the slice of flag persistence the dispatcher needs.
type FlagRepository interface {
	FindByID(ctx context.Context, id int64) (*flagdom.Flag, error)
	Resolve(ctx context.Context, id int64, resolvedBy string) error
	Append(ctx context.Context, f *flagdom.Flag) error
}

// TicketOpener escalates failed photo reviews.
type TicketOpener interface {
	Open(ctx context.Context, t *ticketdom.Ticket) (string, bool, error)
}

// AuditWriter records review outcomes.
type AuditWriter interface {
	RecordOverride(ctx context.Context, registrationNo string, operatorID int64, eventType auditdom.EventType, actor string, details map[string]interface{}) error
}

// defaultPhotoAngles are requested on every manual check; the reviewer needs
// the full side profile to judge body length.
var defaultPhotoAngles = []string{"front", "rear", "left_side", "right_side", "loading_bay"}

const defaultDueIn = 48 * time.Hour

// TaskRequest is the payload handed to the external task-assignment
// collaborator when a photo verification is required.
type TaskRequest struct {
	VehicleID   int64    `json:"vehicle_id"`
	OperatorID  int64    `json:"operator_id"`
	FlagID      int64    `json:"flag_id"`
	PhotoAngles []string `json:"photo_angles"`
	DueBy       string   `json:"due_by"`
}

// Completion is the collaborator's callback when a review finishes.
type Completion struct {
	FlagID         int64  `json:"flag_id" binding:"required"`
	VehicleID      int64  `json:"vehicle_id" binding:"required"`
	OperatorID     int64  `json:"operator_id"`
	RegistrationNo string `json:"registration_no"`
	Verified       bool   `json:"verified"`
	Evidence       string `json:"evidence"`
	ReviewedBy     string `json:"reviewed_by" binding:"required"`
}

// Dispatcher owns the franchise/manual-review boundary: it emits task
// requests for photo checks and applies completion outcomes. Photo storage
// and the review UI live outside this service.
type Dispatcher struct {
	webhookURL string
	client     *http.Client
	flags      FlagRepository
	tickets    TicketOpener
	audit      AuditWriter
	logger     *zap.Logger
	now        func() time.Time
}

func NewDispatcher(webhookURL string, flags FlagRepository, tickets TicketOpener, audit AuditWriter, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		flags:      flags,
		tickets:    tickets,
		audit:      audit,
		logger:     logger,
		now:        time.Now,
	}
}

// RequestPhotoCheck fires a task request at the external collaborator.
// Fire-and-forget: delivery failure is logged, never propagated, so a down
// task service cannot fail a verification run.
func (d *Dispatcher) RequestPhotoCheck(vehicleID, operatorID, flagID int64) {
	if d.webhookURL == "" {
		d.logger.Debug("review webhook not configured, skipping task dispatch")
		return
	}

	task := TaskRequest{
		VehicleID:   vehicleID,
		OperatorID:  operatorID,
		FlagID:      flagID,
		PhotoAngles: defaultPhotoAngles,
		DueBy:       d.now().UTC().Add(defaultDueIn).Format(time.RFC3339),
	}

	go func() {
		body, err := json.Marshal(task)
		if err != nil {
			d.logger.Error("failed to marshal review task", zap.Error(err))
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
		if err != nil {
			d.logger.Error("failed to build review task request", zap.Error(err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			d.logger.Warn("review task dispatch failed",
				zap.Int64("vehicle_id", vehicleID),
				zap.Error(err),
			)
			return
		}
		resp.Body.Close()
		d.logger.Info("review task dispatched",
			zap.Int64("vehicle_id", vehicleID),
			zap.Int64("flag_id", flagID),
			zap.Int("status", resp.StatusCode),
		)
	}()
}

// Complete applies a review outcome: success clears the originating flag,
// failure raises a photo-verification-failed flag and escalates a ticket.
func (d *Dispatcher) Complete(ctx context.Context, c Completion) error {
	orig, err := d.flags.FindByID(ctx, c.FlagID)
	if err != nil {
		return fmt.Errorf("failed to load flag %d: %w", c.FlagID, err)
	}

	if c.Verified {
		if err := d.flags.Resolve(ctx, c.FlagID, c.ReviewedBy); err != nil {
			return fmt.Errorf("failed to resolve flag %d: %w", c.FlagID, err)
		}
		return d.audit.RecordOverride(ctx, c.RegistrationNo, c.OperatorID, auditdom.EventPhotoReview, c.ReviewedBy,
			map[string]interface{}{"flag_id": c.FlagID, "verified": true, "evidence": c.Evidence})
	}

	now := d.now().UTC()
	failed := &flagdom.Flag{
		VehicleID:     c.VehicleID,
		OperatorID:    c.OperatorID,
		Code:          flagdom.CodePhotoCheckFailed,
		Severity:      flagdom.SeverityHigh,
		Reason:        fmt.Sprintf("photo verification failed for flag %d (%s)", c.FlagID, orig.Code),
		FirstSeenAt:   now,
		LastSeenAt:    now,
		Occurrences:   1,
		DeclaredValue: sql.NullString{String: c.Evidence, Valid: c.Evidence != ""},
	}
	if err := d.flags.Append(ctx, failed); err != nil {
		return fmt.Errorf("failed to raise photo-check-failed flag: %w", err)
	}

	_, _, err = d.tickets.Open(ctx, &ticketdom.Ticket{
		VehicleID:      c.VehicleID,
		OperatorID:     c.OperatorID,
		RegistrationNo: c.RegistrationNo,
		Reason:         ticketdom.ReasonPhotoCheckFailed,
		Severity:       flagdom.SeverityHigh,
		Notes: map[string]interface{}{
			"flag_id":     c.FlagID,
			"original":    string(orig.Code),
			"evidence":    c.Evidence,
			"reviewed_by": c.ReviewedBy,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to escalate failed photo review: %w", err)
	}

	return d.audit.RecordOverride(ctx, c.RegistrationNo, c.OperatorID, auditdom.EventPhotoReview, c.ReviewedBy,
		map[string]interface{}{"flag_id": c.FlagID, "verified": false, "evidence": c.Evidence})
}
