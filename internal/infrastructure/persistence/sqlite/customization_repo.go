package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/yacht-customization/internal/application/port"
	"github.com/garyjia/yacht-customization/internal/domain/entity"
	domainwf "github.com/garyjia/yacht-customization/internal/domain/workflow"
)

// CustomizationRepository implements port.CustomizationRepository
type CustomizationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCustomizationRepository creates a new customization repository
func NewCustomizationRepository(db *DB, logger *zap.Logger) *CustomizationRepository {
	return &CustomizationRepository{
		db:     db,
		logger: logger,
	}
}

const customizationColumns = `
	id, quotation_id, item_name, notes,
	pm_scope, engineering_hours, required_parts,
	supply_items, supply_cost, supply_lead_time_days, supply_notes,
	planning_window_start, planning_delivery_impact_days, planning_notes,
	pm_final_price, pm_final_delivery_impact_days, pm_final_notes,
	reject_reason, workflow_status, version, created_at, updated_at`

// Create inserts a new request
func (r *CustomizationRepository) Create(ctx context.Context, req *entity.CustomizationRequest) error {
	requiredParts, supplyItems, err := encodeLists(req)
	if err != nil {
		return err
	}

	query := `INSERT INTO customization_requests (` + customizationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.executor(ctx).ExecContext(ctx, query,
		req.ID, req.QuotationID, req.ItemName, req.Notes,
		req.Scope, req.EngineeringHours, requiredParts,
		supplyItems, req.SupplyCost, req.SupplyLeadTimeDays, req.SupplyNotes,
		nullTime(req.PlanningWindowStart), req.PlanningDeliveryImpactDays, req.PlanningNotes,
		req.FinalPrice, req.FinalDeliveryImpactDays, req.FinalNotes,
		req.RejectReason, req.WorkflowStatus, req.Version, req.CreatedAt.UTC(), req.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create customization request", zap.String("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to create customization request: %w", err)
	}
	return nil
}

// GetByID retrieves a request by ID
func (r *CustomizationRepository) GetByID(ctx context.Context, id string) (*entity.CustomizationRequest, error) {
	query := `SELECT ` + customizationColumns + ` FROM customization_requests WHERE id = ?`

	req, err := scanCustomization(r.db.executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customization request %s: %w", id, domainwf.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get customization request", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get customization request: %w", err)
	}
	return req, nil
}

// SaveStage writes the columns owned by stage and the new status if the
// stored status still equals expected
func (r *CustomizationRepository) SaveStage(ctx context.Context, req *entity.CustomizationRequest, stage domainwf.Stage, expected domainwf.State) (bool, error) {
	var (
		set  string
		args []interface{}
	)

	switch stage {
	case domainwf.StagePMInitial:
		parts, err := json.Marshal(req.RequiredParts)
		if err != nil {
			return false, fmt.Errorf("failed to encode required parts: %w", err)
		}
		set = `pm_scope = ?, engineering_hours = ?, required_parts = ?`
		args = []interface{}{req.Scope, req.EngineeringHours, string(parts)}
	case domainwf.StageSupplyQuote:
		items, err := json.Marshal(req.SupplyItems)
		if err != nil {
			return false, fmt.Errorf("failed to encode supply items: %w", err)
		}
		set = `supply_items = ?, supply_cost = ?, supply_lead_time_days = ?, supply_notes = ?`
		args = []interface{}{string(items), req.SupplyCost, req.SupplyLeadTimeDays, req.SupplyNotes}
	case domainwf.StagePlanningCheck:
		set = `planning_window_start = ?, planning_delivery_impact_days = ?, planning_notes = ?`
		args = []interface{}{nullTime(req.PlanningWindowStart), req.PlanningDeliveryImpactDays, req.PlanningNotes}
	case domainwf.StagePMFinal:
		set = `pm_final_price = ?, pm_final_delivery_impact_days = ?, pm_final_notes = ?`
		args = []interface{}{req.FinalPrice, req.FinalDeliveryImpactDays, req.FinalNotes}
	default:
		return false, fmt.Errorf("%w: unknown stage %q", domainwf.ErrInvalidState, stage)
	}

	query := `UPDATE customization_requests
		SET ` + set + `, workflow_status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND workflow_status = ?`
	args = append(args, req.WorkflowStatus, req.UpdatedAt.UTC(), req.ID, expected.String())

	result, err := r.db.executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to save stage",
			zap.String("id", req.ID),
			zap.String("stage", stage.String()),
			zap.Error(err))
		return false, fmt.Errorf("failed to save %s stage: %w", stage, err)
	}
	return affectedOne(result)
}

// TransitionStatus moves the request from expected to next
func (r *CustomizationRepository) TransitionStatus(ctx context.Context, id string, expected, next domainwf.State, rejectReason string) (bool, error) {
	query := `UPDATE customization_requests
		SET workflow_status = ?,
			reject_reason = CASE WHEN ? = 'rejected' THEN ? ELSE reject_reason END,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND workflow_status = ?`

	result, err := r.db.executor(ctx).ExecContext(ctx, query,
		next.String(), next.String(), rejectReason, time.Now().UTC(), id, expected.String())
	if err != nil {
		r.logger.Error("Failed to transition status",
			zap.String("id", id),
			zap.String("from", expected.String()),
			zap.String("to", next.String()),
			zap.Error(err))
		return false, fmt.Errorf("failed to transition status: %w", err)
	}
	return affectedOne(result)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCustomization(row rowScanner) (*entity.CustomizationRequest, error) {
	var (
		req                        entity.CustomizationRequest
		requiredParts, supplyItems string
		planningWindow             sql.NullTime
	)

	err := row.Scan(
		&req.ID, &req.QuotationID, &req.ItemName, &req.Notes,
		&req.Scope, &req.EngineeringHours, &requiredParts,
		&supplyItems, &req.SupplyCost, &req.SupplyLeadTimeDays, &req.SupplyNotes,
		&planningWindow, &req.PlanningDeliveryImpactDays, &req.PlanningNotes,
		&req.FinalPrice, &req.FinalDeliveryImpactDays, &req.FinalNotes,
		&req.RejectReason, &req.WorkflowStatus, &req.Version, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(requiredParts), &req.RequiredParts); err != nil {
		return nil, fmt.Errorf("failed to decode required parts: %w", err)
	}
	if err := json.Unmarshal([]byte(supplyItems), &req.SupplyItems); err != nil {
		return nil, fmt.Errorf("failed to decode supply items: %w", err)
	}
	if planningWindow.Valid {
		t := planningWindow.Time
		req.PlanningWindowStart = &t
	}
	return &req, nil
}

func encodeLists(req *entity.CustomizationRequest) (string, string, error) {
	parts := req.RequiredParts
	if parts == nil {
		parts = []string{}
	}
	items := req.SupplyItems
	if items == nil {
		items = []entity.SupplyItem{}
	}

	p, err := json.Marshal(parts)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode required parts: %w", err)
	}
	i, err := json.Marshal(items)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode supply items: %w", err)
	}
	return string(p), string(i), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

var _ port.CustomizationRepository = (*CustomizationRepository)(nil)
