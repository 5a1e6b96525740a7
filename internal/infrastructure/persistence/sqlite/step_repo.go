package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/yacht-customization/internal/application/port"
	"github.com/garyjia/yacht-customization/internal/domain/entity"
	domainwf "github.com/garyjia/yacht-customization/internal/domain/workflow"
)

// StepRepository implements port.StepRepository. It never updates a resolved
// row nor deletes one; the schema triggers enforce the same.
type StepRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewStepRepository creates a new workflow step repository
func NewStepRepository(db *DB, logger *zap.Logger) *StepRepository {
	return &StepRepository{
		db:     db,
		logger: logger,
	}
}

const stepColumns = `id, customization_id, step_type, sequence, status,
	assigned_to, completed_by, notes, response_data, completed_at, created_at`

// Create appends a step
func (r *StepRepository) Create(ctx context.Context, step *entity.WorkflowStep) error {
	query := `INSERT INTO workflow_steps (` + stepColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.executor(ctx).ExecContext(ctx, query,
		step.ID, step.CustomizationID, step.StepType, step.Sequence, step.Status,
		step.AssignedUser, step.CompletedBy, step.Notes, step.ResponseData,
		nullTime(step.CompletedAt), step.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create workflow step",
			zap.String("customization_id", step.CustomizationID),
			zap.String("step_type", step.StepType),
			zap.Error(err))
		return fmt.Errorf("failed to create workflow step: %w", err)
	}
	return nil
}

// GetByType retrieves the step of one stage
func (r *StepRepository) GetByType(ctx context.Context, customizationID, stepType string) (*entity.WorkflowStep, error) {
	query := `SELECT ` + stepColumns + ` FROM workflow_steps
		WHERE customization_id = ? AND step_type = ?`

	step, err := scanStep(r.db.executor(ctx).QueryRowContext(ctx, query, customizationID, stepType))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("step %s of %s: %w", stepType, customizationID, domainwf.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get workflow step",
			zap.String("customization_id", customizationID),
			zap.String("step_type", stepType),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow step: %w", err)
	}
	return step, nil
}

// Resolve closes a pending step
func (r *StepRepository) Resolve(ctx context.Context, step *entity.WorkflowStep) (bool, error) {
	query := `UPDATE workflow_steps
		SET status = ?, completed_by = ?, notes = ?, response_data = ?, completed_at = ?
		WHERE id = ? AND status = ?`

	result, err := r.db.executor(ctx).ExecContext(ctx, query,
		step.Status, step.CompletedBy, step.Notes, step.ResponseData, nullTime(step.CompletedAt),
		step.ID, entity.StepStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to resolve workflow step", zap.String("step_id", step.ID), zap.Error(err))
		return false, fmt.Errorf("failed to resolve workflow step: %w", err)
	}
	return affectedOne(result)
}

// ListByCustomization returns the timeline of a request
func (r *StepRepository) ListByCustomization(ctx context.Context, customizationID string) ([]*entity.WorkflowStep, error) {
	query := `SELECT ` + stepColumns + ` FROM workflow_steps
		WHERE customization_id = ?
		ORDER BY sequence ASC, created_at ASC`

	rows, err := r.db.executor(ctx).QueryContext(ctx, query, customizationID)
	if err != nil {
		r.logger.Error("Failed to list workflow steps", zap.String("customization_id", customizationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list workflow steps: %w", err)
	}
	defer rows.Close()

	var steps []*entity.WorkflowStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow step: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflow steps: %w", err)
	}
	return steps, nil
}

func scanStep(row rowScanner) (*entity.WorkflowStep, error) {
	var (
		step        entity.WorkflowStep
		completedAt sql.NullTime
	)
	err := row.Scan(
		&step.ID, &step.CustomizationID, &step.StepType, &step.Sequence, &step.Status,
		&step.AssignedUser, &step.CompletedBy, &step.Notes, &step.ResponseData,
		&completedAt, &step.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		step.CompletedAt = &t
	}
	return &step, nil
}

var _ port.StepRepository = (*StepRepository)(nil)
