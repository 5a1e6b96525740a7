package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/yacht-customization/internal/application/port"
	"github.com/garyjia/yacht-customization/internal/domain/entity"
	domainwf "github.com/garyjia/yacht-customization/internal/domain/workflow"
)

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new commercial approval repository
func NewApprovalRepository(db *DB, logger *zap.Logger) *ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

const approvalColumns = `id, customization_id, status, requested_price, threshold,
	reviewed_by, reviewed_at, notes, created_at`

// Create opens a gate. The customization_id column is unique.
func (r *ApprovalRepository) Create(ctx context.Context, approval *entity.CommercialApproval) error {
	query := `INSERT INTO commercial_approvals (` + approvalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.executor(ctx).ExecContext(ctx, query,
		approval.ID, approval.CustomizationID, approval.Status, approval.RequestedPrice, approval.Threshold,
		approval.ReviewedBy, nullTime(approval.ReviewedAt), approval.Notes, approval.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create commercial approval",
			zap.String("customization_id", approval.CustomizationID),
			zap.Error(err))
		return fmt.Errorf("failed to create commercial approval: %w", err)
	}
	return nil
}

// GetByID retrieves an approval by ID
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*entity.CommercialApproval, error) {
	query := `SELECT ` + approvalColumns + ` FROM commercial_approvals WHERE id = ?`
	approval, err := scanApproval(r.db.executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("commercial approval %s: %w", id, domainwf.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get commercial approval", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get commercial approval: %w", err)
	}
	return approval, nil
}

// GetByCustomizationID retrieves the gate of a request
func (r *ApprovalRepository) GetByCustomizationID(ctx context.Context, customizationID string) (*entity.CommercialApproval, error) {
	query := `SELECT ` + approvalColumns + ` FROM commercial_approvals WHERE customization_id = ?`
	approval, err := scanApproval(r.db.executor(ctx).QueryRowContext(ctx, query, customizationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("commercial approval for %s: %w", customizationID, domainwf.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get commercial approval",
			zap.String("customization_id", customizationID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get commercial approval: %w", err)
	}
	return approval, nil
}

// Resolve records the reviewer decision on a pending gate
func (r *ApprovalRepository) Resolve(ctx context.Context, id, status, reviewedBy, notes string, reviewedAt time.Time) (bool, error) {
	query := `UPDATE commercial_approvals
		SET status = ?, reviewed_by = ?, notes = ?, reviewed_at = ?
		WHERE id = ? AND status = ?`

	result, err := r.db.executor(ctx).ExecContext(ctx, query,
		status, reviewedBy, notes, reviewedAt.UTC(), id, entity.ApprovalStatusPending)
	if err != nil {
		r.logger.Error("Failed to resolve commercial approval", zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to resolve commercial approval: %w", err)
	}
	return affectedOne(result)
}

func scanApproval(row rowScanner) (*entity.CommercialApproval, error) {
	var (
		approval   entity.CommercialApproval
		reviewedAt sql.NullTime
	)
	err := row.Scan(
		&approval.ID, &approval.CustomizationID, &approval.Status, &approval.RequestedPrice, &approval.Threshold,
		&approval.ReviewedBy, &reviewedAt, &approval.Notes, &approval.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		approval.ReviewedAt = &t
	}
	return &approval, nil
}

var _ port.ApprovalRepository = (*ApprovalRepository)(nil)
