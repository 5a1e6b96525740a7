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

// QuotationTotalsRepository implements port.QuotationTotalsRepository
type QuotationTotalsRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewQuotationTotalsRepository creates a new quotation totals repository
func NewQuotationTotalsRepository(db *DB, logger *zap.Logger) *QuotationTotalsRepository {
	return &QuotationTotalsRepository{
		db:     db,
		logger: logger,
	}
}

// Recalculate rebuilds the row of quotationID from its approved requests
func (r *QuotationTotalsRepository) Recalculate(ctx context.Context, quotationID string) (*entity.QuotationTotals, error) {
	query := `INSERT INTO quotation_totals
			(quotation_id, approved_count, total_customizations_price, max_delivery_impact_days, updated_at)
		SELECT ?, COUNT(*), COALESCE(SUM(pm_final_price), 0), COALESCE(MAX(pm_final_delivery_impact_days), 0), ?
		FROM customization_requests
		WHERE quotation_id = ? AND workflow_status = ?
		ON CONFLICT(quotation_id) DO UPDATE SET
			approved_count = excluded.approved_count,
			total_customizations_price = excluded.total_customizations_price,
			max_delivery_impact_days = excluded.max_delivery_impact_days,
			updated_at = excluded.updated_at`

	_, err := r.db.executor(ctx).ExecContext(ctx, query,
		quotationID, time.Now().UTC(), quotationID, entity.StatusApproved)
	if err != nil {
		r.logger.Error("Failed to recalculate quotation totals", zap.String("quotation_id", quotationID), zap.Error(err))
		return nil, fmt.Errorf("failed to recalculate quotation totals: %w", err)
	}
	return r.Get(ctx, quotationID)
}

// Get retrieves the totals of a quotation
func (r *QuotationTotalsRepository) Get(ctx context.Context, quotationID string) (*entity.QuotationTotals, error) {
	query := `SELECT quotation_id, approved_count, total_customizations_price, max_delivery_impact_days, updated_at
		FROM quotation_totals WHERE quotation_id = ?`

	var t entity.QuotationTotals
	err := r.db.executor(ctx).QueryRowContext(ctx, query, quotationID).Scan(
		&t.QuotationID, &t.ApprovedCount, &t.TotalCustomizationPrice, &t.MaxDeliveryImpactDays, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("totals for quotation %s: %w", quotationID, domainwf.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get quotation totals", zap.String("quotation_id", quotationID), zap.Error(err))
		return nil, fmt.Errorf("failed to get quotation totals: %w", err)
	}
	return &t, nil
}

var _ port.QuotationTotalsRepository = (*QuotationTotalsRepository)(nil)
