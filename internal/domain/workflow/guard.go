package workflow

import "context"

type guardKey struct{}

// WithCommercialGate marks whether the PM-Final price exceeds the commercial
// approval threshold. The transition table reads it when firing ADVANCE from
// pending_pm_final_approval.
func WithCommercialGate(ctx context.Context, required bool) context.Context {
	return context.WithValue(ctx, guardKey{}, required)
}

// CommercialGateRequired reads the flag set by WithCommercialGate
func CommercialGateRequired(ctx context.Context) bool {
	required, _ := ctx.Value(guardKey{}).(bool)
	return required
}
