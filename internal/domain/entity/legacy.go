package entity

// LegacyStatus is the status vocabulary produced by the retired generic
// approval entity. Historical rows may still carry these values; the workflow
// engine never writes them.
type LegacyStatus string

const (
	LegacyPendingCommercial  LegacyStatus = "pending_commercial"
	LegacyApprovedCommercial LegacyStatus = "approved_commercial"
	LegacyPendingTechnical   LegacyStatus = "pending_technical"
	LegacyApprovedTechnical  LegacyStatus = "approved_technical"
	LegacyRejected           LegacyStatus = "rejected"
)

// Legacy approval types
const (
	LegacyApprovalCommercial    = "commercial"
	LegacyApprovalTechnical     = "technical"
	LegacyApprovalDiscount      = "discount"
	LegacyApprovalCustomization = "customization"
)

// MapLegacyApproval converts a retired approval (type, status) pair into the
// legacy workflow status. Rejections always map to rejected; unknown types
// fall back to the commercial pair.
func MapLegacyApproval(approvalType, status string) LegacyStatus {
	if status == ApprovalStatusRejected {
		return LegacyRejected
	}

	approved := status == ApprovalStatusApproved

	if approvalType == LegacyApprovalTechnical {
		if approved {
			return LegacyApprovedTechnical
		}
		return LegacyPendingTechnical
	}

	if approved {
		return LegacyApprovedCommercial
	}
	return LegacyPendingCommercial
}

// IsLegacyStatus reports whether s belongs to the retired vocabulary and not
// to the workflow engine's.
func IsLegacyStatus(s string) bool {
	switch LegacyStatus(s) {
	case LegacyPendingCommercial, LegacyApprovedCommercial,
		LegacyPendingTechnical, LegacyApprovedTechnical:
		return true
	default:
		return false
	}
}
