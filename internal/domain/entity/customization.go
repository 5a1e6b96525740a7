package entity

import "time"

// CustomizationRequest is a customer's custom-equipment request moving through
// the change-order pipeline. Each stage owns its own group of fields.
type CustomizationRequest struct {
	ID          string `json:"id"`
	QuotationID string `json:"quotation_id"`
	ItemName    string `json:"item_name"`
	Notes       string `json:"notes,omitempty"`

	// PM-Initial
	Scope            string   `json:"pm_scope"`
	EngineeringHours float64  `json:"engineering_hours"`
	RequiredParts    []string `json:"required_parts"`

	// Supply
	SupplyItems        []SupplyItem `json:"supply_items"`
	SupplyCost         float64      `json:"supply_cost"`
	SupplyLeadTimeDays int          `json:"supply_lead_time_days"`
	SupplyNotes        string       `json:"supply_notes"`

	// Planning
	PlanningWindowStart        *time.Time `json:"planning_window_start,omitempty"`
	PlanningDeliveryImpactDays int        `json:"planning_delivery_impact_days"`
	PlanningNotes              string     `json:"planning_notes"`

	// PM-Final
	FinalPrice              float64 `json:"pm_final_price"`
	FinalDeliveryImpactDays int     `json:"pm_final_delivery_impact_days"`
	FinalNotes              string  `json:"pm_final_notes"`

	RejectReason   string `json:"reject_reason,omitempty"`
	WorkflowStatus string `json:"workflow_status"`
	Version        int64  `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SupplyItem is one quoted part line from the buyer.
type SupplyItem struct {
	Part         string  `json:"part"`
	Supplier     string  `json:"supplier"`
	UnitCost     float64 `json:"unit_cost"`
	Quantity     int     `json:"quantity"`
	LeadTimeDays int     `json:"lead_time_days"`
}

// SupplyTotals returns the summed cost and the longest lead time of the items.
func SupplyTotals(items []SupplyItem) (cost float64, leadTimeDays int) {
	for _, item := range items {
		cost += item.UnitCost * float64(item.Quantity)
		if item.LeadTimeDays > leadTimeDays {
			leadTimeDays = item.LeadTimeDays
		}
	}
	return cost, leadTimeDays
}

// IsTerminal reports whether the request can no longer transition.
func (r *CustomizationRequest) IsTerminal() bool {
	return r.WorkflowStatus == StatusApproved || r.WorkflowStatus == StatusRejected
}

// QuotationTotals aggregates the approved customizations of one quotation.
type QuotationTotals struct {
	QuotationID             string    `json:"quotation_id"`
	ApprovedCount           int       `json:"approved_count"`
	TotalCustomizationPrice float64   `json:"total_customizations_price"`
	MaxDeliveryImpactDays   int       `json:"max_delivery_impact_days"`
	UpdatedAt               time.Time `json:"updated_at"`
}
