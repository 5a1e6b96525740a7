package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/yacht-customization/internal/domain/entity"
)

// Payload carries the stage form submitted by the UI. Only the fields owned by
// the submitted stage are read. Numeric fields are pointers so that an omitted
// value can be told apart from zero.
type Payload struct {
	// PM-Initial
	Scope            string   `json:"pm_scope,omitempty"`
	EngineeringHours *float64 `json:"engineering_hours,omitempty"`
	RequiredParts    []string `json:"required_parts,omitempty"`

	// Supply
	SupplyItems []entity.SupplyItem `json:"supply_items,omitempty"`
	SupplyNotes string              `json:"supply_notes,omitempty"`

	// Planning
	PlanningWindowStart        *time.Time `json:"planning_window_start,omitempty"`
	PlanningDeliveryImpactDays *int       `json:"planning_delivery_impact_days,omitempty"`
	PlanningNotes              string     `json:"planning_notes,omitempty"`

	// PM-Final
	FinalPrice              *float64 `json:"pm_final_price,omitempty"`
	FinalDeliveryImpactDays *int     `json:"pm_final_delivery_impact_days,omitempty"`
	FinalNotes              string   `json:"pm_final_notes,omitempty"`
}

// stageRoles is the authorization matrix. administrador passes every stage.
var stageRoles = map[Stage]entity.Role{
	StagePMInitial:     entity.RolePMEngenharia,
	StageSupplyQuote:   entity.RoleComprador,
	StagePlanningCheck: entity.RolePlanejador,
	StagePMFinal:       entity.RolePMEngenharia,
}

// RequiredRole returns the department role that owns the stage
func RequiredRole(stage Stage) entity.Role {
	return stageRoles[stage]
}

// Authorize checks that an actor holding roles may act on the stage
func Authorize(stage Stage, actorID string, roles entity.RoleSet) error {
	required, ok := stageRoles[stage]
	if !ok {
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidState, stage)
	}
	if roles.HasAny(required, entity.RoleAdministrador) {
		return nil
	}
	return &AuthorizationError{
		ActorID:  actorID,
		Stage:    stage.String(),
		Required: []string{required.String(), entity.RoleAdministrador.String()},
	}
}

// IsComplete checks the completeness predicate of the stage and returns a
// ValidationError naming every failing field.
func IsComplete(stage Stage, p Payload) error {
	var missing []string

	switch stage {
	case StagePMInitial:
		if strings.TrimSpace(p.Scope) == "" {
			missing = append(missing, "pm_scope")
		}
		if p.EngineeringHours == nil || *p.EngineeringHours < 0 {
			missing = append(missing, "engineering_hours")
		}
		for i, part := range p.RequiredParts {
			if strings.TrimSpace(part) == "" {
				missing = append(missing, fmt.Sprintf("required_parts[%d]", i))
			}
		}

	case StageSupplyQuote:
		if len(p.SupplyItems) == 0 {
			missing = append(missing, "supply_items")
			break
		}
		for i, item := range p.SupplyItems {
			if strings.TrimSpace(item.Part) == "" {
				missing = append(missing, fmt.Sprintf("supply_items[%d].part", i))
			}
			if item.UnitCost < 0 {
				missing = append(missing, fmt.Sprintf("supply_items[%d].unit_cost", i))
			}
			if item.Quantity < 1 {
				missing = append(missing, fmt.Sprintf("supply_items[%d].quantity", i))
			}
			if item.LeadTimeDays < 0 {
				missing = append(missing, fmt.Sprintf("supply_items[%d].lead_time_days", i))
			}
		}
		cost, lead := entity.SupplyTotals(p.SupplyItems)
		if cost <= 0 {
			missing = append(missing, "supply_cost")
		}
		if lead < 0 {
			missing = append(missing, "supply_lead_time_days")
		}

	case StagePlanningCheck:
		if p.PlanningDeliveryImpactDays == nil || *p.PlanningDeliveryImpactDays < 0 {
			missing = append(missing, "planning_delivery_impact_days")
		}

	case StagePMFinal:
		if p.FinalPrice == nil || *p.FinalPrice <= 0 {
			missing = append(missing, "pm_final_price")
		}
		if p.FinalDeliveryImpactDays == nil || *p.FinalDeliveryImpactDays < 0 {
			missing = append(missing, "pm_final_delivery_impact_days")
		}

	default:
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidState, stage)
	}

	if len(missing) > 0 {
		return &ValidationError{Stage: stage.String(), Fields: missing}
	}
	return nil
}

// ValidateRejection checks the only requirement of a rejection: a reason
func ValidateRejection(stage Stage, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return &ValidationError{Stage: stage.String(), Fields: []string{"reject_reason"}}
	}
	return nil
}
