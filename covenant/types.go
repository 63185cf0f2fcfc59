package covenant

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// CovenantType names a threshold rule a project must satisfy. The min_/max_
// prefix determines the direction of the comparison.
type CovenantType string

const (
	MinTier1Coverage   CovenantType = "min_tier1_coverage"
	MinTier2Coverage   CovenantType = "min_tier2_coverage"
	MaxHHI             CovenantType = "max_hhi"
	MaxSupplyShortfall CovenantType = "max_supply_shortfall"
	MinSupplierCount   CovenantType = "min_supplier_count"
)

// Severity classifies how far a metric deviates from its covenant threshold.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityBreach   Severity = "breach"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for alert sorting; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityBreach:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Covenant is a named threshold rule attached to a project.
type Covenant struct {
	Type      CovenantType `json:"type"`
	Threshold float64      `json:"threshold"`
}

// Metrics is the current supply position of a project, computed upstream.
type Metrics struct {
	Tier1Coverage   float64 `json:"tier1Coverage"`
	Tier2Coverage   float64 `json:"tier2Coverage"`
	HHI             float64 `json:"hhi"`
	SupplyShortfall float64 `json:"supplyShortfall"`
	SupplierCount   float64 `json:"supplierCount"`
}

// Result is the classified outcome of evaluating one covenant.
type Result struct {
	Type            CovenantType `json:"type"`
	Compliant       bool         `json:"compliant"`
	ActualValue     float64      `json:"actualValue"`
	ThresholdValue  float64      `json:"thresholdValue"`
	VariancePercent int          `json:"variancePercent"`
	Severity        Severity     `json:"severity"`
}

// BreachEvent is the persisted audit record of a non-compliant or
// near-threshold check. Created once, mutated only to mark resolution,
// never deleted.
type BreachEvent struct {
	BreachID        uuid.UUID    `json:"breachId"`
	ProjectID       uuid.UUID    `json:"projectId"`
	CovenantType    CovenantType `json:"covenantType"`
	Severity        Severity     `json:"severity"`
	ActualValue     float64      `json:"actualValue"`
	ThresholdValue  float64      `json:"thresholdValue"`
	VariancePercent int          `json:"variancePercent"`
	BreachedAt      time.Time    `json:"breachedAt"`
	DetectedAt      time.Time    `json:"detectedAt"`
	Resolved        bool         `json:"resolved"`
	ResolutionNotes string       `json:"resolutionNotes,omitempty"`
	ResolvedBy      string       `json:"resolvedBy,omitempty"`
	ResolvedAt      *time.Time   `json:"resolvedAt,omitempty"`
	LenderNotified  bool         `json:"lenderNotified"`
}

// ErrBreachNotFound is returned when resolving a breach that does not exist
// or was already resolved.
var ErrBreachNotFound = errors.New("breach not found or already resolved")
