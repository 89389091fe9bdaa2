package plan

// Name is the custom type for a billing plan
type Name string

// The two plans a user can be on. Every subscription status maps to one of
// these for limit purposes.
const (
	Trial Name = "trial"
	Pro   Name = "pro"
)

// Unlimited disables the numeric cap for a feature (-1 for SQL friendliness)
const Unlimited int64 = -1

// NumericFeature is a countable resource capped per plan
type NumericFeature string

const (
	MaxClients          NumericFeature = "maxClients"
	MaxProjects         NumericFeature = "maxProjects"
	MaxInvoicesPerMonth NumericFeature = "maxInvoicesPerMonth"
)

// BoolFeature is a capability toggled per plan
type BoolFeature string

const (
	CanExportPDF        BoolFeature = "canExportPDF"
	HasAdvancedFeatures BoolFeature = "hasAdvancedFeatures"
)

// Limits holds the caps and capabilities of a single plan
type Limits struct {
	MaxClients          int64 `json:"maxClients"`
	MaxProjects         int64 `json:"maxProjects"`
	MaxInvoicesPerMonth int64 `json:"maxInvoicesPerMonth"`
	CanExportPDF        bool  `json:"canExportPDF"`
	HasAdvancedFeatures bool  `json:"hasAdvancedFeatures"`
}

var limitTable = map[Name]Limits{
	Trial: {
		MaxClients:          3,
		MaxProjects:         3,
		MaxInvoicesPerMonth: 5,
		CanExportPDF:        false,
		HasAdvancedFeatures: false,
	},
	Pro: {
		MaxClients:          Unlimited,
		MaxProjects:         Unlimited,
		MaxInvoicesPerMonth: Unlimited,
		CanExportPDF:        true,
		HasAdvancedFeatures: true,
	},
}

// LimitsFor returns the limit table entry for the given plan. An unknown plan
// gets trial limits (fail-safe, not fail-open).
func LimitsFor(name Name) Limits {
	limits, ok := limitTable[name]
	if !ok {
		return limitTable[Trial]
	}
	return limits
}

func (l Limits) numeric(feature NumericFeature) (int64, bool) {
	switch feature {
	case MaxClients:
		return l.MaxClients, true
	case MaxProjects:
		return l.MaxProjects, true
	case MaxInvoicesPerMonth:
		return l.MaxInvoicesPerMonth, true
	}
	return 0, false
}

func (l Limits) capability(feature BoolFeature) (bool, bool) {
	switch feature {
	case CanExportPDF:
		return l.CanExportPDF, true
	case HasAdvancedFeatures:
		return l.HasAdvancedFeatures, true
	}
	return false, false
}
