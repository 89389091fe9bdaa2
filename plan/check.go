package plan

import "fmt"

// Decision is the result of an admission check. The check is advisory only:
// nothing serializes two tabs racing to create the same resource, so a denial
// message is a best-effort guard, not a hard guarantee.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Message string `json:"message,omitempty"`
}

// CheckLimit decides whether creating one more instance of a counted resource
// is allowed under the given plan. currentCount is the number that already
// exist. Pure function, safe to call on every action attempt.
func CheckLimit(name Name, feature NumericFeature, currentCount int64) Decision {
	limits := LimitsFor(name)
	limit, ok := limits.numeric(feature)
	if !ok {
		// unknown feature is denied outright, same fail-safe posture as LimitsFor
		return Decision{
			Allowed: false,
			Message: fmt.Sprintf("Unknown feature %q", feature),
		}
	}
	if limit == Unlimited {
		return Decision{Allowed: true}
	}
	if currentCount < limit {
		return Decision{Allowed: true}
	}
	return Decision{
		Allowed: false,
		Message: fmt.Sprintf("The %s plan allows at most %d %s. Upgrade to Pro for unlimited.", name, limit, describe(feature)),
	}
}

// CheckFeature decides whether a boolean capability is available on the plan
func CheckFeature(name Name, feature BoolFeature) Decision {
	limits := LimitsFor(name)
	enabled, ok := limits.capability(feature)
	if !ok {
		return Decision{
			Allowed: false,
			Message: fmt.Sprintf("Unknown feature %q", feature),
		}
	}
	if !enabled {
		return Decision{
			Allowed: false,
			Message: "Pro plan required",
		}
	}
	return Decision{Allowed: true}
}

func describe(feature NumericFeature) string {
	switch feature {
	case MaxClients:
		return "clients"
	case MaxProjects:
		return "projects"
	case MaxInvoicesPerMonth:
		return "invoices per month"
	}
	return string(feature)
}
