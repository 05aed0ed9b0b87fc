package errors

import "fmt"

// Quota limit names carried by QuotaExceededError for user-facing messaging.
const (
	LimitLifetimeDeployments = "lifetime_deployments"
	LimitMonthlyDeployments  = "monthly_deployments"
	LimitProjects            = "projects"
)

// QuotaExceededError is returned when a resource-consuming operation would
// exceed one of the plan's caps.
type QuotaExceededError struct {
	Limit   string
	Current int
	Allowed int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %d of %d used", e.Limit, e.Current, e.Allowed)
}

// NewQuotaExceededError creates a QuotaExceededError for the named limit.
func NewQuotaExceededError(limit string, current, allowed int) *QuotaExceededError {
	return &QuotaExceededError{
		Limit:   limit,
		Current: current,
		Allowed: allowed,
	}
}

// DowngradeBlockedError is returned when a plan change would retroactively
// violate usage already committed on the current plan.
type DowngradeBlockedError struct {
	Limit      string
	Current    int
	NewAllowed int
	TargetPlan string
}

func (e *DowngradeBlockedError) Error() string {
	return fmt.Sprintf("cannot downgrade to %s: %s usage %d exceeds new limit %d",
		e.TargetPlan, e.Limit, e.Current, e.NewAllowed)
}

// NewDowngradeBlockedError creates a DowngradeBlockedError for the named limit.
func NewDowngradeBlockedError(targetPlan, limit string, current, newAllowed int) *DowngradeBlockedError {
	return &DowngradeBlockedError{
		Limit:      limit,
		Current:    current,
		NewAllowed: newAllowed,
		TargetPlan: targetPlan,
	}
}
