package errors

import "errors"

var (
	// ErrPlanNotFound indicates that the requested plan id is not in the catalog
	ErrPlanNotFound = errors.New("plan not found")

	// ErrPlanNotPurchasable indicates a checkout was requested for the free plan
	// or for a plan with no configured price for the requested interval
	ErrPlanNotPurchasable = errors.New("plan cannot be purchased")

	// ErrAlreadyOnPlan indicates the account already has the requested plan
	ErrAlreadyOnPlan = errors.New("account is already on the requested plan")

	// ErrNoCustomer indicates the account has no payment provider customer on file
	ErrNoCustomer = errors.New("no payment provider customer for account")

	// ErrNoActiveSubscription indicates the account has no provider subscription
	ErrNoActiveSubscription = errors.New("no active subscription found")
)
