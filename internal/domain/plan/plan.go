package plan

// Billing intervals accepted by the catalog and the payment provider.
const (
	IntervalMonthly = "month"
	IntervalYearly  = "year"
)

// Unlimited disables a cap when used as its value.
const Unlimited = -1

// Config is the immutable entitlement bundle for one plan.
type Config struct {
	ID                     string `json:"id"`
	Name                   string `json:"name"`
	PriceMonthly           int64  `json:"price_monthly"` // cents
	PriceYearly            int64  `json:"price_yearly"`  // cents
	MaxProjects            int    `json:"max_projects"`              // -1 = unlimited
	MaxDeployments         int    `json:"max_deployments"`           // lifetime credit pool, -1 = unlimited
	MaxDeploymentsPerMonth int    `json:"max_deployments_per_month"` // monthly rate cap, -1 = unlimited
	CustomDomain           bool   `json:"custom_domain"`
	PrioritySupport        bool   `json:"priority_support"`
	Analytics              bool   `json:"analytics"`

	// Provider price references, attached from config at startup. Empty on
	// the free plan.
	MonthlyPriceID string `json:"-"`
	YearlyPriceID  string `json:"-"`
}

// IsFree reports whether the plan has no paid prices.
func (c Config) IsFree() bool {
	return c.ID == FreeID
}

// PriceIDFor returns the provider price reference for the given interval.
func (c Config) PriceIDFor(interval string) string {
	switch interval {
	case IntervalYearly:
		return c.YearlyPriceID
	default:
		return c.MonthlyPriceID
	}
}

// Plan identifiers. FreeID is the default for new accounts; StarterID is the
// lowest paid plan and the fallback when checkout metadata is missing.
const (
	FreeID    = "free"
	StarterID = "starter"
	ProID     = "pro"
)

var defaultPlans = []Config{
	{
		ID:                     FreeID,
		Name:                   "Free",
		MaxProjects:            1,
		MaxDeployments:         30,
		MaxDeploymentsPerMonth: 10,
	},
	{
		ID:                     StarterID,
		Name:                   "Starter",
		PriceMonthly:           900,
		PriceYearly:            9000,
		MaxProjects:            5,
		MaxDeployments:         Unlimited,
		MaxDeploymentsPerMonth: 100,
		CustomDomain:           true,
	},
	{
		ID:                     ProID,
		Name:                   "Pro",
		PriceMonthly:           2900,
		PriceYearly:            29000,
		MaxProjects:            Unlimited,
		MaxDeployments:         Unlimited,
		MaxDeploymentsPerMonth: Unlimited,
		CustomDomain:           true,
		PrioritySupport:        true,
		Analytics:              true,
	},
}

// Catalog is a read-only plan lookup built once at process start.
type Catalog struct {
	byID    map[string]Config
	ordered []Config
}

// PriceRef attaches provider price IDs to a plan at catalog build time.
type PriceRef struct {
	MonthlyPriceID string
	YearlyPriceID  string
}

// NewCatalog builds the catalog from the built-in plans, merging in the
// provider price references supplied by configuration.
func NewCatalog(prices map[string]PriceRef) *Catalog {
	c := &Catalog{
		byID:    make(map[string]Config, len(defaultPlans)),
		ordered: make([]Config, 0, len(defaultPlans)),
	}
	for _, p := range defaultPlans {
		if ref, ok := prices[p.ID]; ok {
			p.MonthlyPriceID = ref.MonthlyPriceID
			p.YearlyPriceID = ref.YearlyPriceID
		}
		c.byID[p.ID] = p
		c.ordered = append(c.ordered, p)
	}
	return c
}

// Get returns the plan with the given id.
func (c *Catalog) Get(id string) (Config, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// All returns every plan in display order.
func (c *Catalog) All() []Config {
	out := make([]Config, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Free returns the free plan.
func (c *Catalog) Free() Config {
	return c.byID[FreeID]
}

// LowestPaid returns the cheapest paid plan, used when checkout metadata
// does not name one.
func (c *Catalog) LowestPaid() Config {
	return c.byID[StarterID]
}

// ByPriceID resolves a plan and interval from a provider price reference.
func (c *Catalog) ByPriceID(priceID string) (Config, string, bool) {
	if priceID == "" {
		return Config{}, "", false
	}
	for _, p := range c.ordered {
		switch priceID {
		case p.MonthlyPriceID:
			return p, IntervalMonthly, true
		case p.YearlyPriceID:
			return p, IntervalYearly, true
		}
	}
	return Config{}, "", false
}
