package config

// ServiceConfig holds service identity and payment provider settings.
type ServiceConfig struct {
	Name                string               `yaml:"name"`
	Environment         string               `yaml:"environment"`
	Version             string               `yaml:"version"`
	ClientURL           string               `yaml:"client_url"`
	StripeSecretKey     string               `yaml:"stripe_secret_key"`
	StripeWebhookSecret string               `yaml:"stripe_webhook_secret"`
	PlanPrices          map[string]PlanPrice `yaml:"plan_prices"`
}

// PlanPrice carries the provider price references for one plan.
type PlanPrice struct {
	MonthlyPriceID string `yaml:"monthly_price_id"`
	YearlyPriceID  string `yaml:"yearly_price_id"`
}

// JWTConfig holds the shared secret used to validate caller tokens.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	Output      string `yaml:"output"`
	FilePath    string `yaml:"file_path"`
	Development bool   `yaml:"development"`
}
