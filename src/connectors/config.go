package connectors

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	OandaAPIKey      string `envconfig:"OANDA_API_KEY"`
	OandaAccountID   string `envconfig:"OANDA_ACCOUNT_ID"`
	OandaEnvironment string `envconfig:"OANDA_ENVIRONMENT" default:"practice"` // practice or live
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// BaseURL resolves the REST endpoint for the configured environment.
// Anything other than "live" falls back to the practice endpoint.
func (c Config) BaseURL() string {
	if c.OandaEnvironment == "live" {
		return "https://api-fxtrade.oanda.com"
	}
	return "https://api-fxpractice.oanda.com"
}
