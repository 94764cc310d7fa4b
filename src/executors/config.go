package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// LoopPeriod is the normal pause between scheduler cycles.
	LoopPeriod time.Duration `envconfig:"LOOP_PERIOD" default:"30s"`
	// ErrorBackoff replaces LoopPeriod after a cycle that reported an error.
	ErrorBackoff time.Duration `envconfig:"ERROR_BACKOFF" default:"60s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
