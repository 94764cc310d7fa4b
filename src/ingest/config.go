package ingest

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DefaultLotSize float64 `envconfig:"DEFAULT_LOT_SIZE" default:"0.01"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
