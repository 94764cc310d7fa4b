package controller

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// MaxPlaceRetries is how many failed placement attempts a signal gets
	// before it is marked failed and dropped from the queue.
	MaxPlaceRetries int `envconfig:"MAX_PLACE_RETRIES" default:"5"`
	// UnitsPerLot converts lot size to broker units (standard lot).
	UnitsPerLot int `envconfig:"UNITS_PER_LOT" default:"100000"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
