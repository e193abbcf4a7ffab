package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// CHAT_GUARD_ADDR points at a running server; the suites skip when empty
	ServerAddr string `envconfig:"CHAT_GUARD_ADDR"`
	// E2E_DEBUG_BODIES dumps every request and response
	DebugBodies bool `envconfig:"E2E_DEBUG_BODIES" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
