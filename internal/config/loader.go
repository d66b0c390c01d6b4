package config

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kelseyhightower/envconfig"
)

func Init() (*ServiceConfig, error) {
	cfg := &ServiceConfig{}

	err := envconfig.Process("", cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service configuration: %w", err)
	}

	return cfg, nil
}

// Dump writes the configuration as indented JSON with secrets left out.
func Dump(w io.Writer, cfg *ServiceConfig) error {
	redacted := *cfg
	redacted.Database.Password = ""
	redacted.Cache.Password = ""

	data, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	_, err = fmt.Fprintf(w, "%s\n", data)

	return err
}
