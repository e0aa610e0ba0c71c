package authz

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/buildflow/buildflow/pkg/configuration"
)

// Config captures all inputs necessary to initialize the Casbin enforcer.
// Empty model and policy paths select the embedded defaults.
type Config struct {
	ModelPath    string
	PolicyPath   string
	FlagPath     string
	FlagMode     Mode
	Logger       *logrus.Logger
	FlagProvider FlagProvider
}

func (c Config) validate() error {
	if c.ModelPath != "" && c.PolicyPath == "" {
		return configError("policy path is required when a model path is set")
	}
	return nil
}

func (c Config) normalized() Config {
	if c.ModelPath != "" {
		c.ModelPath = filepath.Clean(c.ModelPath)
	}
	if c.PolicyPath != "" {
		c.PolicyPath = filepath.Clean(c.PolicyPath)
	}
	if c.FlagPath != "" {
		c.FlagPath = filepath.Clean(c.FlagPath)
	}
	c.FlagMode = sanitizeMode(c.FlagMode)
	return c
}

// DefaultConfig builds a Config using the global configuration singleton.
func DefaultConfig() Config {
	cfg := configuration.Use()
	mode := sanitizeMode(Mode(cfg.Authz.Mode))
	if envMode := strings.TrimSpace(os.Getenv("AUTHZ_MODE")); envMode != "" {
		mode = sanitizeMode(Mode(envMode))
	}

	return Config{
		ModelPath:  cfg.Authz.ModelPath,
		PolicyPath: cfg.Authz.PolicyPath,
		FlagPath:   cfg.Authz.FlagConfigPath,
		FlagMode:   mode,
		Logger:     cfg.Logger(),
	}
}
