package authz

import (
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Mode represents the global enforcement mode.
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeShadow   Mode = "shadow"
	ModeEnforce  Mode = "enforce"
)

// FlagProvider supplies the current enforcement mode.
type FlagProvider interface {
	Mode() Mode
}

// StaticFlagProvider always reports the same mode.
type StaticFlagProvider Mode

func (s StaticFlagProvider) Mode() Mode {
	return sanitizeMode(Mode(s))
}

// FileFlagProvider loads authz flags from a YAML file and falls back to
// the configured mode when the file is missing or malformed.
type FileFlagProvider struct {
	path     string
	fallback Mode
	lastMode Mode
	mu       sync.Mutex
}

// NewFileFlagProvider returns a provider backed by a YAML config file.
func NewFileFlagProvider(path string, fallback Mode) FlagProvider {
	return &FileFlagProvider{
		path:     path,
		fallback: sanitizeMode(fallback),
	}
}

func (p *FileFlagProvider) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.path == "" {
		return p.fallback
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		if p.lastMode == "" {
			p.lastMode = p.fallback
		}
		return p.lastMode
	}

	var cfg struct {
		Mode string `yaml:"mode"`
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil || strings.TrimSpace(cfg.Mode) == "" {
		return p.fallback
	}
	p.lastMode = sanitizeMode(Mode(cfg.Mode))
	return p.lastMode
}

// sanitizeMode maps unknown values to enforce.
func sanitizeMode(mode Mode) Mode {
	switch strings.ToLower(strings.TrimSpace(string(mode))) {
	case string(ModeDisabled):
		return ModeDisabled
	case string(ModeShadow):
		return ModeShadow
	default:
		return ModeEnforce
	}
}
