package authz

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/sirupsen/logrus"
)

//go:embed defaults/model.conf
var defaultModel string

//go:embed defaults/policy.csv
var defaultPolicy string

// Service provides helpers for enforcing authorization decisions.
type Service struct {
	cfg          Config
	enforcer     *casbin.Enforcer
	logger       *logrus.Entry
	flagProvider FlagProvider
	mu           sync.RWMutex
}

// NewService constructs a Service with the provided config.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.normalized()

	var logger *logrus.Entry
	if cfg.Logger != nil {
		logger = cfg.Logger.WithField("component", "authz")
	} else {
		logger = logrus.WithField("component", "authz")
	}

	enf, err := newEnforcer(cfg)
	if err != nil {
		return nil, err
	}

	provider := cfg.FlagProvider
	if provider == nil {
		provider = NewFileFlagProvider(cfg.FlagPath, cfg.FlagMode)
	}

	return &Service{
		cfg:          cfg,
		enforcer:     enf,
		logger:       logger,
		flagProvider: provider,
	}, nil
}

func newEnforcer(cfg Config) (*casbin.Enforcer, error) {
	if cfg.ModelPath != "" {
		enf, err := casbin.NewEnforcer(cfg.ModelPath, fileadapter.NewAdapter(cfg.PolicyPath))
		if err != nil {
			return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
		}
		if err := enf.LoadPolicy(); err != nil {
			return nil, fmt.Errorf("authz: failed to load policies: %w", err)
		}
		return enf, nil
	}

	m, err := model.NewModelFromString(defaultModel)
	if err != nil {
		return nil, fmt.Errorf("authz: failed to parse embedded model: %w", err)
	}
	enf, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
	}
	if err := loadPolicyLines(enf, defaultPolicy); err != nil {
		return nil, err
	}
	return enf, nil
}

func loadPolicyLines(enf *casbin.Enforcer, text string) error {
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		fields := make([]interface{}, 0, len(parts)-1)
		for _, p := range parts[1:] {
			fields = append(fields, strings.TrimSpace(p))
		}
		ptype := strings.TrimSpace(parts[0])
		var err error
		switch ptype {
		case "p":
			_, err = enf.AddNamedPolicy(ptype, fields...)
		case "g":
			_, err = enf.AddNamedGroupingPolicy(ptype, fields...)
		default:
			err = configError("unknown policy type %q", ptype)
		}
		if err != nil {
			return fmt.Errorf("authz: failed to load policy line %q: %w", line, err)
		}
	}
	return scanner.Err()
}

// Mode reports the currently effective enforcement mode.
func (s *Service) Mode() Mode {
	return s.flagProvider.Mode()
}

// Authorize returns an error if the request is denied.
func (s *Service) Authorize(ctx context.Context, req Request) error {
	mode := s.flagProvider.Mode()
	if mode == ModeDisabled {
		return nil
	}
	allowed, err := s.Check(ctx, req)
	if err != nil {
		return err
	}
	recordDecision(mode, req.Object, allowed)
	if allowed {
		return nil
	}

	fields := logrus.Fields{
		"subject": req.Subject,
		"domain":  req.Domain,
		"object":  req.Object,
		"action":  req.Action,
		"mode":    mode,
	}
	if mode == ModeShadow {
		s.logger.WithContext(ctx).WithFields(fields).Warn("authz shadow deny")
		return nil
	}
	s.logger.WithContext(ctx).WithFields(fields).Warn("authz denied request")
	return forbiddenError(req)
}

// Check evaluates a request without returning an authorization error.
func (s *Service) Check(ctx context.Context, req Request) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.enforcer.Enforce(req.Subject, req.Domain, req.Object, req.Action)
	if err != nil {
		return false, fmt.Errorf("authz: enforce failed: %w", err)
	}
	return res, nil
}

// ReloadPolicy reloads policy data from disk. It is a no-op for the
// embedded policy set.
func (s *Service) ReloadPolicy(ctx context.Context) error {
	if s.cfg.ModelPath == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("authz: reload policy failed: %w", err)
	}
	s.logger.WithContext(ctx).Info("authz policy reloaded")
	return nil
}

var (
	defaultServiceOnce sync.Once
	defaultService     *Service
	defaultServiceErr  error
)

// Use returns a singleton Service configured via environment variables.
func Use() *Service {
	defaultServiceOnce.Do(func() {
		defaultService, defaultServiceErr = NewService(DefaultConfig())
	})
	if defaultServiceErr != nil {
		panic(defaultServiceErr)
	}
	return defaultService
}
