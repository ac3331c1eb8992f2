package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hyprpal/autotile/internal/config"
	"github.com/hyprpal/autotile/internal/engine"
	"github.com/hyprpal/autotile/internal/util"
)

// configReloader re-reads the config file and applies its workspace scope and
// debug toggle on top of the command-line overrides.
type configReloader struct {
	opts           options
	logger         *util.Logger
	engine         *engine.Engine
	lastSerialized []byte
}

func newConfigReloader(opts options, logger *util.Logger, eng *engine.Engine, serialized []byte) *configReloader {
	return &configReloader{
		opts:           opts,
		logger:         logger,
		engine:         eng,
		lastSerialized: append([]byte(nil), serialized...),
	}
}

func (r *configReloader) Reload(reason string) error {
	r.logger.Infof("%s, reloading config", reason)
	raw, err := os.ReadFile(r.opts.configPath)
	if errors.Is(err, os.ErrNotExist) {
		raw, err = nil, nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	fileCfg, err := config.Parse(raw)
	if err != nil {
		r.logDiff(raw)
		return err
	}
	cfg := fileCfg.WithOverrides(r.opts.debug, r.opts.workspaces)
	if err := cfg.Validate(); err != nil {
		r.logDiff(raw)
		return err
	}

	r.logger.SetLevel(logLevelFor(r.opts, cfg.Debug))
	r.engine.SetScope(cfg.Scope())
	if cfg.Debug && len(cfg.Workspaces) > 0 {
		r.logger.Infof("autotiling is only active on workspaces: %s", strings.Join(cfg.Workspaces, ","))
	}
	r.lastSerialized = append([]byte(nil), raw...)
	return nil
}

func (r *configReloader) logDiff(current []byte) {
	diff := config.DiffSerialized(r.lastSerialized, current)
	if diff == "" {
		r.logger.Warnf("config change rejected; unable to compute diff vs last valid config")
		return
	}
	r.logger.Warnf("config change rejected; diff vs last valid config:\n%s", diff)
}
