package cli

import (
	"fmt"

	"github.com/julianstephens/go-utils/helpers"

	"github.com/julianstephens/jrnl/internal/jrnl/config"
	"github.com/julianstephens/jrnl/internal/jrnl/journal"
	"github.com/julianstephens/jrnl/internal/jrnl/manifest"
	"github.com/julianstephens/jrnl/internal/jrnl/sequential"
	"github.com/julianstephens/jrnl/internal/logger"
)

// JournalFlags locate a journal directory and the settings to open it with.
type JournalFlags struct {
	Dir     string `arg:"" help:"Journal directory"                                      type:"path"`
	Config  string `help:"Config file (yaml, json or toml); defaults to the directory manifest" type:"path" envvar:"JRNL_CONFIG"`
	Backend string `help:"Override the I/O backend (sync, async)"`
}

// resolve picks the settings in order: --config, the directory manifest,
// then defaults. JRNL_* variables apply to the first and last. --backend
// overrides all of them.
func (f JournalFlags) resolve() (config.Config, string, error) {
	return f.resolveWith(true)
}

func (f JournalFlags) resolveWith(useManifest bool) (config.Config, string, error) {
	var (
		cfg    config.Config
		source string
		err    error
	)
	switch {
	case f.Config != "":
		cfg, err = config.Load(f.Config)
		source = f.Config
	case useManifest && helpers.Exists(manifest.Path(f.Dir)):
		var m *manifest.Manifest
		if m, err = manifest.Open(f.Dir); err == nil {
			cfg, err = m.Config()
		}
		source = manifest.Path(f.Dir)
	default:
		cfg, err = config.Load("")
		source = "defaults"
	}
	if err != nil {
		return config.Config{}, source, err
	}

	if f.Backend != "" {
		b, err := sequential.ParseBackend(f.Backend)
		if err != nil {
			return config.Config{}, source, err
		}
		cfg.Factory.Backend = b
	}
	return cfg, source, nil
}

func (f JournalFlags) factory(cfg config.Config, lg logger.Logger) (sequential.Factory, error) {
	return sequential.NewFactory(f.Dir, cfg.Factory, lg)
}

// open returns a started, not yet loaded, journal.
func (f JournalFlags) open(lg logger.Logger) (*journal.Journal, config.Config, error) {
	cfg, source, err := f.resolve()
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("resolve settings from %s: %w", source, err)
	}
	lg.Debug("resolved journal settings", "source", source, "backend", string(cfg.Factory.Backend))

	factory, err := f.factory(cfg, lg)
	if err != nil {
		return nil, config.Config{}, err
	}
	j, err := journal.New(cfg.Options(f.Dir), factory, lg)
	if err != nil {
		return nil, config.Config{}, err
	}
	if err := j.Start(); err != nil {
		return nil, config.Config{}, err
	}
	return j, cfg, nil
}

func stop(j *journal.Journal, lg logger.Logger) {
	if err := j.Stop(); err != nil {
		lg.Error("failed to stop journal", err)
	}
}
