package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/notewire/notewire/pkg/adapters/fs"
	"github.com/notewire/notewire/pkg/adapters/postgres"
	"github.com/notewire/notewire/pkg/core"
)

// Init builds the configured store adapter. The 'uri' argument is
// adapter-specific: a vault path for 'fs', a connection string for
// 'postgres'.
func Init(uri string, opts ...Option) (core.Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	// 1. Check for injected store
	if o.store != nil {
		return o.store, nil
	}

	// 2. Initialize based on Adapter
	switch o.adapter {
	case "fs":
		return initFS(uri, o)
	case "postgres":
		return initPostgres(uri, o)
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
}

// initFS handles the initialization logic for the filesystem adapter.
func initFS(path string, o *options) (core.Store, error) {
	autoInit, _ := o.config["auto_init"].(bool)
	mustExist, _ := o.config["must_exist"].(bool)
	systemDir, _ := o.config["system_dir"].(string)
	rescanDebounce, _ := o.config["rescan_debounce"].(time.Duration)
	errorHandler, _ := o.config["error_handler"].(func(error))

	store := fs.New(fs.Config{
		Path:           path,
		AutoInit:       autoInit,
		MustExist:      mustExist || !autoInit,
		SystemDir:      systemDir,
		Logger:         o.logger,
		ErrorHandler:   errorHandler,
		DebounceWindow: rescanDebounce,
	})
	if err := store.Initialize(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

// initPostgres handles the initialization logic for the PostgreSQL adapter.
func initPostgres(dsn string, o *options) (core.Store, error) {
	errorHandler, _ := o.config["error_handler"].(func(error))

	return postgres.New(postgres.Config{
		DSN:          dsn,
		Logger:       o.logger,
		ErrorHandler: errorHandler,
	})
}
