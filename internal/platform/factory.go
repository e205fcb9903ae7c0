package platform

import (
	"fmt"
	"time"

	"github.com/notewire/notewire/pkg/auth"
	"github.com/notewire/notewire/pkg/core"
	"github.com/notewire/notewire/pkg/registry"
)

// New assembles the full coordinator stack: store adapter, access checker
// and subscription registry. The URI argument is adapter-specific (vault
// path for 'fs', connection string for 'postgres').
func New(uri string, opts ...Option) (*registry.Registry, core.Store, error) {
	store, err := Init(uri, opts...)
	if err != nil {
		return nil, nil, err
	}

	// Parse options again to wire the registry's collaborators.
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.transport == nil {
		return nil, nil, fmt.Errorf("a transport is required; use WithTransport")
	}

	access := o.access
	if access == nil {
		access = auth.NewStoreAccessChecker(store)
	}

	commentDebounce, _ := o.config["comment_debounce"].(time.Duration)
	errorHandler, _ := o.config["error_handler"].(func(error))

	reg := registry.New(registry.Config{
		Notes:          store,
		Comments:       store,
		Shared:         store,
		Access:         access,
		Transport:      o.transport,
		Badge:          o.badge,
		DebounceWindow: commentDebounce,
		Logger:         o.logger,
		ErrorHandler:   errorHandler,
	})
	return reg, store, nil
}
