package platform

import (
	"log/slog"
	"time"

	"github.com/notewire/notewire/pkg/core"
)

// options holds the internal configuration for the Notewire service.
type options struct {
	store     core.Store
	access    core.AccessChecker
	transport core.Transport
	badge     core.BadgeSetter
	logger    *slog.Logger
	adapter   string
	config    map[string]interface{}
}

// Option defines a functional option for configuring Notewire.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter: "fs",
		config:  make(map[string]interface{}),
	}
}

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithAdapter selects the storage adapter by name ("fs" or "postgres").
// Defaults to "fs".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithStore injects a custom store adapter (e.g. a mock). If provided, the
// adapter selection is skipped.
func WithStore(store core.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithAccessChecker overrides the default ownership-based access checker.
func WithAccessChecker(access core.AccessChecker) Option {
	return func(o *options) {
		o.access = access
	}
}

// WithTransport sets the frame delivery transport. Required unless the
// caller only uses the store surface.
func WithTransport(transport core.Transport) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// WithBadgeSetter receives the derived unread count for the shared feed.
func WithBadgeSetter(badge core.BadgeSetter) Option {
	return func(o *options) {
		o.badge = badge
	}
}

// WithAutoInit enables automatic initialization of the vault directory.
func WithAutoInit(auto bool) Option {
	return func(o *options) {
		o.config["auto_init"] = auto
	}
}

// WithMustExist ensures the vault directory must already exist.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config["must_exist"] = must
	}
}

// WithSystemDir allows specifying the hidden directory name (e.g.
// ".notewire"). Defaults to ".notewire" (handled by the fs adapter).
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.config["system_dir"] = name
	}
}

// WithCommentDebounce sets the coalescing window for comment-thread
// deliveries. Zero means the registry default (100ms).
func WithCommentDebounce(d time.Duration) Option {
	return func(o *options) {
		o.config["comment_debounce"] = d
	}
}

// WithRescanDebounce sets the quiet interval the fs adapter waits before
// turning a burst of file events into one rescan. Zero means the adapter
// default (50ms).
func WithRescanDebounce(d time.Duration) Option {
	return func(o *options) {
		o.config["rescan_debounce"] = d
	}
}

// WithErrorHandler registers a callback for unexpected runtime failures
// (watcher errors, store failures, subscription setup panics) which are
// otherwise only logged.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.config["error_handler"] = fn
	}
}
