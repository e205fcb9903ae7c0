package notewire

import (
	"log/slog"
	"time"

	"github.com/notewire/notewire/internal/platform"
	"github.com/notewire/notewire/pkg/core"
	"github.com/notewire/notewire/pkg/registry"
)

// --- Configuration ---

// Option defines a functional option for configuring Notewire.
type Option = platform.Option

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithAdapter selects the storage adapter by name ("fs" or "postgres").
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithStore injects a custom store adapter.
func WithStore(store core.Store) Option {
	return platform.WithStore(store)
}

// WithAccessChecker overrides the default ownership-based access checker.
func WithAccessChecker(access core.AccessChecker) Option {
	return platform.WithAccessChecker(access)
}

// WithTransport sets the frame delivery transport.
func WithTransport(transport core.Transport) Option {
	return platform.WithTransport(transport)
}

// WithBadgeSetter receives the derived unread count for the shared feed.
func WithBadgeSetter(badge core.BadgeSetter) Option {
	return platform.WithBadgeSetter(badge)
}

// WithAutoInit enables automatic initialization of the vault directory.
func WithAutoInit(auto bool) Option {
	return platform.WithAutoInit(auto)
}

// WithMustExist ensures the vault directory must already exist.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithSystemDir allows specifying the hidden directory name (e.g. ".notewire").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithCommentDebounce sets the coalescing window for comment-thread deliveries.
func WithCommentDebounce(d time.Duration) Option {
	return platform.WithCommentDebounce(d)
}

// WithRescanDebounce sets the fs adapter's quiet interval before a rescan.
func WithRescanDebounce(d time.Duration) Option {
	return platform.WithRescanDebounce(d)
}

// WithErrorHandler registers a callback for unexpected runtime failures.
func WithErrorHandler(fn func(error)) Option {
	return platform.WithErrorHandler(fn)
}

// --- Service ---

// Service bundles the assembled coordinator stack: the store adapter and
// the subscription registry multiplexing live queries over it.
type Service struct {
	Store    core.Store
	Registry *registry.Registry
}

// --- Factory ---

// New assembles a Notewire Service. The URI argument is adapter-specific
// (vault path for 'fs', connection string for 'postgres').
func New(uri string, opts ...Option) (*Service, error) {
	reg, store, err := platform.New(uri, opts...)
	if err != nil {
		return nil, err
	}
	return &Service{Store: store, Registry: reg}, nil
}

// Init builds just the store adapter, without the subscription stack.
func Init(uri string, opts ...Option) (core.Store, error) {
	return platform.Init(uri, opts...)
}

// --- Utils ---

// FindVaultRoot recursively looks upwards for a vault root indicator.
func FindVaultRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
