package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/lib/pq"

	"github.com/notewire/notewire/pkg/core"
)

// SubscribeNotes opens a live query for the notes of a page. The initial
// snapshot is pushed asynchronously right after the listener attaches;
// every NOTIFY on the change channel triggers a re-query, and a snapshot
// is only pushed when its content actually changed.
func (s *Store) SubscribeNotes(ctx context.Context, urlPattern string, identity core.Identity, onSnapshot func([]core.Note), onError func(error)) (core.CancelFunc, error) {
	return subscribeLive(ctx, s, func() ([]core.Note, error) {
		return s.notesSnapshot(ctx, urlPattern, identity)
	}, onSnapshot, onError)
}

// SubscribeComments opens a live query over one note's thread.
func (s *Store) SubscribeComments(ctx context.Context, noteID string, identity core.Identity, onSnapshot func([]core.Comment), onError func(error)) (core.CancelFunc, error) {
	return subscribeLive(ctx, s, func() ([]core.Comment, error) {
		return s.ListComments(ctx, noteID)
	}, onSnapshot, onError)
}

// SubscribeShared opens the "shared with me" live query.
func (s *Store) SubscribeShared(ctx context.Context, identity core.Identity, onSnapshot func([]core.Note), onError func(error)) (core.CancelFunc, error) {
	return subscribeLive(ctx, s, func() ([]core.Note, error) {
		return s.sharedSnapshot(ctx, identity)
	}, onSnapshot, onError)
}

func subscribeLive[T any](ctx context.Context, s *Store, compute func() ([]T, error), push func([]T), onError func(error)) (core.CancelFunc, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}

	listener := pq.NewListener(s.dsn, listenerMinReconnect, listenerMaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Debug("listener event", "event", ev, "error", err)
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		_ = listener.Close()
		return nil, err
	}

	var mu sync.Mutex
	var last []byte
	emit := func() {
		snapshot, err := compute()
		if err != nil {
			onError(err)
			return
		}
		sig, err := json.Marshal(snapshot)
		if err != nil {
			onError(err)
			return
		}
		mu.Lock()
		if last != nil && bytes.Equal(last, sig) {
			mu.Unlock()
			return
		}
		last = sig
		mu.Unlock()
		push(snapshot)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.listenerStarted()
	lifecycle.Go(runCtx, func(ctx context.Context) error {
		defer s.listenerStopped()
		emit()
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-listener.Notify:
				if !ok {
					return nil
				}
				emit()
			case <-time.After(listenerPingInterval):
				// Keep the connection honest across silent reconnects.
				if err := listener.Ping(); err != nil {
					s.logger.Debug("listener ping failed", "error", err)
				}
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("live query listener failed", "error", err)
		if s.config.ErrorHandler != nil {
			s.config.ErrorHandler(err)
		}
		onError(err)
	}))

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = listener.Close()
		})
	}, nil
}

// matchURL accepts an exact URL or a doublestar pattern. Kept identical in
// semantics across adapters.
func matchURL(pattern, url string) bool {
	if pattern == "" || pattern == url {
		return true
	}
	ok, err := doublestar.Match(pattern, url)
	return err == nil && ok
}
