package changes

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"linkcore/internal/infra/objectstore"
	"linkcore/pkg/domain"
)

// Archive writes every event as a JSON object to an object store. Keys are
// prefix + UTC timestamp + sequence so a lexical listing replays events in
// publish order. Publish cannot fail the already-committed request, so write
// errors are logged.
type Archive struct {
	store  objectstore.Store
	prefix string
	logger *zap.Logger
	now    func() time.Time

	mu  sync.Mutex
	seq uint64
}

// ArchiveOption configures an Archive.
type ArchiveOption func(*Archive)

// WithArchiveClock overrides the timestamp source.
func WithArchiveClock(now func() time.Time) ArchiveOption {
	return func(a *Archive) { a.now = now }
}

// NewArchive returns an archive writing under prefix.
func NewArchive(store objectstore.Store, prefix string, logger *zap.Logger, opts ...ArchiveOption) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Archive{
		store:  store,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Publish stores event; failures are logged and swallowed.
func (a *Archive) Publish(ctx context.Context, event domain.ChangeEvent) {
	if _, err := a.Write(ctx, event); err != nil {
		a.logger.Error("archive change event", zap.Error(err))
	}
}

// Write stores event and returns the key it was written under.
func (a *Archive) Write(ctx context.Context, event domain.ChangeEvent) (string, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("encode change event: %w", err)
	}
	a.mu.Lock()
	n := a.seq
	a.seq++
	stamp := a.now().UTC().Format("20060102T150405.000000000Z")
	a.mu.Unlock()
	key := fmt.Sprintf("%s%s-%06d.json", a.prefix, stamp, n)
	err = a.store.Create(ctx, objectstore.Object{
		Key:         key,
		Body:        payload,
		ContentType: "application/json",
		Labels:      map[string]string{"methods": strings.Join(methods(event), ",")},
	})
	if err != nil {
		return "", fmt.Errorf("store change event %s: %w", key, err)
	}
	a.logger.Debug("change event archived", zap.String("key", key), zap.String("backend", string(a.store.Backend())))
	return key, nil
}

// Replay reads archived events back in key order.
func (a *Archive) Replay(ctx context.Context) ([]domain.ChangeEvent, error) {
	keys, err := a.store.Keys(ctx, a.prefix)
	if err != nil {
		return nil, fmt.Errorf("list change events: %w", err)
	}
	out := make([]domain.ChangeEvent, 0, len(keys))
	for _, key := range keys {
		event, err := a.read(ctx, key)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, nil
}

func (a *Archive) read(ctx context.Context, key string) (domain.ChangeEvent, error) {
	obj, err := a.store.Read(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read change event %s: %w", key, err)
	}
	var event domain.ChangeEvent
	if err := json.Unmarshal(obj.Body, &event); err != nil {
		return nil, fmt.Errorf("decode change event %s: %w", key, err)
	}
	return event, nil
}

func methods(event domain.ChangeEvent) []string {
	out := make([]string, 0, len(event))
	for m := range event {
		out = append(out, string(m))
	}
	sort.Strings(out)
	return out
}
