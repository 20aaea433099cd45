package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"foundation_site/internal/domain"
	"foundation_site/internal/storage"
)

// Gateway is the persistence boundary a resource reads and writes through.
type Gateway interface {
	Select(ctx context.Context, table string, q storage.Query, dest any) error
	Insert(ctx context.Context, table string, values storage.Values) (string, error)
	Update(ctx context.Context, table, id string, patch storage.Values) error
	Delete(ctx context.Context, table, id string) error
	Increment(ctx context.Context, table, id, column string, by int) (int64, error)
}

// RetryPolicy controls how failed reads are retried.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
	}
}

// Backoff returns the delay before the given retry (1-based).
func (p RetryPolicy) Backoff(retry int) time.Duration {
	backoff := p.InitialBackoff
	for i := 1; i < retry; i++ {
		backoff *= 2
		if backoff >= p.MaxBackoff {
			break
		}
	}
	if backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}
	return backoff
}

type Option func(*options)

type options struct {
	retry RetryPolicy
	sleep func(ctx context.Context, d time.Duration) error
}

func WithRetry(p RetryPolicy) Option {
	return func(o *options) { o.retry = p }
}

// WithSleep replaces the wait between retries.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = sleep }
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Resource is the cached read model and mutation surface of one table.
type Resource[T any] struct {
	name    string
	gateway Gateway
	cache   *Cache
	retry   RetryPolicy
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger
}

func New[T any](name string, gateway Gateway, cache *Cache, logger *slog.Logger, opts ...Option) *Resource[T] {
	o := options{retry: DefaultRetryPolicy(), sleep: sleepContext}
	for _, opt := range opts {
		opt(&o)
	}
	return &Resource[T]{
		name:    name,
		gateway: gateway,
		cache:   cache,
		retry:   o.retry,
		sleep:   o.sleep,
		logger:  logger.With("resource", name),
	}
}

func (r *Resource[T]) Name() string {
	return r.name
}

// List returns the rows matched by q, from the cache when fresh.
func (r *Resource[T]) List(ctx context.Context, q storage.Query) ([]T, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	data, err := r.cache.load(ctx, r.name, q, func(ctx context.Context) (any, error) {
		return r.fetch(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(data.([]T)), nil
}

// Get returns the row with the given id.
func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if id == "" {
		return zero, domain.Invalid("id", "is required")
	}
	return r.First(ctx, rowQuery(id))
}

// First returns the first row matched by q or ErrNotFound.
func (r *Resource[T]) First(ctx context.Context, q storage.Query) (T, error) {
	var zero T
	rows, err := r.List(ctx, q.Page(1, 0))
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, fmt.Errorf("%s: %w", r.name, domain.ErrNotFound)
	}
	return rows[0], nil
}

func (r *Resource[T]) fetch(ctx context.Context, q storage.Query) ([]T, error) {
	var err error
	attempts := 0
	for {
		attempts++
		var rows []T
		err = r.gateway.Select(ctx, r.name, q, &rows)
		if err == nil {
			if rows == nil {
				rows = []T{}
			}
			return rows, nil
		}

		retry := attempts
		if errors.Is(err, context.Canceled) || !domain.Retryable(err) || retry > r.retry.MaxRetries {
			break
		}

		backoff := r.retry.Backoff(retry)
		r.logger.Warn("fetch failed, retrying",
			"attempt", attempts,
			"backoff", backoff,
			"error", err,
		)

		if err := r.sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}

	if attempts > 1 {
		return nil, fmt.Errorf("fetch %s after %d attempts: %w", r.name, attempts, err)
	}
	return nil, err
}

// Create inserts a record and revalidates the read model.
func (r *Resource[T]) Create(ctx context.Context, values storage.Values) (string, error) {
	if err := storage.ValidateValues(values); err != nil {
		return "", err
	}
	id, err := r.gateway.Insert(ctx, r.name, values)
	if err != nil {
		return "", err
	}
	r.Revalidate()
	return id, nil
}

// Update patches the row with the given id and revalidates the read model.
func (r *Resource[T]) Update(ctx context.Context, id string, patch storage.Values) error {
	if id == "" {
		return domain.Invalid("id", "is required")
	}
	if err := storage.ValidateValues(patch); err != nil {
		return err
	}
	if err := r.gateway.Update(ctx, r.name, id, patch); err != nil {
		return err
	}
	r.Revalidate()
	return nil
}

// Remove deletes the row with the given id and revalidates the read model.
func (r *Resource[T]) Remove(ctx context.Context, id string) error {
	if id == "" {
		return domain.Invalid("id", "is required")
	}
	if err := r.gateway.Delete(ctx, r.name, id); err != nil {
		return err
	}
	r.Revalidate()
	return nil
}

// Increment atomically adds by to a counter column of one row. Only the
// cached read of that row is dropped; lists keep their entries until they
// expire.
func (r *Resource[T]) Increment(ctx context.Context, id, column string, by int) (int64, error) {
	if id == "" {
		return 0, domain.Invalid("id", "is required")
	}
	value, err := r.gateway.Increment(ctx, r.name, id, column, by)
	if err != nil {
		return 0, err
	}
	r.cache.Forget(r.name, rowQuery(id))
	return value, nil
}

func rowQuery(id string) storage.Query {
	return storage.Query{}.Where("id", id).Page(1, 0)
}

// Revalidate discards every cached read of the resource.
func (r *Resource[T]) Revalidate() {
	r.cache.Invalidate(r.name)
}
