// Package notify delivers operation outcomes to their consumers: the log,
// the message broker and the recent-activity feed shown in the back office.
package notify

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"foundation_site/internal/domain"
)

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

type Publisher interface {
	Publish(ctx context.Context, n domain.Notification) error
}

// Fanout delivers every notification to each of its notifiers in order.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n domain.Notification) {
	for _, nt := range f {
		nt.Notify(ctx, n)
	}
}

// Log writes notifications as structured log lines.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With("component", "notify")}
}

func (l *Log) Notify(ctx context.Context, n domain.Notification) {
	level := slog.LevelInfo
	switch n.Kind {
	case domain.NotifyError:
		level = slog.LevelError
	case domain.NotifyWarning:
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, n.Title,
		"kind", n.Kind,
		"resource", n.Resource,
		"action", n.Action,
		"description", n.Description,
	)
}

// Broker publishes notifications. Publishing must not fail the operation
// that produced the notification, so errors are only logged.
type Broker struct {
	publisher Publisher
	timeout   time.Duration
	logger    *slog.Logger
}

func NewBroker(publisher Publisher, timeout time.Duration, logger *slog.Logger) *Broker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Broker{
		publisher: publisher,
		timeout:   timeout,
		logger:    logger.With("component", "notify"),
	}
}

func (b *Broker) Notify(ctx context.Context, n domain.Notification) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()

	if err := b.publisher.Publish(ctx, n); err != nil {
		b.logger.Warn("publish notification failed",
			"resource", n.Resource,
			"action", n.Action,
			"error", err,
		)
	}
}

// Feed keeps the most recent notifications in memory, newest first.
type Feed struct {
	mu    sync.Mutex
	items []domain.Notification
	size  int
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = 50
	}
	return &Feed{size: size}
}

func (f *Feed) Notify(_ context.Context, n domain.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = append(f.items, n)
	if len(f.items) > f.size {
		f.items = f.items[len(f.items)-f.size:]
	}
}

// Recent returns up to limit notifications, newest first.
func (f *Feed) Recent(limit int) []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := slices.Clone(f.items)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
