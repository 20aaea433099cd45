package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"io"

	"foundation_site/internal/domain"
	"foundation_site/internal/storage"
)

type Gateway interface {
	Select(ctx context.Context, table string, q storage.Query, dest any) error
	Insert(ctx context.Context, table string, values storage.Values) (string, error)
	Update(ctx context.Context, table, id string, patch storage.Values) error
	Delete(ctx context.Context, table, id string) error
	Increment(ctx context.Context, table, id, column string, by int) (int64, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}
