package service

import (
	"context"
	"time"

	"foundation_site/internal/domain"
	"foundation_site/internal/resource"
	"foundation_site/internal/storage"
)

// blockEditor applies document operations to the content column of a
// resource: load, transform, write the whole document back.
type blockEditor[T any] struct {
	res     *resource.Resource[T]
	content func(T) domain.Document
	ids     domain.IDGenerator
	now     func() time.Time
}

func (e *blockEditor[T]) edit(ctx context.Context, id string, fn func(domain.Document) (domain.Document, error)) (domain.Document, error) {
	item, err := e.res.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	doc, err := fn(e.content(item))
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	if err := e.res.Update(ctx, id, storage.Values{"content": doc, "updated_at": e.now()}); err != nil {
		return nil, err
	}
	return doc, nil
}

func (e *blockEditor[T]) add(ctx context.Context, id string, t domain.BlockType) (domain.Block, error) {
	var added domain.Block
	_, err := e.edit(ctx, id, func(doc domain.Document) (domain.Document, error) {
		next, b, err := doc.Add(t, e.ids)
		added = b
		return next, err
	})
	return added, err
}

func (e *blockEditor[T]) update(ctx context.Context, id, blockID string, patch map[string]any) (domain.Block, error) {
	doc, err := e.edit(ctx, id, func(doc domain.Document) (domain.Document, error) {
		return doc.Update(blockID, patch)
	})
	if err != nil {
		return domain.Block{}, err
	}
	b, _, _ := doc.Find(blockID)
	return b, nil
}

func (e *blockEditor[T]) remove(ctx context.Context, id, blockID string) error {
	_, err := e.edit(ctx, id, func(doc domain.Document) (domain.Document, error) {
		return doc.Remove(blockID)
	})
	return err
}

func (e *blockEditor[T]) move(ctx context.Context, id, blockID string, to int) error {
	_, err := e.edit(ctx, id, func(doc domain.Document) (domain.Document, error) {
		return doc.Move(blockID, to)
	})
	return err
}
