package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"foundation_site/internal/domain"
	"foundation_site/internal/resource"
	"foundation_site/internal/storage"
)

const tableBlogPosts = "blog_posts"

type BlogService struct {
	base
	posts  *resource.Resource[domain.BlogPost]
	cache  *resource.Cache
	ids    domain.IDGenerator
	blocks *blockEditor[domain.BlogPost]
}

func NewBlogService(gateway Gateway, cache *resource.Cache, notifier Notifier, logger *slog.Logger, opts ...resource.Option) *BlogService {
	s := &BlogService{
		base:  newBase(notifier, logger, tableBlogPosts),
		posts: resource.New[domain.BlogPost](tableBlogPosts, gateway, cache, logger, opts...),
		cache: cache,
		ids:   domain.UUIDGenerator{},
	}
	s.blocks = &blockEditor[domain.BlogPost]{
		res:     s.posts,
		content: func(p domain.BlogPost) domain.Document { return p.Content },
		ids:     idsFunc(func() string { return s.ids.NewID() }),
		now:     func() time.Time { return s.now() },
	}
	return s
}

func (s *BlogService) List(ctx context.Context, opts ListOptions) ([]domain.BlogPost, error) {
	return s.posts.List(ctx, opts.query())
}

// ListPublished returns published posts, newest publication first.
func (s *BlogService) ListPublished(ctx context.Context, limit, offset int) ([]domain.BlogPost, error) {
	q := storage.Query{}.
		Where("status", domain.StatusPublished).
		OrderBy("published_at", true).
		Page(limit, offset)
	return s.posts.List(ctx, q)
}

func (s *BlogService) Get(ctx context.Context, id string) (domain.BlogPost, error) {
	return s.posts.Get(ctx, id)
}

func (s *BlogService) GetBySlug(ctx context.Context, slug string) (domain.BlogPost, error) {
	if !domain.ValidSlug(slug) {
		return domain.BlogPost{}, fmt.Errorf("blog post %q: %w", slug, domain.ErrNotFound)
	}
	return s.posts.First(ctx, storage.Query{}.Where("slug", slug))
}

func (s *BlogService) Create(ctx context.Context, actor *domain.Actor, in domain.BlogPostInput) (string, error) {
	var id string
	op := operation{resource: tableBlogPosts, action: "create", done: "Post created", cap: domain.CapBlogsWrite}
	err := s.run(ctx, actor, op, func(ctx context.Context) error {
		if err := validateInput(in); err != nil {
			return err
		}
		values, err := s.values(&in, "", nil)
		if err != nil {
			return err
		}
		id, err = s.posts.Create(ctx, values)
		return err
	})
	return id, err
}

// Update replaces every field of the post, content included. published_at
// is stamped the first time the post becomes published.
func (s *BlogService) Update(ctx context.Context, actor *domain.Actor, id string, in domain.BlogPostInput) error {
	op := operation{resource: tableBlogPosts, action: "update", done: "Post updated", cap: domain.CapBlogsWrite}
	return s.run(ctx, actor, op, func(ctx context.Context) error {
		if err := validateInput(in); err != nil {
			return err
		}
		if err := checkSlug(in.Slug); err != nil {
			return err
		}
		current, err := s.posts.Get(ctx, id)
		if err != nil {
			return err
		}
		keep := ""
		if in.Title == current.Title {
			keep = current.Slug
		}
		values, err := s.values(&in, keep, current.PublishedAt)
		if err != nil {
			return err
		}
		values["updated_at"] = s.now()
		return s.posts.Update(ctx, id, values)
	})
}

func (s *BlogService) values(in *domain.BlogPostInput, keepSlug string, publishedAt *time.Time) (storage.Values, error) {
	slug, err := resolveSlug(in.Slug, keepSlug, in.Title)
	if err != nil {
		return nil, err
	}
	in.Slug = slug
	if in.Status == "" {
		in.Status = domain.StatusDraft
	}
	if err := in.Content.Validate(); err != nil {
		return nil, err
	}

	values := in.Values()
	if in.Status == domain.StatusPublished && publishedAt == nil {
		now := s.now().UTC()
		values["published_at"] = &now
	}
	return values, nil
}

// Delete removes the post. Its comments are removed by the store, so cached
// comment reads are discarded too.
func (s *BlogService) Delete(ctx context.Context, actor *domain.Actor, id string) error {
	op := operation{resource: tableBlogPosts, action: "delete", done: "Post deleted", cap: domain.CapBlogsWrite}
	return s.run(ctx, actor, op, func(ctx context.Context) error {
		if err := s.posts.Remove(ctx, id); err != nil {
			return err
		}
		s.cache.Invalidate(tableComments)
		return nil
	})
}

// IncrementViews counts one public read of the post. The store adds to the
// counter itself, so concurrent readers are all counted.
func (s *BlogService) IncrementViews(ctx context.Context, id string) error {
	if _, err := s.posts.Increment(ctx, id, "views", 1); err != nil {
		s.logger.Warn("view count not updated", "id", id, "error", err)
		return err
	}
	return nil
}

func (s *BlogService) AddBlock(ctx context.Context, actor *domain.Actor, postID string, t domain.BlockType) (domain.Block, error) {
	var b domain.Block
	op := operation{resource: tableBlogPosts, action: "add_block", done: "Block added", cap: domain.CapBlogsWrite}
	err := s.run(ctx, actor, op, func(ctx context.Context) error {
		var err error
		b, err = s.blocks.add(ctx, postID, t)
		return err
	})
	return b, err
}

func (s *BlogService) UpdateBlock(ctx context.Context, actor *domain.Actor, postID, blockID string, patch map[string]any) (domain.Block, error) {
	var b domain.Block
	op := operation{resource: tableBlogPosts, action: "update_block", done: "Block updated", cap: domain.CapBlogsWrite}
	err := s.run(ctx, actor, op, func(ctx context.Context) error {
		var err error
		b, err = s.blocks.update(ctx, postID, blockID, patch)
		return err
	})
	return b, err
}

func (s *BlogService) RemoveBlock(ctx context.Context, actor *domain.Actor, postID, blockID string) error {
	op := operation{resource: tableBlogPosts, action: "remove_block", done: "Block removed", cap: domain.CapBlogsWrite}
	return s.run(ctx, actor, op, func(ctx context.Context) error {
		return s.blocks.remove(ctx, postID, blockID)
	})
}

func (s *BlogService) MoveBlock(ctx context.Context, actor *domain.Actor, postID, blockID string, to int) error {
	op := operation{resource: tableBlogPosts, action: "move_block", done: "Block moved", cap: domain.CapBlogsWrite}
	return s.run(ctx, actor, op, func(ctx context.Context) error {
		return s.blocks.move(ctx, postID, blockID, to)
	})
}
