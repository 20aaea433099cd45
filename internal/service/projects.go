package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"foundation_site/internal/domain"
	"foundation_site/internal/resource"
	"foundation_site/internal/storage"
)

const (
	tableProjects      = "projects"
	tableProjectImages = "project_images"
)

// ListOptions narrows a list of projects or blog posts.
type ListOptions struct {
	Status domain.Status
	Search string
	Limit  int
	Offset int
}

func (o ListOptions) query() storage.Query {
	q := storage.Query{}
	if o.Status != "" {
		q = q.Where("status", o.Status)
	}
	if s := strings.TrimSpace(o.Search); s != "" {
		q = q.Filter("title", storage.OpILike, "%"+s+"%")
	}
	return q.Page(o.Limit, o.Offset)
}

// Upload is an image posted to a project gallery.
type Upload struct {
	Filename    string    `json:"filename" validate:"required"`
	ContentType string    `json:"content_type" validate:"required,startswith=image/"`
	Size        int64     `json:"size" validate:"gt=0"`
	Caption     string    `json:"caption" validate:"max=300"`
	Body        io.Reader `json:"-"`
}

type ProjectService struct {
	base
	projects *resource.Resource[domain.Project]
	images   *resource.Resource[domain.ProjectImage]
	objects  ObjectStore
	ids      domain.IDGenerator
	blocks   *blockEditor[domain.Project]
}

func NewProjectService(
	gateway Gateway,
	cache *resource.Cache,
	objects ObjectStore,
	notifier Notifier,
	logger *slog.Logger,
	opts ...resource.Option,
) *ProjectService {
	s := &ProjectService{
		base:     newBase(notifier, logger, tableProjects),
		projects: resource.New[domain.Project](tableProjects, gateway, cache, logger, opts...),
		images:   resource.New[domain.ProjectImage](tableProjectImages, gateway, cache, logger, opts...),
		objects:  objects,
		ids:      domain.UUIDGenerator{},
	}
	s.blocks = &blockEditor[domain.Project]{
		res:     s.projects,
		content: func(p domain.Project) domain.Document { return p.Content },
		ids:     idsFunc(func() string { return s.ids.NewID() }),
		now:     func() time.Time { return s.now() },
	}
	return s
}

type idsFunc func() string

func (f idsFunc) NewID() string { return f() }

func (s *ProjectService) List(ctx context.Context, opts ListOptions) ([]domain.Project, error) {
	return s.projects.List(ctx, opts.query())
}

// ListPublished returns the projects shown on the public site.
func (s *ProjectService) ListPublished(ctx context.Context) ([]domain.Project, error) {
	return s.projects.List(ctx, storage.Query{}.Where("status", domain.StatusPublished))
}

func (s *ProjectService) Get(ctx context.Context, id string) (domain.Project, error) {
	return s.projects.Get(ctx, id)
}

func (s *ProjectService) GetBySlug(ctx context.Context, slug string) (domain.Project, error) {
	if !domain.ValidSlug(slug) {
		return domain.Project{}, fmt.Errorf("project %q: %w", slug, domain.ErrNotFound)
	}
	return s.projects.First(ctx, storage.Query{}.Where("slug", slug))
}

func (s *ProjectService) Create(ctx context.Context, actor *domain.Actor, in domain.ProjectInput) (string, error) {
	var id string
	op := operation{resource: tableProjects, action: "create", done: "Project created", cap: domain.CapProjectsWrite}
	err := s.run(ctx, actor, op, func(ctx context.Context) error {
		if err := validateInput(in); err != nil {
			return err
		}
		if err := s.prepare(&in, ""); err != nil {
			return err
		}
		var err error
		id, err = s.projects.Create(ctx, in.Values())
		return err
	})
	return id, err
}

// Update replaces every field of the project, content included. An empty
// slug is re-derived from the title when the title changed.
func (s *ProjectService) Update(ctx context.Context, actor *domain.Actor, id string, in domain.ProjectInput) error {
	op := operation{resource: tableProjects, action: "update", done: "Project updated", cap: domain.CapProjectsWrite}
	return s.run(ctx, actor, op, func(ctx context.Context) error {
		if err := validateInput(in); err != nil {
			return err
		}
		if err := checkSlug(in.Slug); err != nil {
			return err
		}
		if err := checkDates(in); err != nil {
			return err
		}
		current, err := s.projects.Get(ctx, id)
		if err != nil {
			return err
		}
		keep := ""
		if in.Title == current.Title {
			keep = current.Slug
		}
		if err := s.prepare(&in, keep); err != nil {
			return err
		}
		values := in.Values()
		values["updated_at"] = s.now()
		return s.projects.Update(ctx, id, values)
	})
}

func (s *ProjectService) Delete(ctx context.Context, actor *domain.Actor, id string) error {
	op := operation{resource: tableProjects, action: "delete", done: "Project deleted", cap: domain.CapProjectsWrite}
	return s.run(ctx, actor, op, func(ctx context.Context) error {
		if err := s.projects.Remove(ctx, id); err != nil {
			return err
		}
		// gallery rows go with the project
		s.images.Revalidate()
		return nil
	})
}

// prepare fills the defaults of a validated input. keepSlug is used when no
// slug was given.
func (s *ProjectService) prepare(in *domain.ProjectInput, keepSlug string) error {
	slug, err := resolveSlug(in.Slug, keepSlug, in.Title)
	if err != nil {
		return err
	}
	in.Slug = slug
	if in.Status == "" {
		in.Status = domain.StatusDraft
	}
	if err := checkDates(*in); err != nil {
		return err
	}
	return in.Content.Validate()
}

func checkDates(in domain.ProjectInput) error {
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return domain.Invalid("end_date", "must not be before start_date")
	}
	return nil
}

// checkSlug rejects an explicitly given slug that is malformed. An empty
// slug is derived later.
func checkSlug(slug string) error {
	if slug != "" && !domain.ValidSlug(slug) {
		return errInvalidSlug
	}
	return nil
}

var errInvalidSlug = domain.Invalid("slug", "must contain only lowercase letters, digits and hyphens")

func resolveSlug(given, keep, title string) (string, error) {
	slug := given
	switch {
	case slug != "":
	case keep != "":
		slug = keep
	default:
		slug = domain.Slugify(title)
	}
	if !domain.ValidSlug(slug) {
		return "", errInvalidSlug
	}
	return slug, nil
}

// Gallery returns the images of a project in display order.
func (s *ProjectService) Gallery(ctx context.Context, projectID string) ([]domain.ProjectImage, error) {
	if projectID == "" {
		return nil, domain.Invalid("project_id", "is required")
	}
	q := storage.Query{}.Where("project_id", projectID).OrderBy("position", false)
	return s.images.List(ctx, q)
}

// AddGalleryImage stores the upload and records it in the gallery. The two
// steps are independent: when the row cannot be written the stored object is
// removed again.
func (s *ProjectService) AddGalleryImage(ctx context.Context, actor *domain.Actor, projectID string, up Upload) (domain.ProjectImage, error) {
	var img domain.ProjectImage
	op := operation{resource: tableProjectImages, action: "create", done: "Image added", cap: domain.CapProjectsWrite}
	err := s.run(ctx, actor, op, func(ctx context.Context) error {
		if s.objects == nil {
			return fmt.Errorf("gallery upload: object storage is not configured")
		}
		if err := validateInput(up); err != nil {
			return err
		}
		if up.Body == nil {
			return domain.Invalid("file", "is required")
		}

		if _, err := s.projects.Get(ctx, projectID); err != nil {
			return err
		}
		gallery, err := s.Gallery(ctx, projectID)
		if err != nil {
			return err
		}

		key := path.Join("projects", projectID, s.ids.NewID()+strings.ToLower(path.Ext(up.Filename)))
		url, err := s.objects.Put(ctx, key, up.ContentType, up.Body, up.Size)
		if err != nil {
			return fmt.Errorf("upload image: %w", err)
		}

		img = domain.ProjectImage{
			ProjectID: projectID,
			URL:       url,
			ObjectKey: key,
			Caption:   up.Caption,
			Position:  len(gallery),
		}
		id, err := s.images.Create(ctx, storage.Values{
			"project_id": img.ProjectID,
			"url":        img.URL,
			"object_key": img.ObjectKey,
			"caption":    img.Caption,
			"position":   img.Position,
		})
		if err != nil {
			s.logger.Error("gallery row insert failed, removing uploaded object",
				"project_id", projectID,
				"key", key,
				"error", err,
			)
			if derr := s.objects.Delete(context.WithoutCancel(ctx), key); derr != nil {
				s.logger.Error("remove orphaned object", "key", key, "error", derr)
			}
			return fmt.Errorf("record image: %w", err)
		}
		img.ID = id
		return nil
	})
	return img, err
}

// RemoveGalleryImage deletes the gallery row, then the stored object. A
// failure of the second step is reported as a warning.
// RemoveGalleryImage deletes an image of projectID. An image that belongs to
// another project is reported as not found.
func (s *ProjectService) RemoveGalleryImage(ctx context.Context, actor *domain.Actor, projectID, imageID string) error {
	var key string
	op := operation{resource: tableProjectImages, action: "delete", done: "Image removed", cap: domain.CapProjectsWrite}
	err := s.run(ctx, actor, op, func(ctx context.Context) error {
		img, err := s.images.Get(ctx, imageID)
		if err != nil {
			return err
		}
		if img.ProjectID != projectID {
			return fmt.Errorf("image %s of project %s: %w", imageID, projectID, domain.ErrNotFound)
		}
		key = img.ObjectKey
		return s.images.Remove(ctx, imageID)
	})
	if err != nil || key == "" || s.objects == nil {
		return err
	}

	if err := s.objects.Delete(ctx, key); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("stored image not removed", "key", key, "error", err)
		s.notify(ctx, domain.NotifyWarning, op, "Image file not removed", err.Error())
	}
	return nil
}

func (s *ProjectService) AddBlock(ctx context.Context, actor *domain.Actor, projectID string, t domain.BlockType) (domain.Block, error) {
	var b domain.Block
	op := operation{resource: tableProjects, action: "add_block", done: "Block added", cap: domain.CapProjectsWrite}
	err := s.run(ctx, actor, op, func(ctx context.Context) error {
		var err error
		b, err = s.blocks.add(ctx, projectID, t)
		return err
	})
	return b, err
}

func (s *ProjectService) UpdateBlock(ctx context.Context, actor *domain.Actor, projectID, blockID string, patch map[string]any) (domain.Block, error) {
	var b domain.Block
	op := operation{resource: tableProjects, action: "update_block", done: "Block updated", cap: domain.CapProjectsWrite}
	err := s.run(ctx, actor, op, func(ctx context.Context) error {
		var err error
		b, err = s.blocks.update(ctx, projectID, blockID, patch)
		return err
	})
	return b, err
}

func (s *ProjectService) RemoveBlock(ctx context.Context, actor *domain.Actor, projectID, blockID string) error {
	op := operation{resource: tableProjects, action: "remove_block", done: "Block removed", cap: domain.CapProjectsWrite}
	return s.run(ctx, actor, op, func(ctx context.Context) error {
		return s.blocks.remove(ctx, projectID, blockID)
	})
}

func (s *ProjectService) MoveBlock(ctx context.Context, actor *domain.Actor, projectID, blockID string, to int) error {
	op := operation{resource: tableProjects, action: "move_block", done: "Block moved", cap: domain.CapProjectsWrite}
	return s.run(ctx, actor, op, func(ctx context.Context) error {
		return s.blocks.move(ctx, projectID, blockID, to)
	})
}
