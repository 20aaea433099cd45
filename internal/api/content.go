package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"foundation_site/internal/domain"
	"foundation_site/internal/service"
)

func listOptions(c *gin.Context) (service.ListOptions, error) {
	opts := service.ListOptions{
		Status: domain.Status(c.Query("status")),
		Search: c.Query("search"),
	}
	var err error
	if opts.Limit, err = intQuery(c, "limit"); err != nil {
		return opts, err
	}
	if opts.Offset, err = intQuery(c, "offset"); err != nil {
		return opts, err
	}
	return opts, nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.Invalid(name, "must be a non-negative integer")
	}
	return n, nil
}

// Projects

func (s *Server) listProjects(c *gin.Context) {
	ctx := c.Request.Context()
	if actorFrom(c) == nil {
		projects, err := s.svc.Projects.ListPublished(ctx)
		if err != nil {
			s.abort(c, err)
			return
		}
		c.JSON(http.StatusOK, projects)
		return
	}

	opts, err := listOptions(c)
	if err != nil {
		s.abort(c, err)
		return
	}
	projects, err := s.svc.Projects.List(ctx, opts)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (s *Server) getProject(c *gin.Context) {
	project, err := s.svc.Projects.Get(c.Request.Context(), c.Param("id"))
	if err == nil && !visible(c, project.Status) {
		err = domain.ErrNotFound
	}
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *Server) createProject(c *gin.Context) {
	var in domain.ProjectInput
	if !s.bindJSON(c, &in) {
		return
	}
	id, err := s.svc.Projects.Create(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) updateProject(c *gin.Context) {
	var in domain.ProjectInput
	if !s.bindJSON(c, &in) {
		return
	}
	if err := s.svc.Projects.Update(c.Request.Context(), actorFrom(c), c.Param("id"), in); err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteProject(c *gin.Context) {
	if err := s.svc.Projects.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listGallery(c *gin.Context) {
	ctx := c.Request.Context()
	project, err := s.svc.Projects.Get(ctx, c.Param("id"))
	if err != nil {
		s.abort(c, err)
		return
	}
	if !visible(c, project.Status) {
		s.abort(c, domain.ErrNotFound)
		return
	}
	images, err := s.svc.Projects.Gallery(ctx, project.ID)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, images)
}

func (s *Server) uploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadSize+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		s.abort(c, badRequest("file", err))
		return
	}
	if fh.Size > s.cfg.MaxUploadSize {
		s.abort(c, domain.Invalid("file", "exceeds %d bytes", s.cfg.MaxUploadSize))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.abort(c, badRequest("file", err))
		return
	}
	defer f.Close()

	img, err := s.svc.Projects.AddGalleryImage(c.Request.Context(), actorFrom(c), c.Param("id"), service.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Caption:     c.PostForm("caption"),
		Body:        f,
	})
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, img)
}

func (s *Server) removeImage(c *gin.Context) {
	if err := s.svc.Projects.RemoveGalleryImage(c.Request.Context(), actorFrom(c), c.Param("id"), c.Param("imageId")); err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Blogs

func (s *Server) listBlogs(c *gin.Context) {
	ctx := c.Request.Context()
	opts, err := listOptions(c)
	if err != nil {
		s.abort(c, err)
		return
	}

	var posts []domain.BlogPost
	if actorFrom(c) == nil {
		posts, err = s.svc.Blogs.ListPublished(ctx, opts.Limit, opts.Offset)
	} else {
		posts, err = s.svc.Blogs.List(ctx, opts)
	}
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (s *Server) getBlog(c *gin.Context) {
	post, err := s.svc.Blogs.Get(c.Request.Context(), c.Param("id"))
	if err == nil && !visible(c, post.Status) {
		err = domain.ErrNotFound
	}
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (s *Server) createBlog(c *gin.Context) {
	var in domain.BlogPostInput
	if !s.bindJSON(c, &in) {
		return
	}
	id, err := s.svc.Blogs.Create(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) updateBlog(c *gin.Context) {
	var in domain.BlogPostInput
	if !s.bindJSON(c, &in) {
		return
	}
	if err := s.svc.Blogs.Update(c.Request.Context(), actorFrom(c), c.Param("id"), in); err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteBlog(c *gin.Context) {
	if err := s.svc.Blogs.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// visible reports whether a record with status may be shown to the caller.
// Anonymous callers only see published records.
func visible(c *gin.Context, status domain.Status) bool {
	return actorFrom(c) != nil || status == domain.StatusPublished
}

// Blocks

type blockEditor interface {
	AddBlock(ctx context.Context, actor *domain.Actor, id string, t domain.BlockType) (domain.Block, error)
	UpdateBlock(ctx context.Context, actor *domain.Actor, id, blockID string, patch map[string]any) (domain.Block, error)
	RemoveBlock(ctx context.Context, actor *domain.Actor, id, blockID string) error
	MoveBlock(ctx context.Context, actor *domain.Actor, id, blockID string, to int) error
}

type addBlockRequest struct {
	Type domain.BlockType `json:"type"`
}

type moveBlockRequest struct {
	To *int `json:"to"`
}

func (s *Server) blockRoutes(g *gin.RouterGroup, editor blockEditor) {
	g.POST("/:id/blocks", func(c *gin.Context) {
		var req addBlockRequest
		if !s.bindJSON(c, &req) {
			return
		}
		b, err := editor.AddBlock(c.Request.Context(), actorFrom(c), c.Param("id"), req.Type)
		if err != nil {
			s.abort(c, err)
			return
		}
		c.JSON(http.StatusCreated, b)
	})

	g.PATCH("/:id/blocks/:blockId", func(c *gin.Context) {
		var patch map[string]any
		if !s.bindJSON(c, &patch) {
			return
		}
		b, err := editor.UpdateBlock(c.Request.Context(), actorFrom(c), c.Param("id"), c.Param("blockId"), patch)
		if err != nil {
			s.abort(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	})

	g.DELETE("/:id/blocks/:blockId", func(c *gin.Context) {
		if err := editor.RemoveBlock(c.Request.Context(), actorFrom(c), c.Param("id"), c.Param("blockId")); err != nil {
			s.abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	g.POST("/:id/blocks/:blockId/move", func(c *gin.Context) {
		var req moveBlockRequest
		if !s.bindJSON(c, &req) {
			return
		}
		if req.To == nil {
			s.abort(c, domain.Invalid("to", "is required"))
			return
		}
		if err := editor.MoveBlock(c.Request.Context(), actorFrom(c), c.Param("id"), c.Param("blockId"), *req.To); err != nil {
			s.abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}
