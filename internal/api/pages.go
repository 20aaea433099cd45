package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"foundation_site/internal/domain"
	"foundation_site/internal/render"
)

const htmlContentType = "text/html; charset=utf-8"

func (s *Server) html(c *gin.Context, mode render.Mode, page render.Page) {
	page.SiteName = s.cfg.SiteName
	page.Lang = s.cfg.Lang

	var buf bytes.Buffer
	if err := s.renderer.Page(&buf, mode, page); err != nil {
		s.pageError(c, fmt.Errorf("render page: %w", err))
		return
	}
	c.Data(http.StatusOK, htmlContentType, buf.Bytes())
}

func (s *Server) pageError(c *gin.Context, err error) {
	status := statusOf(err)
	_ = c.Error(err)
	c.Data(status, "text/plain; charset=utf-8", []byte(message(err, status)))
	c.Abort()
}

// Public pages

func (s *Server) projectPage(c *gin.Context) {
	project, err := s.svc.Projects.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err == nil && project.Status != domain.StatusPublished {
		err = fmt.Errorf("project %q: %w", project.Slug, domain.ErrNotFound)
	}
	if err != nil {
		s.pageError(c, err)
		return
	}

	s.html(c, render.Display, render.Page{
		Title:   project.Title,
		Lead:    project.Excerpt,
		Cover:   project.CoverImage,
		Content: project.Content,
	})
}

func (s *Server) blogPage(c *gin.Context) {
	ctx := c.Request.Context()
	post, err := s.svc.Blogs.GetBySlug(ctx, c.Param("slug"))
	if err == nil && post.Status != domain.StatusPublished {
		err = fmt.Errorf("post %q: %w", post.Slug, domain.ErrNotFound)
	}
	if err != nil {
		s.pageError(c, err)
		return
	}

	if err := s.svc.Blogs.IncrementViews(ctx, post.ID); err != nil {
		s.logger.Warn("count blog view", "post_id", post.ID, "error", err)
	}
	comments, err := s.svc.Comments.ListForPost(ctx, post.ID)
	if err != nil {
		s.logger.Warn("load blog comments", "post_id", post.ID, "error", err)
		comments = nil
	}

	s.html(c, render.Display, render.Page{
		Title:    post.Title,
		Lead:     post.Excerpt,
		Cover:    post.CoverImage,
		Content:  post.Content,
		Comments: comments,
	})
}

// Block editor

type editable struct {
	title string
	slug  string
	doc   domain.Document
}

type editTarget struct {
	blocks blockEditor
	cap    domain.Capability
	public string
	load   func(ctx context.Context, id string) (editable, error)
}

func (s *Server) editTarget(c *gin.Context) (editTarget, bool) {
	switch c.Param("kind") {
	case "projects":
		return editTarget{
			blocks: s.svc.Projects,
			cap:    domain.CapProjectsWrite,
			public: "/projects/",
			load: func(ctx context.Context, id string) (editable, error) {
				p, err := s.svc.Projects.Get(ctx, id)
				return editable{title: p.Title, slug: p.Slug, doc: p.Content}, err
			},
		}, true
	case "blogs":
		return editTarget{
			blocks: s.svc.Blogs,
			cap:    domain.CapBlogsWrite,
			public: "/blog/",
			load: func(ctx context.Context, id string) (editable, error) {
				p, err := s.svc.Blogs.Get(ctx, id)
				return editable{title: p.Title, slug: p.Slug, doc: p.Content}, err
			},
		}, true
	}
	s.pageError(c, fmt.Errorf("editor %q: %w", c.Param("kind"), domain.ErrNotFound))
	return editTarget{}, false
}

func editorURL(c *gin.Context) string {
	return "/admin/" + c.Param("kind") + "/" + url.PathEscape(c.Param("id"))
}

func (s *Server) editor(c *gin.Context) {
	target, ok := s.editTarget(c)
	if !ok {
		return
	}
	if err := domain.Authorize(actorFrom(c), target.cap); err != nil {
		s.pageError(c, err)
		return
	}

	item, err := target.load(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.pageError(c, err)
		return
	}

	s.html(c, render.Edit, render.Page{
		Title:   item.title,
		Content: item.doc,
		Base:    editorURL(c),
		Back:    target.public + item.slug,
		Flash:   c.Query("flash"),
	})
}

// redirectToEditor sends the browser back to the editor with the outcome
// of a form post.
func (s *Server) redirectToEditor(c *gin.Context, err error, done, blockID string) {
	if err != nil && domain.IsAuthorization(err) {
		s.pageError(c, err)
		return
	}

	flash := done
	if err != nil {
		_ = c.Error(err)
		flash = "Error: " + message(err, statusOf(err))
	}
	location := editorURL(c) + "/edit?" + url.Values{"flash": {flash}}.Encode()
	if err == nil && blockID != "" {
		location += "#block-" + blockID
	}
	c.Redirect(http.StatusSeeOther, location)
}

func (s *Server) editorAddBlock(c *gin.Context) {
	target, ok := s.editTarget(c)
	if !ok {
		return
	}
	b, err := target.blocks.AddBlock(c.Request.Context(), actorFrom(c), c.Param("id"), domain.BlockType(c.PostForm("type")))
	s.redirectToEditor(c, err, "Block added", b.ID)
}

func (s *Server) editorSaveBlock(c *gin.Context) {
	target, ok := s.editTarget(c)
	if !ok {
		return
	}
	if err := c.Request.ParseForm(); err != nil {
		s.redirectToEditor(c, badRequest("form", err), "", "")
		return
	}
	patch, err := render.PatchFromForm(c.Request.PostForm)
	if err != nil {
		s.redirectToEditor(c, err, "", "")
		return
	}
	blockID := c.Param("blockId")
	_, err = target.blocks.UpdateBlock(c.Request.Context(), actorFrom(c), c.Param("id"), blockID, patch)
	s.redirectToEditor(c, err, "Block saved", blockID)
}

func (s *Server) editorRemoveBlock(c *gin.Context) {
	target, ok := s.editTarget(c)
	if !ok {
		return
	}
	err := target.blocks.RemoveBlock(c.Request.Context(), actorFrom(c), c.Param("id"), c.Param("blockId"))
	s.redirectToEditor(c, err, "Block removed", "")
}

func (s *Server) editorMoveBlock(c *gin.Context) {
	target, ok := s.editTarget(c)
	if !ok {
		return
	}
	to, err := strconv.Atoi(c.PostForm("to"))
	if err != nil {
		s.redirectToEditor(c, domain.Invalid("to", "must be an integer"), "", "")
		return
	}
	blockID := c.Param("blockId")
	err = target.blocks.MoveBlock(c.Request.Context(), actorFrom(c), c.Param("id"), blockID, to)
	s.redirectToEditor(c, err, "Block moved", blockID)
}
