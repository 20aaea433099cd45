package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"foundation_site/internal/domain"
	"foundation_site/internal/service"
)

func boolQuery(c *gin.Context, name string) (*bool, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, domain.Invalid(name, "must be true or false")
	}
	return &v, nil
}

// Comments

func (s *Server) listPostComments(c *gin.Context) {
	comments, err := s.svc.Comments.ListForPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (s *Server) submitComment(c *gin.Context) {
	var in domain.CommentInput
	if !s.bindJSON(c, &in) {
		return
	}
	id, err := s.svc.Comments.Submit(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) listComments(c *gin.Context) {
	f := service.CommentFilter{BlogID: c.Query("blog_id")}
	var err error
	if f.Approved, err = boolQuery(c, "approved"); err != nil {
		s.abort(c, err)
		return
	}
	if f.Published, err = boolQuery(c, "published"); err != nil {
		s.abort(c, err)
		return
	}

	comments, err := s.svc.Comments.List(c.Request.Context(), actorFrom(c), f)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

type moderateRequest struct {
	IsApproved  *bool `json:"is_approved"`
	IsPublished *bool `json:"is_published"`
}

// moderateComment applies approval first, then the publication change.
func (s *Server) moderateComment(c *gin.Context) {
	var req moderateRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if req.IsApproved == nil && req.IsPublished == nil {
		s.abort(c, domain.Invalid("body", "is_approved or is_published is required"))
		return
	}
	if req.IsApproved != nil && !*req.IsApproved {
		s.abort(c, domain.Invalid("is_approved", "approval cannot be withdrawn"))
		return
	}

	ctx, actor, id := c.Request.Context(), actorFrom(c), c.Param("id")
	if req.IsApproved != nil {
		if err := s.svc.Comments.Approve(ctx, actor, id); err != nil {
			s.abort(c, err)
			return
		}
	}
	if req.IsPublished != nil {
		var err error
		if *req.IsPublished {
			err = s.svc.Comments.Publish(ctx, actor, id)
		} else {
			err = s.svc.Comments.Unpublish(ctx, actor, id)
		}
		if err != nil {
			s.abort(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteComment(c *gin.Context) {
	if err := s.svc.Comments.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Messages

func (s *Server) submitMessage(c *gin.Context) {
	var in domain.MessageInput
	if !s.bindJSON(c, &in) {
		return
	}
	id, err := s.svc.Messages.Submit(c.Request.Context(), in)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) listMessages(c *gin.Context) {
	unread, err := boolQuery(c, "unread")
	if err != nil {
		s.abort(c, err)
		return
	}
	messages, err := s.svc.Messages.List(c.Request.Context(), actorFrom(c), unread != nil && *unread)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (s *Server) getMessage(c *gin.Context) {
	msg, err := s.svc.Messages.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

type markRequest struct {
	IsRead *bool `json:"is_read"`
}

func (s *Server) markMessage(c *gin.Context) {
	var req markRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if req.IsRead == nil {
		s.abort(c, domain.Invalid("is_read", "is required"))
		return
	}
	if err := s.svc.Messages.MarkRead(c.Request.Context(), actorFrom(c), c.Param("id"), *req.IsRead); err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteMessage(c *gin.Context) {
	if err := s.svc.Messages.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Admins

func (s *Server) listAdmins(c *gin.Context) {
	admins, err := s.svc.Admins.List(c.Request.Context(), actorFrom(c))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, admins)
}

func (s *Server) createAdmin(c *gin.Context) {
	var in domain.AdminInput
	if !s.bindJSON(c, &in) {
		return
	}
	id, err := s.svc.Admins.Create(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type roleRequest struct {
	Role domain.Role `json:"role"`
}

func (s *Server) updateAdmin(c *gin.Context) {
	var req roleRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.svc.Admins.UpdateRole(c.Request.Context(), actorFrom(c), c.Param("id"), req.Role); err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteAdmin(c *gin.Context) {
	if err := s.svc.Admins.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Settings

func (s *Server) listSettings(c *gin.Context) {
	settings, err := s.svc.Settings.List(c.Request.Context())
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *Server) getSetting(c *gin.Context) {
	setting, err := s.svc.Settings.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, setting)
}

type settingRequest struct {
	Key   string           `json:"key"`
	Value domain.JSONValue `json:"value"`
}

func (s *Server) createSetting(c *gin.Context) {
	var req settingRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.svc.Settings.Set(c.Request.Context(), actorFrom(c), req.Key, req.Value); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": req.Key})
}

func (s *Server) putSetting(c *gin.Context) {
	var req settingRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.svc.Settings.Set(c.Request.Context(), actorFrom(c), c.Param("key"), req.Value); err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Notifications

func (s *Server) listNotifications(c *gin.Context) {
	if actorFrom(c) == nil {
		s.abort(c, domain.ErrUnauthenticated)
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		s.abort(c, err)
		return
	}
	items := []domain.Notification{}
	if s.feed != nil {
		items = s.feed.Recent(limit)
	}
	c.JSON(http.StatusOK, items)
}
