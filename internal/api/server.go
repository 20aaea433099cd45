// Package api exposes the back office over HTTP: a JSON API for every
// resource, the block editor pages and the public project and blog pages.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"foundation_site/internal/auth"
	"foundation_site/internal/domain"
	"foundation_site/internal/notify"
	"foundation_site/internal/render"
	"foundation_site/internal/service"
)

// TokenVerifier checks a session token and returns its identity.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// ActorResolver maps an authenticated identity to its back-office role.
type ActorResolver interface {
	ResolveActor(ctx context.Context, userID string) (*domain.Actor, error)
}

type Services struct {
	Projects *service.ProjectService
	Blogs    *service.BlogService
	Comments *service.CommentService
	Messages *service.MessageService
	Admins   *service.AdminService
	Settings *service.SettingService
}

type Config struct {
	SiteName string
	Lang     string
	// MaxUploadSize bounds multipart gallery uploads.
	MaxUploadSize int64
	// AllowedOrigins lists extra origins (scheme://host) whose cookie
	// authenticated writes are accepted besides the serving host.
	AllowedOrigins []string
}

type Server struct {
	cfg      Config
	svc      Services
	verifier TokenVerifier
	actors   ActorResolver
	renderer *render.Renderer
	feed     *notify.Feed
	logger   *slog.Logger
	engine   *gin.Engine
}

func New(cfg Config, svc Services, verifier TokenVerifier, renderer *render.Renderer, feed *notify.Feed, logger *slog.Logger) *Server {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 10 << 20
	}
	s := &Server{
		cfg:      cfg,
		svc:      svc,
		verifier: verifier,
		actors:   svc.Admins,
		renderer: renderer,
		feed:     feed,
		logger:   logger.With("component", "api"),
	}

	engine := gin.New()
	engine.Use(recovery(s.logger), requestLogger(s.logger), s.authenticate(), s.sameOrigin())
	s.engine = engine
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.engine.GET("/projects/:slug", s.projectPage)
	s.engine.GET("/blog/:slug", s.blogPage)

	api := s.engine.Group("/api")

	projects := api.Group("/projects")
	projects.GET("", s.listProjects)
	projects.POST("", s.createProject)
	projects.GET("/:id", s.getProject)
	projects.PUT("/:id", s.updateProject)
	projects.DELETE("/:id", s.deleteProject)
	projects.GET("/:id/images", s.listGallery)
	projects.POST("/:id/images", s.uploadImage)
	projects.DELETE("/:id/images/:imageId", s.removeImage)
	s.blockRoutes(projects, s.svc.Projects)

	blogs := api.Group("/blogs")
	blogs.GET("", s.listBlogs)
	blogs.POST("", s.createBlog)
	blogs.GET("/:id", s.getBlog)
	blogs.PUT("/:id", s.updateBlog)
	blogs.DELETE("/:id", s.deleteBlog)
	blogs.GET("/:id/comments", s.listPostComments)
	blogs.POST("/:id/comments", s.submitComment)
	s.blockRoutes(blogs, s.svc.Blogs)

	comments := api.Group("/comments")
	comments.GET("", s.listComments)
	comments.PUT("/:id", s.moderateComment)
	comments.DELETE("/:id", s.deleteComment)

	api.POST("/contact", s.submitMessage)
	messages := api.Group("/messages")
	messages.GET("", s.listMessages)
	messages.GET("/:id", s.getMessage)
	messages.PUT("/:id", s.markMessage)
	messages.DELETE("/:id", s.deleteMessage)

	admins := api.Group("/admins")
	admins.GET("", s.listAdmins)
	admins.POST("", s.createAdmin)
	admins.PUT("/:id", s.updateAdmin)
	admins.DELETE("/:id", s.deleteAdmin)

	settings := api.Group("/settings")
	settings.GET("", s.listSettings)
	settings.POST("", s.createSetting)
	settings.GET("/:key", s.getSetting)
	settings.PUT("/:key", s.putSetting)

	api.GET("/notifications", s.listNotifications)

	admin := s.engine.Group("/admin")
	admin.GET("/:kind/:id/edit", s.editor)
	admin.POST("/:kind/:id/blocks", s.editorAddBlock)
	admin.POST("/:kind/:id/blocks/:blockId", s.editorSaveBlock)
	admin.POST("/:kind/:id/blocks/:blockId/delete", s.editorRemoveBlock)
	admin.POST("/:kind/:id/blocks/:blockId/move", s.editorMoveBlock)
}
