package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"foundation_site/internal/domain"
)

const (
	actorKey      = "actor"
	viaCookieKey  = "via_cookie"
	sessionCookie = "session"
	bearerPrefix  = "Bearer "
)

// requestLogger writes one log line per request, at a level chosen by the
// response status.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"body_size", c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.Errors())
		}

		switch {
		case status >= 500:
			logger.Error("http request", attrs...)
		case status >= 400:
			logger.Warn("http request", attrs...)
		default:
			logger.Info("http request", attrs...)
		}
	}
}

func recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered",
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"panic", rec,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}

// authenticate attaches the actor of the request when a session token is
// presented. Requests without a token continue anonymously; the services
// reject them where a role is required.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, fromCookie := sessionToken(c)
		if token == "" {
			c.Next()
			return
		}

		identity, err := s.verifier.Verify(token)
		if err != nil {
			s.abort(c, err)
			return
		}
		actor, err := s.actors.ResolveActor(c.Request.Context(), identity.UserID)
		if err != nil {
			s.abort(c, err)
			return
		}
		if actor.Email == "" {
			actor.Email = identity.Email
		}

		c.Set(actorKey, actor)
		c.Set(viaCookieKey, fromCookie)
		c.Next()
	}
}

// sessionToken returns the presented token and whether it came from the
// session cookie.
func sessionToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		// a header without the Bearer prefix is passed on whole and fails
		// verification
		token, _ := strings.CutPrefix(header, bearerPrefix)
		return strings.TrimSpace(token), false
	}
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		return cookie, true
	}
	return "", false
}

// sameOrigin refuses state-changing requests authenticated by the session
// cookie unless their Origin (or, failing that, Referer) is this site or an
// allowed origin. Bearer-token requests are not subject to it.
func (s *Server) sameOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if !c.GetBool(viaCookieKey) || s.trustedOrigin(c.Request) {
			c.Next()
			return
		}

		err := fmt.Errorf("cross-site request refused: %w", domain.ErrForbidden)
		if strings.HasPrefix(c.Request.URL.Path, "/admin/") {
			s.pageError(c, err)
			return
		}
		s.abort(c, err)
	}
}

func (s *Server) trustedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = r.Header.Get("Referer")
	}
	if origin == "" || origin == "null" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	site := u.Scheme + "://" + u.Host
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.EqualFold(strings.TrimRight(allowed, "/"), site) {
			return true
		}
	}
	return false
}

// actorFrom returns the authenticated actor or nil.
func actorFrom(c *gin.Context) *domain.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(*domain.Actor); ok {
			return actor
		}
	}
	return nil
}
