package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"foundation_site/internal/domain"
)

// statusOf maps an error kind to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConstraint):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// message is the error text shown to clients. Internal failures are not
// described.
func message(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

func (s *Server) abort(c *gin.Context, err error) {
	status := statusOf(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": message(err, status)})
}

// bindJSON decodes an application/json body into v. It aborts the request and
// returns false on any other content type or a malformed body.
func (s *Server) bindJSON(c *gin.Context, v any) bool {
	if c.ContentType() != binding.MIMEJSON {
		_ = c.Error(errors.New("unsupported content type " + c.ContentType()))
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{"error": "content type must be application/json"})
		return false
	}
	if err := c.ShouldBindJSON(v); err != nil {
		s.abort(c, badRequest("body", err))
		return false
	}
	return true
}

func badRequest(field string, err error) error {
	return domain.Invalid(field, "%v", err)
}
