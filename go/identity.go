package orderserver

import (
	"strings"

	"github.com/gin-gonic/gin"

	apierrors "github.com/Apurer/bookshop-order-service/internal/shared/errors"
)

// DefaultIdentityHeader carries the subject authenticated by the edge proxy.
const DefaultIdentityHeader = "X-Auth-Subject"

const subjectContextKey = "orders.subject"

// RequireSubject rejects requests that arrive without an authenticated subject in header.
func RequireSubject(header string) gin.HandlerFunc {
	if strings.TrimSpace(header) == "" {
		header = DefaultIdentityHeader
	}
	return func(c *gin.Context) {
		subject := strings.TrimSpace(c.GetHeader(header))
		if subject == "" {
			respondProblem(c, apierrors.ErrUnauthorized.WithDetail("missing "+header+" header"))
			return
		}
		c.Set(subjectContextKey, subject)
		c.Next()
	}
}

// SubjectFromContext returns the subject stored by RequireSubject.
func SubjectFromContext(c *gin.Context) (string, bool) {
	subject := c.GetString(subjectContextKey)
	return subject, subject != ""
}
