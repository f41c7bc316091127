package gateware

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// ProblemContentType is the media type for problem documents, per RFC 7807.
const ProblemContentType = "application/problem+json"

// Problem is the machine-readable body sent on denied requests.
type Problem struct {
	Status   int    `json:"status"`
	Title    string `json:"title"`
	Detail   string `json:"detail,omitempty"`
	Code     string `json:"code,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// RenderProblem writes a problem document with the proper content type.
func RenderProblem(c router.Context, p Problem) error {
	c.SetHeader("Content-Type", ProblemContentType)
	return c.JSON(p.Status, p)
}

// DefaultErrorHandler translates gate errors into problem documents. Missing
// or unverifiable tokens become 401, role failures 403, and anything else a
// generic 401 so the response never leaks validation internals.
func DefaultErrorHandler(logger Logger) router.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return func(c router.Context, err error) error {
		p := problemFromError(c, err)

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			logger.Info(
				"request rejected: status=%d code=%s path=%s details=%s",
				p.Status, p.Code, c.Path(), print.MaybePrettyJSON(richErr.Metadata),
			)
		} else {
			logger.Info("request rejected: status=%d path=%s", p.Status, c.Path())
		}

		return RenderProblem(c, p)
	}
}

func problemFromError(c router.Context, err error) Problem {
	if errors.Is(err, ErrTokenMissing) {
		return Problem{
			Status:   router.StatusUnauthorized,
			Title:    "Authentication required",
			Detail:   "A bearer token is required to access this resource.",
			Code:     "MISSING_AUTHENTICATION",
			Instance: c.Path(),
		}
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return Problem{
			Status:   router.StatusUnauthorized,
			Title:    "Invalid or expired token",
			Instance: c.Path(),
		}
	}

	status := router.StatusUnauthorized
	title := "Invalid or expired token"
	if richErr.Category == goerrors.CategoryAuthz || richErr.Code == goerrors.CodeForbidden {
		status = router.StatusForbidden
		title = defaultDeniedRouteTitle
	}

	return Problem{
		Status:   status,
		Title:    title,
		Detail:   richErr.Message,
		Code:     richErr.TextCode,
		Instance: c.Path(),
	}
}

// Logger matches the root package logger so callers can share one instance.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] GATE "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] GATE "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] GATE "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] GATE "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
