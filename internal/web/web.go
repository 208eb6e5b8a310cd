// Package web renders the server-side HTML pages.
package web

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"anoa.com/itdesk/internal/entity"
	"anoa.com/itdesk/internal/middleware"
	"anoa.com/itdesk/pkg/apperror"
	"anoa.com/itdesk/pkg/biztime"
	"anoa.com/itdesk/pkg/markdown"
	"anoa.com/itdesk/pkg/session"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

// LoadTemplates parses every page. Each page is addressed by its file name.
func LoadTemplates(renderer markdown.Renderer) (*template.Template, error) {
	tmpl, err := template.New("").Funcs(funcMap(renderer)).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return tmpl, nil
}

func funcMap(renderer markdown.Renderer) template.FuncMap {
	return template.FuncMap{
		"fmtTime": func(v any) string {
			switch t := v.(type) {
			case time.Time:
				return biztime.FormatOr(&t, "N/A")
			case *time.Time:
				return biztime.FormatOr(t, "N/A")
			default:
				return "N/A"
			}
		},
		"markdown": func(src string) template.HTML {
			out, err := renderer.ToHTMLSanitized(src)
			if err != nil {
				return template.HTML(template.HTMLEscapeString(src))
			}
			return template.HTML(out)
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"isAssigned": func(assignedTo *uint, id uint) bool {
			return assignedTo != nil && *assignedTo == id
		},
		"statusClass": func(status string) string {
			switch status {
			case entity.StatusOpen:
				return "primary"
			case entity.StatusInProgress:
				return "warning"
			case entity.StatusResolved:
				return "success"
			default:
				return "secondary"
			}
		},
		"priorityClass": func(priority string) string {
			switch priority {
			case entity.PriorityCritical:
				return "danger"
			case entity.PriorityHigh:
				return "warning"
			case entity.PriorityMedium:
				return "info"
			default:
				return "light"
			}
		},
		"toJSON": func(v any) template.JS {
			b, err := json.Marshal(v)
			if err != nil {
				return template.JS("null")
			}
			return template.JS(b)
		},
		"fieldError": func(errs any, field string) string {
			if m, ok := errs.(map[string]string); ok {
				return m[field]
			}
			return ""
		},
		"dict": func(pairs ...any) (map[string]any, error) {
			if len(pairs)%2 != 0 {
				return nil, fmt.Errorf("dict needs key/value pairs")
			}
			m := make(map[string]any, len(pairs)/2)
			for i := 0; i < len(pairs); i += 2 {
				key, ok := pairs[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict key %v is not a string", pairs[i])
				}
				m[key] = pairs[i+1]
			}
			return m, nil
		},
		"lower": strings.ToLower,
	}
}

// Render writes page name with the caller's identity and pending flashes.
func Render(c *gin.Context, code int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if identity, ok := middleware.CurrentIdentity(c); ok {
		data["Identity"] = identity
		data["CurrentUser"] = identity.User
		data["IsSuperAdmin"] = identity.User.IsSuperAdmin()
	}
	data["Flashes"] = session.PopFlashes(c)
	data["Statuses"] = entity.Statuses
	data["Categories"] = entity.Categories
	data["Priorities"] = entity.Priorities
	data["Year"] = biztime.ToDisplay(time.Now()).Year()
	c.HTML(code, name, data)
}

// Error renders the fallback page matching err. Internal errors are logged
// and never shown to the visitor.
func Error(c *gin.Context, err error) {
	switch code := apperror.MapErrorToStatus(err); code {
	case http.StatusNotFound:
		Render(c, code, "404.html", gin.H{"Title": "Page Not Found"})
	case http.StatusForbidden:
		Render(c, code, "403.html", gin.H{"Title": "Access Forbidden"})
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusConflict,
		http.StatusUnprocessableEntity, http.StatusTooManyRequests:
		session.AddFlash(c, session.FlashError, apperror.UserMessage(err, "The request could not be completed."))
		Redirect(c, "/")
	default:
		slog.Error("request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
		Render(c, http.StatusInternalServerError, "500.html", gin.H{"Title": "Server Error"})
	}
	c.Abort()
}

// Redirect sends the visitor to location after a form post or a gate check.
func Redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusFound, location)
}

// ParamID parses a positive numeric path parameter.
func ParamID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
