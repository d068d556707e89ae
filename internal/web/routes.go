package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"faceattend/internal/auth"
	"faceattend/internal/httpmiddleware"
)

//go:embed templates/*.html
var templateFS embed.FS

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) bool

// RouterOptions carries the pieces of the router that vary per deployment.
type RouterOptions struct {
	AllowOrigins []string
	LoginLimiter *httpmiddleware.SimpleTokenBucket
	Health       map[string]HealthCheck
}

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

// NewRouter mounts every page and API route on a fresh engine.
func NewRouter(h *Handler, opts RouterOptions) (*gin.Engine, error) {
	tmpl, err := Templates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	if len(opts.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(securityHeaders())
	if h.metrics != nil {
		r.Use(h.metrics.GinMiddleware())
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
	r.SetHTMLTemplate(tmpl)

	r.GET("/healthz", healthz(opts.Health))

	r.GET("/", h.Index)
	r.POST("/process_scan", h.ProcessScan)

	r.GET("/login", h.LoginPage)
	login := []gin.HandlerFunc{h.Login}
	if opts.LoginLimiter != nil {
		login = append([]gin.HandlerFunc{opts.LoginLimiter.GinMiddleware()}, login...)
	}
	r.POST("/login", login...)

	admin := r.Group("/", auth.RequireAdmin(h.auth, "/login"))
	{
		admin.GET("/logout", h.Logout)
		admin.GET("/dashboard", h.Dashboard)
		admin.GET("/delete_employee/:id", h.DeleteEmployee)
		admin.GET("/download_report", h.DownloadReport)
	}

	return r, nil
}

func healthz(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		body := gin.H{"status": "ok"}
		status := http.StatusOK
		for name, check := range checks {
			ok := check(ctx)
			body[name] = ok
			if !ok {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}
		c.JSON(status, body)
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
