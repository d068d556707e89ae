package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"faceattend/internal/attendance"
	"faceattend/internal/auth"
	"faceattend/internal/config"
	"faceattend/internal/faceclient"
	"faceattend/internal/facematch"
	"faceattend/internal/httpmiddleware"
	"faceattend/internal/metrics"
	"faceattend/internal/store"
	"faceattend/internal/web"
)

func main() {
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	policy, err := facematch.ParsePolicy(cfg.MatchPolicy)
	if err != nil {
		return err
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Printf("Database ready (%s)", db.Dialect)

	admins := auth.NewAdminRepository(db)
	created, err := admins.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return err
	}
	if created {
		log.Printf("Seeded admin account %q", cfg.AdminUsername)
	}
	if cfg.Production() && cfg.SessionSecret == "dev-session-secret-change" {
		log.Println("WARNING: SESSION_SECRET is the development default")
	}

	health := map[string]web.HealthCheck{"db": db.Healthy}

	var sessions auth.SessionStore
	switch cfg.SessionBackend {
	case "redis":
		rdb := store.NewRedis(cfg.RedisAddr)
		defer rdb.Close()
		sessions = auth.NewRedisSessions(rdb.Client, "faceattend:")
		health["redis"] = rdb.Healthy
		log.Printf("Sessions stored in redis at %s", cfg.RedisAddr)
	default:
		sessions = auth.NewMemorySessions()
		log.Println("Sessions stored in memory")
	}
	mgr := auth.NewManager(admins, sessions, cfg.SessionSecret, cfg.SessionTTL)

	fc := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)
	if cfg.FaceSkip {
		log.Println("WARNING: FACE_SKIP set, every scan matches a zero template")
	} else {
		log.Printf("Face service: %s", cfg.FaceServiceURL)
		health["face_service"] = func(ctx context.Context) bool { return fc.Health(ctx) == nil }
	}

	matcher := facematch.NewMatcher(cfg.MatchTolerance, policy)
	svc := attendance.NewService(attendance.NewRepository(db), fc, matcher, attendance.Options{
		Location:    loc,
		DedupWindow: cfg.ScanDedupWindow,
	})
	log.Printf("Matching with tolerance %.2f, policy %s, zone %s", matcher.Tolerance(), matcher.Policy(), loc)

	h := web.New(svc, mgr, metrics.New(), cfg.CookieSecure)
	r, err := web.NewRouter(h, web.RouterOptions{
		AllowOrigins: cfg.CORSOrigins,
		LoginLimiter: httpmiddleware.NewSimpleTokenBucket(cfg.LoginRatePerMin, cfg.LoginRatePerMin),
		Health:       health,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}
