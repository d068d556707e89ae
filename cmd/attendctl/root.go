package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"faceattend/internal/attendance"
	"faceattend/internal/config"
	"faceattend/internal/faceclient"
	"faceattend/internal/facematch"
	"faceattend/internal/store"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "attendctl",
		Short: "Operate the face attendance database",
		Long: `attendctl talks to the same database as the web server (DATABASE_URL)
and, for enrollment, to the face service (FACE_SERVICE_URL).

Settings are read from the environment; a .env file in the working
directory is loaded first when present.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// .env is optional
			_ = godotenv.Load()
		},
	}
	root.AddCommand(newEmployeeCmd(), newAdminCmd(), newReportCmd())
	return root
}

// openService builds the attendance service the same way the server does.
func openService(ctx context.Context) (*attendance.Service, *store.DB, error) {
	cfg := config.Load()
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	policy, err := facematch.ParsePolicy(cfg.MatchPolicy)
	if err != nil {
		return nil, nil, err
	}
	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	svc := attendance.NewService(
		attendance.NewRepository(db),
		faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip),
		facematch.NewMatcher(cfg.MatchTolerance, policy),
		attendance.Options{Location: loc, DedupWindow: cfg.ScanDedupWindow},
	)
	return svc, db, nil
}
