package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"faceattend/internal/auth"
	"faceattend/internal/config"
	"faceattend/internal/store"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage dashboard accounts",
	}

	passwd := &cobra.Command{
		Use:   "passwd",
		Short: "Create an admin or replace its password",
		Long: `Store a bcrypt hash for the given admin, creating the account if needed.
Without --password the password is read from the first line of stdin.

Examples:
  attendctl admin passwd --username admin
  echo "s3cret" | attendctl admin passwd --username ops`,
		Args: cobra.NoArgs,
		RunE: runAdminPasswd,
	}
	passwd.Flags().String("username", "admin", "Admin username")
	passwd.Flags().String("password", "", "New password (read from stdin when empty)")

	cmd.AddCommand(passwd)
	return cmd
}

func runAdminPasswd(cmd *cobra.Command, _ []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	if username == "" {
		return errors.New("username must not be empty")
	}
	if password == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return errors.New("password must not be empty")
	}

	ctx := context.Background()
	db, err := store.NewDB(ctx, config.Load().DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := auth.NewAdminRepository(db).SetPassword(ctx, username, password); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", username)
	return nil
}
