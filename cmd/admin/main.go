package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesikahq/patient-care-portal/internal/app"
	"github.com/mesikahq/patient-care-portal/internal/auth"
	"github.com/mesikahq/patient-care-portal/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	rootCmd := &cobra.Command{
		Use:          "admin",
		Short:        "Patient care portal administration",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(createStaffCmd())
	rootCmd.AddCommand(checkPasswordCmd())
	rootCmd.AddCommand(ensureIndexesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env bundles what every subcommand needs.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	stores *app.Stores
	auth   auth.Service
}

func open(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := app.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	auditService, err := app.NewAuditService(cfg, logger)
	if err != nil {
		stores.Close(ctx)
		return nil, err
	}

	return &env{
		cfg:    cfg,
		logger: logger,
		stores: stores,
		auth: auth.NewService(stores.Users, auditService, logger, auth.AuthServiceConfig{
			JWTSecret:   cfg.Auth.JWTSecret,
			TokenExpiry: cfg.Auth.TokenExpiry,
		}),
	}, nil
}

func (e *env) close(ctx context.Context) {
	if err := e.stores.Close(ctx); err != nil {
		e.logger.Warn("failed to close storage", zap.Error(err))
	}
	_ = e.logger.Sync()
}

func createStaffCmd() *cobra.Command {
	var username, email, password string
	var roles []string

	cmd := &cobra.Command{
		Use:   "create-staff",
		Short: "Create a staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			e, err := open(ctx)
			if err != nil {
				return err
			}
			defer e.close(ctx)

			if e.stores.Backend == config.BackendMemory {
				return fmt.Errorf("create-staff needs a persistent storage backend")
			}

			user, err := e.auth.Register(ctx, username, email, password, roles)
			if err != nil {
				return err
			}

			fmt.Printf("Created staff user:\n")
			fmt.Printf("ID: %s\n", user.ID)
			fmt.Printf("Username: %s\n", user.Username)
			fmt.Printf("Roles: %v\n", user.Roles)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "staff username")
	cmd.Flags().StringVar(&email, "email", "", "staff email")
	cmd.Flags().StringVar(&password, "password", "", "initial password (at least 8 characters)")
	cmd.Flags().StringSliceVar(&roles, "role", []string{auth.RoleAdmin}, "role to grant; repeat for several")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func checkPasswordCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "check-password",
		Short: "Verify a staff password against the stored hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			e, err := open(ctx)
			if err != nil {
				return err
			}
			defer e.close(ctx)

			if err := e.auth.CheckPassword(ctx, username, password); err != nil {
				return fmt.Errorf("password check failed for %s: %w", username, err)
			}
			fmt.Println("Password hash verified successfully")
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "staff username")
	cmd.Flags().StringVar(&password, "password", "", "password to verify")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func ensureIndexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-indexes",
		Short: "Create mongo indexes or apply postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			e, err := open(ctx)
			if err != nil {
				return err
			}
			defer e.close(ctx)

			if err := e.stores.EnsureIndexes(ctx); err != nil {
				return err
			}
			fmt.Printf("Storage ready (%s)\n", e.stores.Backend)
			return nil
		},
	}
}
