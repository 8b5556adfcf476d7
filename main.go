package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	stripe "github.com/stripe/stripe-go/v80"

	"github.com/Im-Vestor/im-vestor-full-sub002/config"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/hypertrain"
	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
	"github.com/Im-Vestor/im-vestor-full-sub002/migrations"
	"github.com/Im-Vestor/im-vestor-full-sub002/seed"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "imvestor",
		Short:        "Im-Vestor API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(hypertrainCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads and validates config, sets up logging and opens the database.
func bootstrap() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logger); err != nil {
		return nil, fmt.Errorf("failed to initialise logger: %w", err)
	}
	if err := utils.ConnectDatabase(cfg.Database); err != nil {
		return nil, err
	}
	return cfg, nil
}

// installVendors points the process-wide clients at the configured vendors.
func installVendors(cfg *config.Config) (utils.SessionVerifier, error) {
	utils.TokenSecret = []byte(cfg.Tokens.Secret)
	stripe.Key = cfg.Stripe.SecretKey

	utils.Mail = utils.NewSMTPMailer(cfg.Email)
	utils.Clerk = utils.NewClerkClient(cfg.Clerk.APIURL, cfg.Clerk.SecretKey, nil)
	utils.Daily = utils.NewDailyClient(cfg.Daily.APIURL, cfg.Daily.APIKey)
	utils.Storage = utils.NewR2Storage(cfg.R2)
	utils.News = utils.NewCachedNews(
		utils.NewNotionClient(cfg.Notion.Token, cfg.Notion.DatabaseID),
		cfg.Notion.CacheTTL,
	)

	verifier, err := utils.NewClerkSessionVerifier(cfg.Clerk.JWTKey, cfg.Clerk.AuthorizedParties)
	if err != nil {
		return nil, fmt.Errorf("invalid CLERK_JWT_KEY: %w", err)
	}
	return verifier, nil
}

func serveCmd() *cobra.Command {
	var migrate bool
	var purgeEvery time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			defer utils.CloseDatabase(utils.DB)

			if migrate {
				if err := migrations.Migrate(utils.DB); err != nil {
					return err
				}
			}

			verifier, err := installVendors(cfg)
			if err != nil {
				return err
			}

			router, err := newRouter(cfg, verifier)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           router,
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go purgeLoop(ctx, purgeEvery)

			errCh := make(chan error, 1)
			go func() {
				logger.L().Info("api listening", "port", cfg.Port, "env", cfg.Env)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.L().Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "run schema migrations before serving")
	cmd.Flags().DurationVar(&purgeEvery, "purge-every", time.Hour, "interval between expired hypertrain purges, 0 disables")
	return cmd
}

func purgeLoop(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := hypertrain.Purge(utils.DB, time.Now().UTC())
			if err != nil {
				logger.L().Error("hypertrain purge failed", "error", err)
				continue
			}
			if n > 0 {
				logger.L().Info("purged expired hypertrain items", "count", n)
			}
		}
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := bootstrap(); err != nil {
				return err
			}
			defer utils.CloseDatabase(utils.DB)
			return migrations.Migrate(utils.DB)
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed reference data such as areas",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := bootstrap(); err != nil {
				return err
			}
			defer utils.CloseDatabase(utils.DB)
			return seed.SeedAreas(utils.DB)
		},
	}
}

func hypertrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hypertrain",
		Short: "Manage hypertrain placements",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired hypertrain items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := bootstrap(); err != nil {
				return err
			}
			defer utils.CloseDatabase(utils.DB)

			n, err := hypertrain.Purge(utils.DB, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired items\n", n)
			return nil
		},
	})
	return cmd
}
