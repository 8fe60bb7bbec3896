package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/npclabs/storefront/internal/account"
	"github.com/npclabs/storefront/internal/audit"
	"github.com/npclabs/storefront/internal/clock"
	"github.com/npclabs/storefront/internal/config"
	"github.com/npclabs/storefront/internal/identity"
	"github.com/npclabs/storefront/internal/migration"
	"github.com/npclabs/storefront/internal/observability"
	"github.com/npclabs/storefront/internal/onboarding"
	"github.com/npclabs/storefront/internal/order"
	"github.com/npclabs/storefront/internal/partner"
	"github.com/npclabs/storefront/internal/payment"
	"github.com/npclabs/storefront/internal/product"
	"github.com/npclabs/storefront/internal/redis"
	"github.com/npclabs/storefront/internal/scheduler"
	"github.com/npclabs/storefront/internal/security/vault"
	"github.com/npclabs/storefront/internal/server"
	"github.com/npclabs/storefront/internal/subscription"
	"github.com/npclabs/storefront/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "storefront",
		Short:   "Storefront CLI",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newMigrateCmd(), newServeCmd(), newSchedulerCmd(), newAllCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run storefront database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the subscription expiry sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			runScheduler()
			return nil
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, then the API server and sweeper in one process",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			runMonolith()
			return nil
		},
	}
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runServe() {
	app := fx.New(append(coreModules(),
		redis.Module,
		server.Module,
	)...)
	app.Run()
}

func runScheduler() {
	app := fx.New(append(coreModules(),
		scheduler.Module,
		fx.Invoke(startScheduler),
	)...)
	app.Run()
}

func runMonolith() {
	app := fx.New(append(coreModules(),
		redis.Module,
		server.Module,
		scheduler.Module,
		fx.Invoke(startScheduler),
	)...)
	app.Run()
}

func coreModules() []fx.Option {
	return []fx.Option{
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		identity.Module,
		vault.Module,
		audit.Module,
		product.Module,
		order.Module,
		subscription.Module,
		account.Module,
		partner.Module,
		payment.Module,
		onboarding.Module,
	}
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}

func startScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunForever(context.Background())
			return nil
		},
	})
}
