// seed bootstraps the first admin account and, optionally, a small demo
// data set. It is idempotent: existing rows are left alone.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts seedOptions
	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flagSet.StringVar(&opts.AdminName, "admin-name", "Administrator", "display name of the bootstrap admin")
	flagSet.StringVar(&opts.AdminEmail, "admin-email", "admin@helpdesk.local", "email of the bootstrap admin")
	flagSet.StringVar(&opts.AdminPassword, "admin-password", "", "password of the bootstrap admin (or SEED_ADMIN_PASSWORD)")
	flagSet.BoolVar(&opts.Demo, "demo", false, "also create a demo company, contact, staff and ticket")
	flagSet.StringVar(&opts.DemoPassword, "demo-password", "demo-password", "password for demo accounts")
	skipMigrations := flagSet.Bool("skip-migrations", false, "do not apply migrations before seeding")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.AdminPassword == "" {
		opts.AdminPassword = os.Getenv("SEED_ADMIN_PASSWORD")
	}
	if opts.AdminPassword == "" {
		return errors.New("--admin-password or SEED_ADMIN_PASSWORD is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()
	if !pg.Enabled() {
		return errors.New("POSTGRES_DSN is required for seeding")
	}
	if !*skipMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			return err
		}
	}

	repos := repository.NewPostgresSet(pg.PoolHandle(), logger)
	services := service.NewServices(*cfg, repos, service.Options{Logger: logger})
	report, err := seed(ctx, repos, services, cfg.Auth.BcryptCost, opts)
	if err != nil {
		return err
	}
	logger.Info("seed complete",
		zap.Strings("created", report.Created),
		zap.Strings("skipped", report.Skipped))
	return nil
}
