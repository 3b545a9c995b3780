// Command shiurctl runs ShiurFinder maintenance tasks against the configured
// store: imports, seeding, migrations, backups, feed publishing and admin
// accounts.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/shiurfinder/shiurfinder/cmd/shiurctl/ui"
	"github.com/shiurfinder/shiurfinder/internal/auth"
	"github.com/shiurfinder/shiurfinder/internal/backup"
	"github.com/shiurfinder/shiurfinder/internal/config"
	"github.com/shiurfinder/shiurfinder/internal/database"
	"github.com/shiurfinder/shiurfinder/internal/email"
	"github.com/shiurfinder/shiurfinder/internal/feed"
	"github.com/shiurfinder/shiurfinder/internal/importer"
	"github.com/shiurfinder/shiurfinder/internal/logging"
	"github.com/shiurfinder/shiurfinder/internal/seed"
	"github.com/shiurfinder/shiurfinder/internal/store"
)

// env is loaded once before any subcommand runs.
type env struct {
	cfg    *config.Config
	logger *logging.Logger
}

func main() {
	e := &env{}

	rootCmd := &cobra.Command{
		Use:           "shiurctl",
		Short:         "ShiurFinder maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			e.cfg = cfg
			e.logger = logging.NewLogger(cfg.Server.IsDevelopment())
			return nil
		},
	}

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import shiurim for one parasha from a CSV file",
		RunE:  e.runImport,
	}
	importCmd.Flags().String("parasha", "", "Parasha the shiurim belong to")
	importCmd.Flags().String("file", "", "CSV file with author|rabbi, title, link columns")
	_ = importCmd.MarkFlagRequired("parasha")
	_ = importCmd.MarkFlagRequired("file")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo rabbis and shiurim",
		RunE:  e.runSeed,
	}
	seedCmd.Flags().Bool("force", false, "Seed even when the store already has rabbis")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply migrations (postgres) or ensure indexes (mongo)",
		RunE:  e.runMigrate,
	}

	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Dump the configured database into BACKUP_DIR",
		RunE:  e.runBackup,
	}

	publishCmd := &cobra.Command{
		Use:   "publish-feed",
		Short: "Publish a user's favorites feed to the configured target",
		RunE:  e.runPublishFeed,
	}
	publishCmd.Flags().String("username", "", "User whose favorites are published")
	_ = publishCmd.MarkFlagRequired("username")

	createAdminCmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account (prompts for missing fields)",
		RunE:  e.runCreateAdmin,
	}
	createAdminCmd.Flags().String("username", "", "Username")
	createAdminCmd.Flags().String("email", "", "Email")
	createAdminCmd.Flags().String("password", "", "Password")

	promoteCmd := &cobra.Command{
		Use:   "promote <username|email>",
		Short: "Give an existing user the admin role",
		Args:  cobra.ExactArgs(1),
		RunE:  e.runPromote,
	}

	rootCmd.AddCommand(importCmd, seedCmd, migrateCmd, backupCmd, publishCmd, createAdminCmd, promoteCmd)

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

// withStore connects to the configured store, without the in-memory
// fallback the server uses, and closes it after fn.
func (e *env) withStore(ctx context.Context, fn func(store.Store) error) error {
	st, err := database.Connect(ctx, e.cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())
	return fn(st)
}

func (e *env) runImport(cmd *cobra.Command, args []string) error {
	parasha, _ := cmd.Flags().GetString("parasha")
	path, _ := cmd.Flags().GetString("file")

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return e.withStore(cmd.Context(), func(st store.Store) error {
		sum, err := importer.NewService(st, e.logger).Import(cmd.Context(), f, parasha)
		if err != nil {
			return err
		}
		ui.PrintSuccess(sum.Message)
		ui.PrintDetail("skipped", sum.Skipped)
		ui.PrintDetail("rabbis", sum.RabbisCreated)
		return nil
	})
}

func (e *env) runSeed(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	return e.withStore(cmd.Context(), func(st store.Store) error {
		if !force {
			n, err := st.CountRabbis(cmd.Context())
			if err != nil {
				return err
			}
			if n > 0 {
				ui.PrintDetail("skipped", fmt.Sprintf("store already has %d rabbis, use --force", n))
				return nil
			}
		}

		res, err := seed.Demo(cmd.Context(), st, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
		if err != nil {
			return err
		}
		ui.PrintSuccess("Demo data loaded")
		ui.PrintDetail("rabbis", res.Rabbis)
		ui.PrintDetail("shiurim", res.Shiurim)
		return nil
	})
}

func (e *env) runMigrate(cmd *cobra.Command, args []string) error {
	return e.withStore(cmd.Context(), func(st store.Store) error {
		ui.PrintSuccess("Schema up to date")
		ui.PrintDetail("store", st.Name())
		return nil
	})
}

func (e *env) runBackup(cmd *cobra.Command, args []string) error {
	dir, err := backup.NewService(e.cfg.Store.Driver, e.cfg.Store, e.cfg.Backup, e.logger).Run(cmd.Context())
	if err != nil {
		return err
	}
	ui.PrintSuccess("Backup completed")
	ui.PrintDetail("directory", dir)
	return nil
}

func (e *env) runPublishFeed(cmd *cobra.Command, args []string) error {
	username, _ := cmd.Flags().GetString("username")

	publisher, err := feed.NewPublisher(cmd.Context(), e.cfg.Feed)
	if err != nil {
		return err
	}

	return e.withStore(cmd.Context(), func(st store.Store) error {
		resolver := feed.NewPageScraper(&http.Client{}, e.cfg.Feed.FetchTimeout)
		svc := feed.NewService(st, resolver, publisher, e.cfg.Feed, e.logger)
		if err := svc.PublishUserFeed(cmd.Context(), username); err != nil {
			return err
		}
		ui.PrintSuccess("Feed published")
		ui.PrintDetail("target", publisher.Name())
		ui.PrintDetail("path", e.cfg.Feed.Path)
		return nil
	})
}

func (e *env) authService(st store.Store) (*auth.Service, error) {
	tokens, err := auth.NewTokenService(e.cfg.Auth)
	if err != nil {
		return nil, err
	}
	return auth.NewService(
		st,
		tokens,
		email.NewService(e.cfg.Email),
		e.logger,
		e.cfg.Auth.TokenTTL,
		e.cfg.Auth.ResetTTL,
		e.cfg.Auth.AdminEmails,
	), nil
}

func (e *env) runCreateAdmin(cmd *cobra.Command, args []string) error {
	acct := &ui.AdminAccount{}
	acct.Username, _ = cmd.Flags().GetString("username")
	acct.Email, _ = cmd.Flags().GetString("email")
	acct.Password, _ = cmd.Flags().GetString("password")

	if !acct.Complete() {
		ui.PrintTitle("Create admin account")
		if err := ui.RunAdminForm(acct); err != nil {
			return fmt.Errorf("form cancelled: %w", err)
		}
	}

	return e.withStore(cmd.Context(), func(st store.Store) error {
		svc, err := e.authService(st)
		if err != nil {
			return err
		}

		res, err := svc.Signup(cmd.Context(), acct.Username, acct.Email, acct.Password)
		if err != nil {
			if errors.Is(err, auth.ErrUserExists) {
				return fmt.Errorf("%w, use promote for existing accounts", err)
			}
			return err
		}
		u, err := svc.Promote(cmd.Context(), res.User.Username)
		if err != nil {
			return err
		}

		ui.PrintSuccess("Admin account created")
		ui.PrintDetail("id", u.ID)
		ui.PrintDetail("username", u.Username)
		ui.PrintDetail("email", u.Email)
		return nil
	})
}

func (e *env) runPromote(cmd *cobra.Command, args []string) error {
	return e.withStore(cmd.Context(), func(st store.Store) error {
		svc, err := e.authService(st)
		if err != nil {
			return err
		}
		u, err := svc.Promote(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		ui.PrintSuccess("User promoted to admin")
		ui.PrintDetail("username", u.Username)
		return nil
	})
}
