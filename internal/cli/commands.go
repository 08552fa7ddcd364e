package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"userStore/internal/config"
	"userStore/internal/db"
	grpcserver "userStore/internal/grpc"
	"userStore/internal/logging"
	"userStore/models"
	"userStore/repository"
)

// Version is reported by userstore --version.
var Version = "0.1.0"

// options are the persistent flags shared by every command.
type options struct {
	properties string
	root       string
	logLevel   string
}

// Execute runs the CLI
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the userstore command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:     "userstore",
		Short:   "Manage rows of the myusers table",
		Version: Version,
		Long: `userstore reads connection settings from a properties resource
(postgres.driver, postgres.url, postgres.name, postgres.password) and runs
CRUD operations on the myusers table, directly or over gRPC.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.properties, "properties", "", "properties resource name (default app.properties)")
	rootCmd.PersistentFlags().StringVar(&opts.root, "root", "", "directory the properties resource is resolved against")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newInitCmd(opts),
		newCreateCmd(opts),
		newGetCmd(opts),
		newFindCmd(opts),
		newListCmd(opts),
		newUpdateCmd(opts),
		newDeleteCmd(opts),
	)
	return rootCmd
}

// app is what a command needs after configuration has been resolved.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	provider *db.Provider
}

func (o *options) setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadWithDefaults()
	if err != nil {
		return nil, err
	}
	if o.properties != "" {
		cfg.Database.Properties = o.properties
	}
	if o.root != "" {
		cfg.Database.Root = o.root
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	provider := db.NewProvider(db.FileSource(cfg.Database.Root, cfg.Database.Properties), logging.Component(logger, "datasource"))
	return &app{cfg: cfg, logger: logger, provider: provider}, nil
}

// withRepo opens a repository for the duration of fn.
func (o *options) withRepo(cmd *cobra.Command, fn func(ctx context.Context, repo *repository.UserRepository) error) error {
	a, err := o.setup(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	repo, err := repository.Open(ctx, a.provider, a.logger, repository.WithTimeout(a.cfg.Database.QueryTimeout))
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close connection")
		}
	}()
	return fn(ctx, repo)
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the user service over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			a.logger.Info().Stringer("config", a.cfg).Msg("configuration loaded")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			repo, err := repository.Open(ctx, a.provider, a.logger, repository.WithTimeout(a.cfg.Database.QueryTimeout))
			if err != nil {
				return err
			}
			defer func() {
				if err := repo.Close(); err != nil {
					a.logger.Warn().Err(err).Msg("failed to close connection")
				}
			}()

			shutdown, err := grpcserver.StartGRPC(a.cfg, repo, logging.Component(a.logger, "grpc"))
			if err != nil {
				return fmt.Errorf("start grpc: %w", err)
			}
			a.logger.Info().Str("address", a.cfg.GRPC.Address).Msg("gRPC server listening")

			<-ctx.Done()

			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				a.logger.Warn().Err(err).Msg("shutdown error")
			}
			return nil
		},
	}
}

func newInitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the myusers table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			conn, err := a.provider.Connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := db.EnsureSchema(cmd.Context(), conn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
			return nil
		},
	}
}

func newCreateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "create FIRST LAST AGE",
		Short: "Insert a user and print its id",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			age, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid age %q: %w", args[2], err)
			}
			return opts.withRepo(cmd, func(ctx context.Context, repo *repository.UserRepository) error {
				id, err := repo.CreateUser(ctx, args[0], args[1], age)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
}

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Print the user with the given id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withRepo(cmd, func(ctx context.Context, repo *repository.UserRepository) error {
				u, err := repo.FindUserByID(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), u)
			})
		},
	}
}

func newFindCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "find NAME",
		Short: "Print the first user with the given first name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRepo(cmd, func(ctx context.Context, repo *repository.UserRepository) error {
				u, err := repo.FindUserByName(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), u)
			})
		},
	}
}

func newListCmd(opts *options) *cobra.Command {
	var pageSize int
	var after int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print users, all of them or one page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRepo(cmd, func(ctx context.Context, repo *repository.UserRepository) error {
				var (
					users []models.User
					err   error
				)
				if pageSize > 0 || after > 0 {
					users, err = repo.ListUsers(ctx, repository.ListUsersParams{PageSize: pageSize, AfterID: after})
				} else {
					users, err = repo.FindAllUsers(ctx)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), users)
			})
		},
	}
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "page size (max 100); lists everything when unset")
	cmd.Flags().Int64Var(&after, "after", 0, "only users with an id greater than this")
	return cmd
}

func newUpdateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "update ID FIRST LAST AGE",
		Short: "Overwrite a user and print the number of rows changed",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			age, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("invalid age %q: %w", args[3], err)
			}
			return opts.withRepo(cmd, func(ctx context.Context, repo *repository.UserRepository) error {
				_, n, err := repo.UpdateUser(ctx, &models.User{ID: id, FirstName: args[1], LastName: args[2], Age: age})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func newDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a user and print the number of rows removed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withRepo(cmd, func(ctx context.Context, repo *repository.UserRepository) error {
				n, err := repo.DeleteUser(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
