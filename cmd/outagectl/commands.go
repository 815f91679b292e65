package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	mongoadapter "github.com/couchcryptid/outage-verify-service/internal/adapter/mongo"
	"github.com/couchcryptid/outage-verify-service/internal/config"
	"github.com/couchcryptid/outage-verify-service/internal/domain"
	"github.com/couchcryptid/outage-verify-service/internal/lifecycle"
	"github.com/couchcryptid/outage-verify-service/internal/observability"
	"github.com/couchcryptid/outage-verify-service/internal/scenario"
)

// adminStore is the store surface the admin commands need.
type adminStore interface {
	lifecycle.Store
	EnsureIndexes(ctx context.Context) error
	Close(ctx context.Context) error
}

type connectFunc func(ctx context.Context, uri, database string) (adminStore, error)

func connectMongo(ctx context.Context, uri, database string) (adminStore, error) {
	store, err := mongoadapter.Connect(ctx, uri, database)
	if err != nil {
		return nil, err
	}
	return store, nil
}

type app struct {
	connect  connectFunc
	mongoURI string
	database string
	verbose  bool
}

func newRootCmd(connect connectFunc) *cobra.Command {
	a := &app{connect: connect}

	root := &cobra.Command{
		Use:           "outagectl",
		Short:         "Administer the outage verification service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.mongoURI, "mongo-uri",
		sharedcfg.EnvOrDefault("MONGO_URI", config.DefaultMongoURI), "MongoDB connection string")
	root.PersistentFlags().StringVar(&a.database, "database",
		sharedcfg.EnvOrDefault("MONGO_DATABASE", config.DefaultMongoDatabase), "MongoDB database name")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log lifecycle events to stderr")

	root.AddCommand(a.indexesCmd(), a.userCmd(), a.replayCmd())
	return root
}

func (a *app) logger(cmd *cobra.Command) *slog.Logger {
	if !a.verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (a *app) withStore(cmd *cobra.Command, fn func(adminStore) error) error {
	store, err := a.connect(cmd.Context(), a.mongoURI, a.database)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			a.logger(cmd).Warn("close store", "error", err)
		}
	}()
	return fn(store)
}

func (a *app) indexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the geospatial and lookup indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(store adminStore) error {
				if err := store.EnsureIndexes(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indexes ensured on %s\n", a.database)
				return nil
			})
		},
	}
}

func (a *app) userCmd() *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage user trust records",
	}

	var (
		id       string
		lng, lat float64
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a user with a home location inside the REGION_* bounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			region, err := config.LoadRegion()
			if err != nil {
				return err
			}
			policy := lifecycle.DefaultPolicy()
			policy.Gate.Region = region

			return a.withStore(cmd, func(store adminStore) error {
				svc := lifecycle.New(store, nil, nil, policy, clockwork.NewRealClock(),
					a.logger(cmd), observability.NewMetricsWithRegistry(prometheus.NewRegistry()))
				u, err := svc.RegisterUser(cmd.Context(), id, domain.Point{Lng: lng, Lat: lat})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registered %s at %.5f,%.5f credibility %d\n",
					u.ID, u.HomeLocation.Lng, u.HomeLocation.Lat, u.CredibilityScore)
				return nil
			})
		},
	}
	add.Flags().StringVar(&id, "id", "", "user id")
	add.Flags().Float64Var(&lng, "lng", 0, "home longitude")
	add.Flags().Float64Var(&lat, "lat", 0, "home latitude")
	_ = add.MarkFlagRequired("id")
	_ = add.MarkFlagRequired("lng")
	_ = add.MarkFlagRequired("lat")

	user.AddCommand(add)
	return user
}

func (a *app) replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Replay a scripted scenario against an in-memory store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if sc.Name != "" {
				fmt.Fprintf(out, "scenario: %s\n", sc.Name)
			}
			if err := scenario.Run(cmd.Context(), sc, out, a.logger(cmd)); err != nil {
				return err
			}
			fmt.Fprintf(out, "ok: %d steps\n", len(sc.Steps))
			return nil
		},
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(connectMongo)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "outagectl: %v\n", err)
		return 1
	}
	return 0
}
