package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/AceFire6/flagsmith/internal/api"
	"github.com/AceFire6/flagsmith/internal/identitystore"
	"github.com/AceFire6/flagsmith/internal/migrator"
	"github.com/AceFire6/flagsmith/internal/store"
	"github.com/AceFire6/flagsmith/internal/supervisor"
	"github.com/AceFire6/flagsmith/model"
)

func init() {
	serverCmd.PersistentFlags().String("database", "sqlite://flagsmith.db", "The database backing the server.")
	serverCmd.PersistentFlags().String("listen", ":8080", "The interface and port on which to listen.")
	serverCmd.PersistentFlags().String("environment", "dev", "The environment name reported in webhook payloads.")
	serverCmd.PersistentFlags().Bool("debug", false, "Whether to output debug logs.")

	serverCmd.PersistentFlags().String("dynamo-table", "flagsmith-identities", "The DynamoDB table identities are migrated into.")
	serverCmd.PersistentFlags().String("dynamo-region", "us-east-1", "The AWS region of the DynamoDB table.")
	serverCmd.PersistentFlags().String("dynamo-endpoint", "", "Overrides the DynamoDB endpoint; used to point at a local DynamoDB.")

	serverCmd.PersistentFlags().Duration("poll", 30*time.Second, "The interval to poll for identity migrations pending work.")
	serverCmd.PersistentFlags().Duration("lock-ttl", 15*time.Minute, "How long a migration lock may be held before it is considered abandoned.")
	serverCmd.PersistentFlags().Int("page-size", migrator.DefaultPageSize, "The number of identities copied per page.")
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the identity migration server.",
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		debug, _ := command.Flags().GetBool("debug")
		if debug {
			logger.SetLevel(log.DebugLevel)
		}

		database, _ := command.Flags().GetString("database")
		sqlStore, err := store.New(database, logger)
		if err != nil {
			return err
		}
		defer sqlStore.Close()

		err = sqlStore.Migrate()
		if err != nil {
			return err
		}

		currentVersion, err := sqlStore.GetCurrentVersion()
		if err != nil {
			return err
		}

		instanceID := model.NewID()
		instanceLogger := logger.WithFields(log.Fields{
			"instance": instanceID,
			"schema":   currentVersion.String(),
		})

		dynamoTable, _ := command.Flags().GetString("dynamo-table")
		dynamoRegion, _ := command.Flags().GetString("dynamo-region")
		dynamoEndpoint, _ := command.Flags().GetString("dynamo-endpoint")
		dynamoClient, err := identitystore.NewDynamoClient(context.Background(), dynamoRegion, dynamoEndpoint)
		if err != nil {
			return err
		}

		pageSize, _ := command.Flags().GetInt("page-size")
		identityMigrator := migrator.NewMigrator(
			identitystore.NewSQLIdentityStore(sqlStore),
			identitystore.NewDynamoIdentityStore(dynamoClient, dynamoTable),
			sqlStore,
			instanceLogger,
			migrator.Params{PageSize: pageSize},
		)

		environment, _ := command.Flags().GetString("environment")
		lockTTL, _ := command.Flags().GetDuration("lock-ttl")
		migrationSupervisor := supervisor.NewIdentityMigrationSupervisor(sqlStore, identityMigrator, instanceID, lockTTL, environment, instanceLogger)

		poll, _ := command.Flags().GetDuration("poll")
		scheduler := supervisor.NewScheduler(supervisor.MultiDoer{migrationSupervisor}, poll, instanceLogger)
		defer scheduler.Shutdown()

		router := mux.NewRouter()
		api.Register(router, &api.Context{
			Store:       sqlStore,
			Supervisor:  scheduler,
			Environment: environment,
			Logger:      instanceLogger,
		})

		listen, _ := command.Flags().GetString("listen")
		srv := &http.Server{
			Addr:           listen,
			Handler:        router,
			ReadTimeout:    180 * time.Second,
			WriteTimeout:   180 * time.Second,
			IdleTimeout:    time.Second * 180,
			MaxHeaderBytes: 1 << 20,
		}

		go func() {
			instanceLogger.WithField("addr", srv.Addr).Info("API server listening")
			err := srv.ListenAndServe()
			if err != nil && err != http.ErrServerClosed {
				instanceLogger.WithError(err).Error("Failed to listen and serve")
			}
		}()

		c := make(chan os.Signal, 1)
		// We'll accept graceful shutdowns when quit via SIGINT (Ctrl+C) or
		// SIGTERM. SIGKILL or SIGQUIT will not be caught.
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		sig := <-c
		instanceLogger.WithField("shutdown-signal", sig.String()).Info("Shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return srv.Shutdown(ctx)
	},
}
