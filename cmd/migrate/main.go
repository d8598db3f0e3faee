package main

import (
	"errors"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/asakaida/schemareg/internal/infrastructure/config"
	"github.com/asakaida/schemareg/internal/infrastructure/database"
	"github.com/asakaida/schemareg/internal/logging"
)

var (
	envFlag string
	pg      *database.Postgres
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tool for the schema registry",
	Long: `Database migration tool for the schema registry.
Manages the PostgreSQL catalog tables using golang-migrate. Migrations are embedded in the binary.`,
	PersistentPreRun: setupDatabase,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if pg != nil {
			pg.Close()
		}
	},
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Long:  `Apply all pending migrations to the database.`,
	Run:   runUp,
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Rollback migrations",
	Long:  `Rollback the specified number of migrations (default: 1).`,
	Args:  cobra.MaximumNArgs(1),
	Run:   runDown,
}

var gotoCmd = &cobra.Command{
	Use:   "goto <version>",
	Short: "Migrate to a specific version",
	Long:  `Migrate to a specific version number.`,
	Args:  cobra.ExactArgs(1),
	Run:   runGoto,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show current migration version",
	Long:  `Display the current migration version of the database.`,
	Run:   runVersion,
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Force set migration version (use with caution)",
	Long:  `Force set the migration version without running migrations. Use with caution.`,
	Args:  cobra.ExactArgs(1),
	Run:   runForce,
}

func init() {
	// Add global --env flag to all commands
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")

	// Add subcommands
	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(gotoCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(forceCmd)
}

func main() {
	logging.SetGlobalLogger(logging.New(os.Stderr, "info", "console"))
	if err := rootCmd.Execute(); err != nil {
		logging.Fatal().Err(err).Msg("failed to execute command")
	}
}

func setupDatabase(cmd *cobra.Command, args []string) {
	logging.Info().Str("env", envFlag).Msg("using environment")

	// Initialize configuration from .env.{env} file
	if err := config.InitConfig(envFlag); err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize config")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}

	pg, err = database.NewPostgres(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to database")
	}

	logging.Info().
		Str("user", cfg.Database.User).
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("connected to database")
}

func newMigrate() *migrate.Migrate {
	m, err := database.NewMigrate(pg.DB)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create migrate instance")
	}
	return m
}

func parseNumber(arg string) int {
	n, err := strconv.Atoi(arg)
	if err != nil {
		logging.Fatal().Err(err).Str("arg", arg).Msg("expected a number")
	}
	return n
}

func runUp(cmd *cobra.Command, args []string) {
	m := newMigrate()

	err := m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logging.Fatal().Err(err).Msg("migration up failed")
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logging.Info().Msg("no migrations to apply")
	} else {
		logging.Info().Msg("migration up completed successfully")
	}
}

func runDown(cmd *cobra.Command, args []string) {
	steps := 1 // Default: rollback 1 migration
	if len(args) > 0 {
		steps = parseNumber(args[0])
	}

	m := newMigrate()

	err := m.Steps(-steps)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logging.Fatal().Err(err).Msg("migration down failed")
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logging.Info().Msg("no migrations to rollback")
	} else {
		logging.Info().Int("steps", steps).Msg("migration down completed successfully")
	}
}

func runGoto(cmd *cobra.Command, args []string) {
	version := parseNumber(args[0])
	if version < 0 {
		logging.Fatal().Int("version", version).Msg("version must not be negative")
	}

	m := newMigrate()

	err := m.Migrate(uint(version))
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logging.Fatal().Err(err).Msg("migration goto failed")
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logging.Info().Int("version", version).Msg("already at version")
	} else {
		logging.Info().Int("version", version).Msg("migration goto completed successfully")
	}
}

func runVersion(cmd *cobra.Command, args []string) {
	m := newMigrate()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logging.Info().Msg("no migrations applied yet")
		return
	}
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to get version")
	}

	logging.Info().Uint("version", version).Bool("dirty", dirty).Msg("current version")
}

func runForce(cmd *cobra.Command, args []string) {
	version := parseNumber(args[0])

	m := newMigrate()

	if err := m.Force(version); err != nil {
		logging.Fatal().Err(err).Msg("migration force failed")
	}

	logging.Info().Int("version", version).Msg("migration forced")
}
