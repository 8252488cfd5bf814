// Command hlsync syncs GoodLinks highlights to Readwise.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hlsync/hlsync/internal/config"
	"github.com/hlsync/hlsync/internal/logging"
	"github.com/hlsync/hlsync/internal/readwise"
	"github.com/hlsync/hlsync/internal/store"
	"github.com/hlsync/hlsync/internal/sync"
	"github.com/hlsync/hlsync/internal/watermark"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hlsync",
	Short: "Sync GoodLinks highlights to Readwise",
	Long: `hlsync incrementally syncs highlights from the GoodLinks SQLite
database to the Readwise API.

Each run finds highlights committed since the last successful sync, posts
them to Readwise in a single request, and records the timestamp of the
newest highlight so the next run resumes where this one stopped. A failed
run leaves that timestamp untouched, so the next invocation simply retries
the same highlights.

The Readwise API token is read from HLSYNC_READWISE_TOKEN or
READWISE_API_TOKEN. No token is needed for --dry-run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().String("db", defaults.GetString("database.path"), "GoodLinks SQLite database path")
	rootCmd.PersistentFlags().String("state", defaults.GetString("state.path"), "Watermark state file path")
	rootCmd.PersistentFlags().String("endpoint", defaults.GetString("readwise.url"), "Readwise highlights endpoint")
	rootCmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", defaults.GetString("log.file"), "Optional rotating log file path")

	bindFlag("database.path", "db")
	bindFlag("state.path", "state")
	bindFlag("readwise.url", "endpoint")
	bindFlag("log.level", "log-level")
	bindFlag("log.file", "log-file")
}

func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	return readConfig(viper.GetViper(), cfgFile)
}

// readConfig loads the config file into v. An explicitly requested file must
// exist and parse; only the implicit search tolerates absence.
func readConfig(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		return v.ReadInConfig()
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// app bundles everything a command needs for one invocation.
type app struct {
	cfg    config.AppConfig
	logger *zap.Logger
	db     *store.DB
	runner *sync.Runner
	marks  *watermark.FileStore
}

// newApp loads configuration, builds the logger, opens the source database,
// and wires the sync runner. The caller must invoke close.
func newApp() (*app, func(), error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}

	marks := watermark.NewFileStore(cfg.StatePath)
	client := readwise.New(readwise.Config{
		URL:        cfg.ReadwiseURL,
		Token:      cfg.ReadwiseToken,
		HTTPClient: httpClient(cfg.RequestTimeout),
		Logger:     logger,
	})
	runner := sync.NewRunner(db, client, marks, time.Local, logger)

	a := &app{cfg: cfg, logger: logger, db: db, runner: runner, marks: marks}
	closeFn := func() {
		_ = db.Close()
		_ = logger.Sync()
	}
	return a, closeFn, nil
}

func httpClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
