package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/goliatone/go-meta-query/pkg/di"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app holds the state shared by every subcommand of one invocation.
type app struct {
	v          *viper.Viper
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	a := &app{v: newViper()}

	root := &cobra.Command{
		Use:   "metaquery",
		Short: "Query and edit per-type meta tables",
		Long: `metaquery resolves, creates, updates, deletes and queries key/value
meta rows attached to registered object types (post, comment, term, user, ...).

Settings come from metaquery.yaml in the working directory (or --config),
METAQUERY_* environment variables and flags, in increasing precedence.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default ./metaquery.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log to stderr")
	flags.String("driver", "", "database driver (sqlite3, postgres)")
	flags.String("dsn", "", "database DSN")
	flags.String("cache-backend", "", "cache backend (memory, redis)")
	flags.String("redis-addr", "", "redis address")
	flags.String("prefix", "", "table prefix")

	for key, flag := range map[string]string{
		"storage.driver":   "driver",
		"storage.dsn":      "dsn",
		"cache.backend":    "cache-backend",
		"cache.redis.addr": "redis-addr",
		"types.prefix":     "prefix",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		a.typesCmd(),
		a.initCmd(),
		a.queryCmd(),
		a.getCmd(),
		a.addCmd(),
		a.updateCmd(),
		a.deleteCmd(),
	)
	return root
}

func (a *app) logger() *zap.Logger {
	if !a.verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// container loads the configuration and wires a container. The caller
// closes it.
func (a *app) container() (*di.Container, error) {
	cfg, err := loadConfig(a.v, a.configFile)
	if err != nil {
		return nil, err
	}
	return di.NewContainer(cfg, di.WithLogger(a.logger()))
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
