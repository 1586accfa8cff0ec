package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pulsar/pkg/config"
	"github.com/ajitpratap0/pulsar/pkg/driver"
	"github.com/ajitpratap0/pulsar/pkg/logger"
	"github.com/ajitpratap0/pulsar/pkg/pool"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "pulsar",
		Short: "Pulsar - concurrent PostgreSQL client pool",
		Long: `Pulsar multiplexes concurrent statements over a bounded set of live
PostgreSQL connections. This CLI is a thin wrapper around the pool for
connectivity checks and ad-hoc statement execution.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Pulsar v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(newPingCmd())
	root.AddCommand(newExecCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig builds a Config from an optional YAML file, the PULSAR_DSN
// environment variable and command line flags, in increasing precedence.
func loadConfig(configFile, dsn string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.New("pulsar-cli")
	}

	v := viper.New()
	v.SetEnvPrefix("pulsar")
	_ = v.BindEnv("dsn")
	if envDSN := v.GetString("dsn"); envDSN != "" && cfg.Connection.ConnString == "" {
		cfg.Connection.ConnString = envDSN
	}
	if dsn != "" {
		cfg.Connection.ConnString = dsn
	}

	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogEncoding,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newPingCmd() *cobra.Command {
	var configFile, dsn string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check server connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile, dsn)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			start := time.Now()
			if err := driver.Ping(ctx, cfg); err != nil {
				return err
			}
			fmt.Printf("server is reachable (%s)\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Connection string (overrides config and PULSAR_DSN)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Ping timeout")
	return cmd
}

// execOutput is the JSON rendering of a statement result.
type execOutput struct {
	Tag      string              `json:"tag"`
	Rows     []map[string]string `json:"rows,omitempty"`
	Duration string              `json:"duration"`
}

func newExecCmd() *cobra.Command {
	var configFile, dsn string
	var raw bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "exec [statement]",
		Short: "Execute a statement through the pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile, dsn)
			if err != nil {
				return err
			}

			client, err := pool.New(cfg)
			if err != nil {
				return err
			}
			defer client.Close(context.Background())

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			start := time.Now()
			var future *pool.Future[*driver.Result]
			if raw {
				future = client.ExecRaw(args[0])
			} else {
				future = client.Exec(driver.NewCommand(args[0]))
			}
			res, err := future.Await(ctx)
			if err != nil {
				logger.Error("statement failed", zap.Error(err))
				return err
			}

			out := execOutput{
				Tag:      res.Tag,
				Duration: time.Since(start).Round(time.Microsecond).String(),
			}
			for i := 0; i < res.RowCount(); i++ {
				row := make(map[string]string, len(res.Fields))
				for _, f := range res.Fields {
					if v, ok := res.Get(i, f); ok {
						row[f] = v
					}
				}
				out.Rows = append(out.Rows, row)
			}

			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Connection string (overrides config and PULSAR_DSN)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Allow multi-statement text (only the final result is shown)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Execution timeout")
	return cmd
}
