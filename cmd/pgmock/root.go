package pgmock

import (
	"fmt"
	"os"

	"github.com/edgeflare/pgmock/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  = zap.NewNop()
	// v carries the flags bound by subcommands; config.Load layers file and
	// env below it.
	v = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "pgmock",
	Short: "pgmock is a PostgREST-compatible mock server",
	Long:  `pgmock answers PostgREST requests from an in-memory store so browser end-to-end tests run without the hosted backend`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	Run: func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			fmt.Println(config.Version)
			return
		}
		_ = cmd.Help()
	},
}

func Main() {
	defer func() { _ = logger.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/pgmock.yaml or ./pgmock.yaml)")
	f.StringP("log.level", "L", "", "log at this level (debug, info, warn, error, none)")
	f.String("log.format", "", "log encoding (json, console)")
	f.String("log.file", "", "also write logs to this file, rotated by size")
	rootCmd.Flags().BoolP("version", "v", false, "Print the version number")

	_ = v.BindPFlags(f)

	rootCmd.AddCommand(serveCmd, seedCmd)
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile, v)
	if err != nil {
		return err
	}
	logger, err = cfg.Log.NewLogger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return nil
}
