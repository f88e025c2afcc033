package main

import (
	"fmt"
	"os"

	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	v      = config.New()
	cfg    config.Config
	logger = logging.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor merges module manifests into a shared extension tree",
	Long: `Arbor loads module manifests (extension points and contributions) from a
directory or a Loam repository, merges them into one extension tree and lets
you print, validate, serve or publish the result.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(v)
		if err != nil {
			return err
		}
		cfg = loaded
		if len(args) > 0 && !cmd.Flags().Changed("dir") {
			cfg.Dir = args[0]
		}
		logger = logging.New(logging.ParseLevel(cfg.LogLevel))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("dir", ".", "Directory containing the module manifests")
	flags.String("source", "file", "Manifest source: 'file' (YAML directory) or 'loam'")
	flags.Bool("strict", false, "Reject unknown keys in manifest files")
	flags.Bool("notify", true, "Send children-changed notifications while merging")
	flags.String("log-level", "warn", "Log level: debug, info, warn or error")
	flags.String("redis-addr", "", "Redis address for the shared writer lock and snapshot store")

	bind(v, "dir", flags.Lookup("dir"))
	bind(v, "source", flags.Lookup("source"))
	bind(v, "strict", flags.Lookup("strict"))
	bind(v, "notify", flags.Lookup("notify"))
	bind(v, "log_level", flags.Lookup("log-level"))
	bind(v, "redis.addr", flags.Lookup("redis-addr"))
}

func bind(v *viper.Viper, key string, flag *pflag.Flag) {
	cobra.CheckErr(v.BindPFlag(key, flag))
}
