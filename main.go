// Package main provides the entry point for the ucra CLI application.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/openucra/ucra-go/ucra"
	"github.com/openucra/ucra-go/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	debug      bool
	remoteURL  string

	// cfg is the resolved configuration, set before any command runs.
	cfg = ucra.DefaultConfig()

	rootCmd = &cobra.Command{
		Use:   "ucra",
		Short: "Render and stream sung notes through UCRA engines",
		Long: paragraph(
			fmt.Sprintf("\nRender note scores to audio, %s, and serve engines to other processes.", keyword("stream them block by block")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
	}
)

// validateOptions resolves the configuration from the environment, the
// config file and flags, in that order of increasing precedence.
func validateOptions(cmd *cobra.Command) error {
	if cmd == configCmd || cmd == manCmd {
		return nil
	}

	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(utils.ExpandPath(configFile))
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	base, err := ucra.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	c, err := ucra.LoadConfigFromViper(base)
	if err != nil {
		return err
	}
	cfg = c

	if err := applyLogConfig(cfg.Log); err != nil {
		return err
	}
	log.Debug("Configuration resolved", "sample_rate", cfg.Engine.SampleRate, "cache", cfg.Cache.Enabled)
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closeLogFile()
		_ = closer()
		os.Exit(exitCode(err))
	}
	_ = closeLogFile()
	_ = closer()
}

// exitCode maps err to its UCRA status code so scripts can tell failures
// apart.
func exitCode(err error) int {
	if st := ucra.StatusOf(err); st != ucra.StatusSuccess {
		return int(st)
	}
	return 1
}

func init() {
	// Assigned here rather than in the literal to avoid a package-level
	// initialization cycle through validateOptions.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return validateOptions(cmd)
	}
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")
	rootCmd.PersistentFlags().StringVar(&remoteURL, "remote", "", "use the engine served at this websocket URL")
	rootCmd.PersistentFlags().Uint32("rate", 0, "engine sample rate in Hz")
	rootCmd.PersistentFlags().Uint32("channels", 0, "output channels")
	rootCmd.PersistentFlags().String("manifest", "", "engine manifest file")
	rootCmd.PersistentFlags().String("rules", "", "flag mapping rules file")
	rootCmd.PersistentFlags().Bool("cache", false, "cache rendered audio")

	// Config bindings
	_ = viper.BindPFlag("engine.sample_rate", rootCmd.PersistentFlags().Lookup("rate"))
	_ = viper.BindPFlag("engine.channels", rootCmd.PersistentFlags().Lookup("channels"))
	_ = viper.BindPFlag("engine.manifest", rootCmd.PersistentFlags().Lookup("manifest"))
	_ = viper.BindPFlag("engine.flag_rules", rootCmd.PersistentFlags().Lookup("rules"))
	_ = viper.BindPFlag("cache.enabled", rootCmd.PersistentFlags().Lookup("cache"))

	rootCmd.AddCommand(
		infoCmd,
		renderCmd,
		streamCmd,
		serveCmd,
		validateCmd,
		flagsCmd,
		manifestCmd,
		cacheCmd,
		configCmd,
		manCmd,
	)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "ucra")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "ucra")}, dirs...)
	}

	if c := os.Getenv("UCRA_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("ucra")
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	configFile = filepath.Join(dirs[0], "ucra.yml")
}
