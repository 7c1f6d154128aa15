package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const defaultConfig = `# Engine settings
engine:
  # default sample rate for scores that leave it unset
  sample_rate: 44100
  # output channels
  channels: 1
  # per-render sample limit (0 = unlimited)
  max_samples: 0
  # engine manifest (JSON or YAML)
  # manifest: "~/.config/ucra/engine.json"
  # flag mapping rules (JSON or YAML)
  # flag_rules: "~/.config/ucra/flags.yml"

# Streaming settings
stream:
  # frames rendered per empty pull
  block_size: 512
  # frames requested per read
  read_size: 1024
  # notes handed to the engine per pull
  chunk_size: 4
  # pace sinks to real time
  realtime: false

# Render cache
cache:
  enabled: false
  # dir: "~/.cache/ucra/renders"
  memory_mb: 64
  disk_mb: 512
  # zstd level (0 = store raw)
  compression_level: 3

# Adapter server
serve:
  addr: "127.0.0.1:7070"
  path: "/ucra"
  read_timeout: "30s"
  max_message_mb: 16

# NATS block sink
nats:
  url: "nats://127.0.0.1:4222"
  subject: "ucra.stream"

# Logging
log:
  # debug, info, warn or error
  level: "info"
  # file: "~/.cache/ucra/ucra.log"
`

var configShow bool

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the ucra config file",
	Long:    paragraph(fmt.Sprintf("\n%s the ucra config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("ucra config\nucra config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}

// showConfig prints the resolved configuration as YAML.
func showConfig(cmd *cobra.Command) error {
	if err := validateOptions(rootCmd); err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("unable to encode configuration: %w", err)
	}
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintln(cmd.OutOrStdout(), faint("# "+used))
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func init() {
	// Assigned here rather than in the literal to avoid a package-level
	// initialization cycle through showConfig and validateOptions.
	configCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if configShow {
			return showConfig(cmd)
		}
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("UCRA", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	}
	configCmd.Flags().BoolVar(&configShow, "show", false, "print the resolved configuration instead of editing it")
}
