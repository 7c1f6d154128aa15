package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/openucra/ucra-go/ucra"
	"github.com/openucra/ucra-go/utils"
)

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, "ucra").CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ucra.log"), nil
}

// setupLog logs to stderr, or to a file under the user cache dir when
// UCRA_DEBUG is set. The returned func closes the file.
func setupLog() (func() error, error) {
	log.SetOutput(os.Stderr)
	log.SetLevel(log.InfoLevel)

	if os.Getenv("UCRA_DEBUG") == "" {
		return func() error { return nil }, nil
	}

	logFile, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	return openLogFile(logFile, log.DebugLevel)
}

var closeLogFile = func() error { return nil }

// applyLogConfig applies the log section of the configuration on top of
// setupLog. --debug always wins.
func applyLogConfig(c ucra.LogConfig) error {
	if debug {
		log.SetLevel(log.DebugLevel)
	} else if os.Getenv("UCRA_DEBUG") == "" {
		lvl, err := log.ParseLevel(strings.ToLower(c.Level))
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		log.SetLevel(lvl)
	}

	if c.File == "" || os.Getenv("UCRA_DEBUG") != "" {
		return nil
	}
	closer, err := openLogFile(utils.ExpandPath(c.File), log.GetLevel())
	if err != nil {
		return err
	}
	closeLogFile = closer
	return nil
}

func openLogFile(path string, level log.Level) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		// log disabled
		log.SetOutput(io.Discard)
		return func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		// log disabled
		log.SetOutput(io.Discard)
		return func() error { return nil }, nil
	}
	log.SetOutput(f)
	log.SetLevel(level)
	return f.Close, nil
}
