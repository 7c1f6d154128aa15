package main

import (
	"fmt"
	"strings"

	"github.com/openucra/ucra-go/ucra"
	"github.com/openucra/ucra-go/ucra/adapter"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the engine description",
	Long:  paragraph(fmt.Sprintf("\n%s the engine description and the formats it accepts. With --remote the engine of an adapter server is queried instead.", keyword("Print"))),
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := cmd.OutOrStdout()

		if remoteURL != "" {
			c, err := dialRemote(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck
			info, err := c.Info(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(w, field("engine", keyword(info)))
			fmt.Fprintln(w, field("server", remoteURL))
			fmt.Fprintln(w, field("session", c.Session()))
			return nil
		}

		e, err := adapter.NewEngine(cfg.EngineOptions())
		if err != nil {
			return err
		}
		defer e.Close()
		info, err := e.GetInfo()
		if err != nil {
			return err
		}

		fmt.Fprintln(w, field("engine", keyword(info)))
		fmt.Fprintln(w, field("sample rate", fmt.Sprintf("%d Hz", cfg.Engine.SampleRate)))
		if cfg.Engine.MaxSamples > 0 {
			fmt.Fprintln(w, field("max samples", cfg.Engine.MaxSamples))
		}

		caps, err := engineCapabilities()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, field("rates", listOrAny(caps.SampleRates)))
		fmt.Fprintln(w, field("channels", listOrAny(caps.Channels)))
		fmt.Fprintln(w, field("streaming", caps.Streaming))
		return nil
	},
}

// engineCapabilities reads the capabilities of a local engine.
func engineCapabilities() (ucra.Capabilities, error) {
	r, closer, err := openRenderer(cfg)
	if err != nil {
		return ucra.Capabilities{}, err
	}
	defer closer()
	if c, ok := r.(ucra.Capable); ok {
		return c.Capabilities(), nil
	}
	return ucra.Capabilities{Streaming: true}, nil
}

func listOrAny(v []uint32) string {
	if len(v) == 0 {
		return faint("any")
	}
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
