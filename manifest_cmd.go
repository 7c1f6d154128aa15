package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/openucra/ucra-go/ucra/manifest"
	"github.com/openucra/ucra-go/utils"
	"github.com/spf13/cobra"
)

var manifestWatch bool

var manifestCmd = &cobra.Command{
	Use:   "manifest [PATH]",
	Short: "Check and describe an engine manifest",
	Long: paragraph(fmt.Sprintf("\n%s an engine manifest and print what it declares. With --watch the manifest is checked again every time it changes.", keyword("Load"))),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Engine.Manifest
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return errors.New("no manifest given, pass a path or set engine.manifest")
		}
		path = utils.ExpandPath(path)
		w := cmd.OutOrStdout()

		if !manifestWatch {
			m, err := manifest.Load(path)
			if err != nil {
				return err
			}
			printManifest(w, m)
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return manifest.Watch(ctx, path, func(m *manifest.Manifest, err error) {
			if err != nil {
				log.Error("Manifest rejected", "path", path, "error", err)
				fmt.Fprintln(w, failure("invalid: ")+err.Error())
				return
			}
			printManifest(w, m)
			fmt.Fprintln(w)
		})
	},
}

func printManifest(w io.Writer, m *manifest.Manifest) {
	fmt.Fprintln(w, field("name", keyword(m.Name)))
	fmt.Fprintln(w, field("version", m.Version))
	if m.Vendor != "" {
		fmt.Fprintln(w, field("vendor", m.Vendor))
	}
	fmt.Fprintln(w, field("entry", fmt.Sprintf("%s %s", m.Entry.Type, m.Entry.Path)))

	caps := m.Capabilities()
	fmt.Fprintln(w, field("rates", listOrAny(caps.SampleRates)))
	fmt.Fprintln(w, field("channels", listOrAny(caps.Channels)))
	fmt.Fprintln(w, field("streaming", caps.Streaming))

	for _, f := range m.Flags {
		def := ""
		if f.Default != nil {
			def = faint(" = " + f.DefaultString())
		}
		fmt.Fprintf(w, "  %s %s%s  %s\n", keyword(f.Key), f.Type, def, faint(f.Desc))
	}
}

func init() {
	manifestCmd.Flags().BoolVarP(&manifestWatch, "watch", "w", false, "reload the manifest when it changes")
}
