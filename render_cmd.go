package main

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/openucra/ucra-go/internal/wavio"
	"github.com/openucra/ucra-go/ucra"
	"github.com/openucra/ucra-go/utils"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	renderOutput string
	renderBits   int
	renderFlags  string

	renderCmd = &cobra.Command{
		Use:   "render SCORE",
		Short: "Render a score to a WAV file",
		Long: paragraph(fmt.Sprintf("\n%s a note score in one pass. The output defaults to the score path with a .wav extension; use - to write raw float32 PCM to stdout.", keyword("Render"))),
		Example: paragraph("ucra render song.yml\nucra render song.yml -o take1.wav --flags 'g=-5;B=60'\nucra render song.yml -o - | aplay -f FLOAT_LE -r 44100"),
		Args: cobra.ExactArgs(1),
		RunE: runRender,
	}
)

func runRender(cmd *cobra.Command, args []string) error {
	sc, opts, err := loadScore(args[0], renderFlags)
	if err != nil {
		return err
	}
	rc := sc.Config(opts)

	var res *ucra.RenderResult
	if remoteURL != "" {
		c, err := dialRemote(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck
		if res, err = c.Render(cmd.Context(), rc); err != nil {
			return err
		}
	} else {
		r, closer, err := openRenderer(cfg)
		if err != nil {
			return err
		}
		defer closer()
		if res, err = r.Render(rc); err != nil {
			return err
		}
	}

	out := renderOutput
	if out == "" {
		out = utils.ReplaceExt(args[0], ".wav")
	}
	if out == "-" {
		return writeRaw(os.Stdout, res.PCM)
	}

	out = utils.ExpandPath(out)
	if err := wavio.WriteFile(out, res.PCM, int(res.SampleRate), int(res.Channels), renderBits); err != nil {
		return fmt.Errorf("unable to write %s: %w", out, err)
	}

	size := int64(0)
	if st, err := os.Stat(out); err == nil {
		size = st.Size()
	}
	log.Debug("Rendered score", "frames", res.Frames, "channels", res.Channels, "sample_rate", res.SampleRate)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d frames, %.2fs, %s\n",
		keyword("Wrote"), out, res.Frames, res.Seconds(), humanize.Bytes(uint64(size))) //nolint:gosec
	return nil
}

// writeRaw writes little-endian float32 samples, refusing to dump binary
// onto a terminal.
func writeRaw(f *os.File, pcm []float32) error {
	if term.IsTerminal(int(f.Fd())) { //nolint:gosec
		return errors.New("refusing to write raw PCM to a terminal, redirect stdout or use -o FILE")
	}
	return encodeRaw(f, pcm)
}

func encodeRaw(w io.Writer, pcm []float32) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, pcm); err != nil {
		return fmt.Errorf("unable to write PCM: %w", err)
	}
	return bw.Flush()
}

func init() {
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "output WAV file, or - for raw PCM on stdout")
	renderCmd.Flags().IntVar(&renderBits, "bits", wavio.DefaultBitDepth, "WAV bit depth (16, 24 or 32)")
	renderCmd.Flags().StringVarP(&renderFlags, "flags", "f", "", "extra legacy flags, e.g. 'g=-5;B=60'")
}
