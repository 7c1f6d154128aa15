package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/openucra/ucra-go/internal/playback"
	"github.com/openucra/ucra-go/internal/score"
	"github.com/openucra/ucra-go/internal/sink"
	"github.com/openucra/ucra-go/ucra"
	"github.com/openucra/ucra-go/ucra/adapter"
	"github.com/openucra/ucra-go/ucra/stream"
	"github.com/openucra/ucra-go/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	streamOutput string
	streamNATS   bool
	streamPlay   bool
	streamDryRun bool
	streamFlags  string
	streamQueue  int

	streamCmd = &cobra.Command{
		Use:   "stream SCORE",
		Short: "Stream a score block by block",
		Long: paragraph(fmt.Sprintf("\n%s a score through a pull stream: notes are handed to the engine a few at a time and the audio is read in fixed-size blocks. Blocks go to a WAV file, the audio device, a NATS subject, or any combination.", keyword("Stream"))),
		Example: paragraph("ucra stream song.yml --play\nucra stream song.yml -o out.wav --nats --realtime\nucra stream song.yml --remote ws://127.0.0.1:7070/ucra --play"),
		Args: cobra.ExactArgs(1),
		RunE: runStream,
	}
)

// blockReader reads interleaved frames from a local or remote stream.
type blockReader func(buf []float32) (int, error)

func runStream(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sc, opts, err := loadScore(args[0], streamFlags)
	if err != nil {
		return err
	}
	rc := &ucra.RenderConfig{
		SampleRate: sc.SampleRate,
		Channels:   sc.Channels,
		BlockSize:  uint32(cfg.Stream.BlockSize), //nolint:gosec
		Options:    opts,
	}
	feed := score.NewFeed(sc.Seconds(), cfg.Stream.ChunkSize)

	out, err := openSinks(ctx, int(rc.SampleRate), int(rc.Channels))
	if err != nil {
		return err
	}

	var read blockReader
	if remoteURL != "" {
		c, err := dialRemote(ctx)
		if err != nil {
			_ = out.Close()
			return err
		}
		defer c.Close() //nolint:errcheck
		rs, err := c.OpenStream(ctx, rc, feed)
		if err != nil {
			_ = out.Close()
			return err
		}
		defer rs.Close(context.Background()) //nolint:errcheck
		read = func(buf []float32) (int, error) { return rs.Read(ctx, buf) }
	} else {
		r, closer, err := openRenderer(cfg)
		if err != nil {
			_ = out.Close()
			return err
		}
		defer closer()
		s, err := adapter.OpenStream(rc, feed, stream.WithRenderer(r))
		if err != nil {
			_ = out.Close()
			return err
		}
		defer s.Close()
		read = s.Read
	}

	start := time.Now()
	frames, blocks, err := pump(ctx, read, out, int(rc.Channels), cfg.Stream.ReadSize)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	seconds := float64(frames) / float64(rc.SampleRate)
	log.Debug("Stream finished", "frames", frames, "blocks", blocks, "elapsed", time.Since(start))
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d frames in %d blocks, %.2fs of audio, %s\n",
		keyword("Streamed"), sc.String(), frames, blocks, seconds,
		humanize.Bytes(uint64(frames)*uint64(rc.Channels)*4)) //nolint:gosec
	return nil
}

// pump moves blocks from read to out until the stream ends or ctx is done.
func pump(ctx context.Context, read blockReader, out sink.Sink, channels, readSize int) (frames, blocks int, err error) {
	buf := make([]float32, readSize*channels)
	for {
		if ctx.Err() != nil {
			log.Info("Stream interrupted", "frames", frames)
			return frames, blocks, nil
		}
		n, rerr := read(buf)
		if n > 0 {
			if err := out.Write(buf[:n*channels]); err != nil {
				return frames, blocks, fmt.Errorf("sink failed: %w", err)
			}
			frames += n
			blocks++
		}
		if errors.Is(rerr, ucra.ErrEndOfStream) {
			return frames, blocks, nil
		}
		if rerr != nil {
			return frames, blocks, rerr
		}
	}
}

// openSinks builds the sinks selected on the command line.
func openSinks(ctx context.Context, rate, channels int) (sink.Sink, error) {
	var sinks sink.Multi
	closeAll := func() { _ = sinks.Close() }

	if streamOutput != "" {
		s, err := sink.NewWAV(utils.ExpandPath(streamOutput), rate, channels, 0)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if streamNATS {
		s, err := sink.DialNATS(cfg.NATS.URL, cfg.NATS.Subject, rate, channels)
		if err != nil {
			closeAll()
			return nil, err
		}
		log.Info("Publishing blocks", "subject", cfg.NATS.Subject, "stream", s.Stream())
		sinks = append(sinks, s)
	}
	if streamDryRun {
		r, err := playback.NewRecorder(playback.Config{SampleRate: rate, Channels: channels})
		if err != nil {
			closeAll()
			return nil, err
		}
		sinks = append(sinks, r)
	}
	if streamPlay {
		pc := playback.DefaultConfig()
		pc.SampleRate, pc.Channels = rate, channels
		p, err := playback.New(pc)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("unable to open audio device: %w", err)
		}
		sinks = append(sinks, p)
	}

	if len(sinks) == 0 {
		return nil, errors.New("no output selected: use --output, --play, --nats or --dry-run")
	}
	var out sink.Sink = sinks
	// The audio device already paces writes.
	if cfg.Stream.Realtime && !streamPlay {
		p, err := sink.NewPaced(ctx, sinks, rate, channels, cfg.Stream.BlockSize)
		if err != nil {
			closeAll()
			return nil, err
		}
		out = p
	}
	if streamQueue > 0 && (streamPlay || streamNATS) {
		out = sink.NewQueue(out, streamQueue)
	}
	return out, nil
}

func init() {
	streamCmd.Flags().StringVarP(&streamOutput, "output", "o", "", "write the stream to a WAV file")
	streamCmd.Flags().BoolVar(&streamNATS, "nats", false, "publish blocks to the configured NATS subject")
	streamCmd.Flags().BoolVarP(&streamPlay, "play", "p", false, "play the stream on the audio device")
	streamCmd.Flags().BoolVar(&streamDryRun, "dry-run", false, "stream without writing anywhere")
	streamCmd.Flags().StringVarP(&streamFlags, "flags", "f", "", "extra legacy flags, e.g. 'g=-5;B=60'")
	streamCmd.Flags().IntVar(&streamQueue, "queue", 8, "blocks buffered ahead of the device or NATS, 0 writes inline")
	streamCmd.Flags().Bool("realtime", false, "pace output to real time")
	streamCmd.Flags().Int("block", 0, "frames rendered per empty pull")
	streamCmd.Flags().Int("chunk", 0, "notes handed to the engine per pull")
	streamCmd.Flags().Int("read", 0, "frames requested per read")

	_ = viper.BindPFlag("stream.realtime", streamCmd.Flags().Lookup("realtime"))
	_ = viper.BindPFlag("stream.block_size", streamCmd.Flags().Lookup("block"))
	_ = viper.BindPFlag("stream.chunk_size", streamCmd.Flags().Lookup("chunk"))
	_ = viper.BindPFlag("stream.read_size", streamCmd.Flags().Lookup("read"))
}
