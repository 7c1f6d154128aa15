package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/openucra/ucra-go/internal/wavio"
	"github.com/openucra/ucra-go/ucra"
	"github.com/openucra/ucra-go/ucra/validate"
	"github.com/openucra/ucra-go/utils"
	"github.com/spf13/cobra"
)

var (
	f0MaxCents   float64
	compareTol   float64
	mcdThreshold float64

	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Objective checks for rendered audio",
		Long:  paragraph(fmt.Sprintf("\n%s rendered audio against references: pitch curve error, PCM comparison, mel-cepstral distortion and dominant frequency.", keyword("Check"))),
	}

	validateF0Cmd = &cobra.Command{
		Use:   "f0 REFERENCE ESTIMATE",
		Short: "RMSE between two pitch curves",
		Long:  paragraph("\nCompare two pitch curves given as \"time hz\" lines, sampled on a 10 ms grid. Points at or below 0 Hz are unvoiced."),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gt, err := validate.LoadCurveFile(utils.ExpandPath(args[0]))
			if err != nil {
				return err
			}
			est, err := validate.LoadCurveFile(utils.ExpandPath(args[1]))
			if err != nil {
				return err
			}
			res, err := validate.F0RMSE(gt, est)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.String())
			if f0MaxCents > 0 && res.RMSECents > f0MaxCents {
				return checkFailed("f0 error %.2f cents exceeds %.2f", res.RMSECents, f0MaxCents)
			}
			return nil
		},
	}

	validateCompareCmd = &cobra.Command{
		Use:   "compare REFERENCE TEST",
		Short: "Compare two WAV files sample by sample",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, test, err := readPair(args[0], args[1])
			if err != nil {
				return err
			}
			if ref.Channels != test.Channels {
				return ucra.NewError(ucra.ErrInvalidArgument, "validate", "compare").
					WithContext("reference_channels", ref.Channels).
					WithContext("test_channels", test.Channels)
			}
			c, err := validate.Compare(ref.PCM, test.PCM, compareTol)
			if err != nil {
				return err
			}
			line := c.String()
			if c.Verdict == validate.Fail {
				line = failure(line)
			} else {
				line = keyword(line)
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
			if c.Verdict == validate.Fail {
				return checkFailed("audio differs from reference")
			}
			return nil
		},
	}

	validateMCDCmd = &cobra.Command{
		Use:   "mcd REFERENCE SYNTHESIZED",
		Short: "Mel-cepstral distortion between two WAV files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, syn, err := readPair(args[0], args[1])
			if err != nil {
				return err
			}
			d, err := validate.MCD(ref.Mono(), syn.Mono(), ref.SampleRate)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mcd=%.3f dB\n", d)
			if mcdThreshold > 0 && d > mcdThreshold {
				return checkFailed("mcd %.3f dB exceeds %.3f dB", d, mcdThreshold)
			}
			return nil
		},
	}

	validateFreqCmd = &cobra.Command{
		Use:   "freq WAV",
		Short: "Dominant frequency of a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wavio.ReadFile(utils.ExpandPath(args[0]))
			if err != nil {
				return err
			}
			f := validate.DominantFrequency(a.Mono(), a.SampleRate)
			if f <= 0 {
				fmt.Fprintln(cmd.OutOrStdout(), faint("no dominant frequency"))
				return nil
			}
			midi := 69 + 12*math.Log2(f/validate.F0Reference)
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f Hz %s\n", f, faint(fmt.Sprintf("(midi %.2f)", midi)))
			return nil
		},
	}
)

// errCheckFailed marks a validation that ran but did not pass.
var errCheckFailed = errors.New("validation failed")

func checkFailed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errCheckFailed, fmt.Sprintf(format, args...))
}

// readPair reads two WAV files that must share a sample rate.
func readPair(a, b string) (*wavio.Audio, *wavio.Audio, error) {
	x, err := wavio.ReadFile(utils.ExpandPath(a))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", a, err)
	}
	y, err := wavio.ReadFile(utils.ExpandPath(b))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", b, err)
	}
	if x.SampleRate != y.SampleRate {
		return nil, nil, ucra.NewError(ucra.ErrInvalidArgument, "validate", "read").
			WithContext("reference_rate", x.SampleRate).
			WithContext("test_rate", y.SampleRate)
	}
	return x, y, nil
}

func init() {
	validateF0Cmd.Flags().Float64Var(&f0MaxCents, "max-cents", 0, "fail when the RMSE exceeds this many cents")
	validateCompareCmd.Flags().Float64Var(&compareTol, "tolerance", validate.DefaultTolerance, "largest passing RMS difference")
	validateMCDCmd.Flags().Float64Var(&mcdThreshold, "max", 0, "fail when the distortion exceeds this many dB")

	validateCmd.AddCommand(validateF0Cmd, validateCompareCmd, validateMCDCmd, validateFreqCmd)
}
