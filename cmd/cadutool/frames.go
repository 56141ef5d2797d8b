package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/cadugate/internal/cadu"
	"example.com/cadugate/internal/capture"
	"example.com/cadugate/internal/common"
)

// eachFrame feeds every frame of r to fn. A truncated final frame is logged
// and ends the stream.
func eachFrame(r *cadu.Reader, fn func(*cadu.Frame) error) error {
	for {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, cadu.ErrTruncatedFrame) {
			common.Logf("warning: %v", err)
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
	}
}

// frameIO holds the --in/--out pair of the stream utilities.
type frameIO struct {
	in, out string
}

func (fio *frameIO) register(cmd *cobra.Command, input string) {
	cmd.Flags().StringVar(&fio.in, "in", capture.Stdio, "input "+input+" stream")
	cmd.Flags().StringVar(&fio.out, "out", capture.Stdio, "output stream")
}

// run opens both ends, applies fn and closes the output.
func (fio *frameIO) run(inRandomised, outRandomised bool, fn func(r *cadu.Reader, w *cadu.Writer) error) error {
	in, err := openInput(fio.in)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := capture.Create(fio.out)
	if err != nil {
		return err
	}
	r := cadu.NewReader(in, cadu.ReaderOptions{Randomized: inRandomised})
	r.SetMetrics(metrics)
	w := cadu.NewWriter(out, cadu.WriterOptions{Randomized: outRandomised})
	return closeOutput(out, fn(r, w))
}

func copyFrames(r *cadu.Reader, w *cadu.Writer) error {
	return eachFrame(r, w.WriteFrame)
}

var (
	randomiseIO   frameIO
	derandomiseIO frameIO
	headIO        frameIO
	tailIO        frameIO
	infoIO        frameIO
	headCount     string
	tailCount     string
	headRandom    bool
	tailRandom    bool
	infoRandom    bool
	infoChecksum  int
	countIn       string
)

var randomiseCmd = &cobra.Command{
	Use:   "randomise",
	Short: "Apply the pseudo-noise sequence to a clean CADU stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return randomiseIO.run(false, true, copyFrames)
	},
}

var derandomiseCmd = &cobra.Command{
	Use:   "derandomise",
	Short: "Remove the pseudo-noise sequence from a randomised CADU stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return derandomiseIO.run(true, false, copyFrames)
	},
}

var headCmd = &cobra.Command{
	Use:   "head",
	Short: "Output the first CADUs of a stream",
	Long: `head writes the first N frames. A leading '-' writes all but the last N,
as in POSIX head.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, fromEnd, err := parseCount(headCount, '-')
		if err != nil {
			return err
		}
		rnd := randomised(cmd, headRandom)
		return headIO.run(rnd, rnd, func(r *cadu.Reader, w *cadu.Writer) error {
			return headFrames(r, w, n, fromEnd)
		})
	},
}

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Output the last CADUs of a stream",
	Long: `tail writes the last N frames. A leading '+' skips the first N frames
and writes the rest, as in POSIX tail.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, fromStart, err := parseCount(tailCount, '+')
		if err != nil {
			return err
		}
		rnd := randomised(cmd, tailRandom)
		return tailIO.run(rnd, rnd, func(r *cadu.Reader, w *cadu.Writer) error {
			return tailFrames(r, w, n, fromStart)
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the header fields of every CADU as tab-separated columns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := openInput(infoIO.in)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := capture.Create(infoIO.out)
		if err != nil {
			return err
		}
		r := cadu.NewReader(in, cadu.ReaderOptions{Randomized: randomised(cmd, infoRandom)})
		r.SetMetrics(metrics)
		return closeOutput(out, writeInfo(r, out, infoChecksum))
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count sync markers in a byte stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := openInput(countIn)
		if err != nil {
			return err
		}
		defer in.Close()
		n, err := cadu.CountMarkers(in)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(randomiseCmd, derandomiseCmd, headCmd, tailCmd, infoCmd, countCmd)
	randomiseIO.register(randomiseCmd, "CADU")
	derandomiseIO.register(derandomiseCmd, "CADU")
	headIO.register(headCmd, "CADU")
	headCmd.Flags().StringVarP(&headCount, "frames", "n", "10", "number of frames; -N for all but the last N")
	registerRandomised(headCmd, &headRandom)
	tailIO.register(tailCmd, "CADU")
	tailCmd.Flags().StringVarP(&tailCount, "frames", "n", "10", "number of frames; +N to start after the first N")
	registerRandomised(tailCmd, &tailRandom)
	infoIO.register(infoCmd, "CADU")
	infoCmd.Flags().IntVar(&infoChecksum, "checksum-bytes", 5, "leading checksum bytes to print")
	registerRandomised(infoCmd, &infoRandom)
	countCmd.Flags().StringVar(&countIn, "in", capture.Stdio, "input stream")
}

// parseCount parses "N" or "<sign>N" and reports whether the sign was given.
func parseCount(s string, sign byte) (int, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, errors.New("empty frame count")
	}
	signed := s[0] == sign
	if signed {
		s = s[1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false, fmt.Errorf("invalid frame count %q", s)
	}
	return n, signed, nil
}

// headFrames writes the first n frames, or all but the last n when
// allButLast is set.
func headFrames(r *cadu.Reader, w *cadu.Writer, n int, allButLast bool) error {
	if !allButLast {
		written := 0
		if n == 0 {
			return nil
		}
		errStop := errors.New("stop")
		err := eachFrame(r, func(f *cadu.Frame) error {
			if err := w.WriteFrame(f); err != nil {
				return err
			}
			written++
			if written == n {
				return errStop
			}
			return nil
		})
		if errors.Is(err, errStop) {
			return nil
		}
		return err
	}
	// Delay output by n frames; whatever is still buffered at the end is
	// the tail being dropped.
	ring := make([]*cadu.Frame, n)
	seen := 0
	return eachFrame(r, func(f *cadu.Frame) error {
		if n == 0 {
			return w.WriteFrame(f)
		}
		slot := seen % n
		if seen >= n {
			if err := w.WriteFrame(ring[slot]); err != nil {
				return err
			}
		}
		ring[slot] = f
		seen++
		return nil
	})
}

// tailFrames writes the last n frames, or everything after the first n when
// skipFirst is set.
func tailFrames(r *cadu.Reader, w *cadu.Writer, n int, skipFirst bool) error {
	if skipFirst {
		seen := 0
		return eachFrame(r, func(f *cadu.Frame) error {
			seen++
			if seen <= n {
				return nil
			}
			return w.WriteFrame(f)
		})
	}
	if n == 0 {
		return eachFrame(r, func(*cadu.Frame) error { return nil })
	}
	ring := make([]*cadu.Frame, n)
	seen := 0
	if err := eachFrame(r, func(f *cadu.Frame) error {
		ring[seen%n] = f
		seen++
		return nil
	}); err != nil {
		return err
	}
	kept := min(seen, n)
	for i := 0; i < kept; i++ {
		if err := w.WriteFrame(ring[(seen-kept+i)%n]); err != nil {
			return err
		}
	}
	return nil
}

func writeInfo(r *cadu.Reader, out io.Writer, checksumBytes int) error {
	if checksumBytes < 0 || checksumBytes > cadu.ChecksumLength {
		return fmt.Errorf("checksum-bytes must be between 0 and %d", cadu.ChecksumLength)
	}
	tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "version-number\tscid\tvcid\tvcdu-counter\treplay-flag\tvcdu-spare\tm-pdu-spare\tfirst-header-pointer\tchecksum-ok\tchecksum")
	err := eachFrame(r, func(f *cadu.Frame) error {
		replay := 0
		if f.Replay() {
			replay = 1
		}
		sum := f.Checksum()
		_, err := fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%t\t%X\n",
			f.Version(), f.SpacecraftID(), f.VirtualChannelID(), f.FrameCount(), replay,
			f.VCDUSpare(), f.MPDUSpare(), f.FirstHeaderPointer(), f.ValidateChecksum(), sum[:checksumBytes])
		return err
	})
	if err != nil {
		return err
	}
	return tw.Flush()
}
