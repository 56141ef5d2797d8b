package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"example.com/cadugate/internal/cadu"
	"example.com/cadugate/internal/capture"
	"example.com/cadugate/internal/ccsds"
	"example.com/cadugate/internal/common"
	"example.com/cadugate/internal/mux"
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Pack a byte or CCSDS packet stream into CADUs",
	Long: `pack frames its input into CADUs.

Modes:
  raw       the input is split into 884-byte data zones; the last is zero padded
  ccsds     the input is a CCSDS packet stream; packets span frames and the
            stream is closed with a fill packet
  ccsdspad  the input is a CCSDS packet stream; packets never span frames and
            leftover space is filled`,
	Args: cobra.NoArgs,
	RunE: runPack,
}

var (
	packIn     string
	packOut    string
	packMode   string
	packHeader headerFlags
)

func init() {
	rootCmd.AddCommand(packCmd)
	packCmd.Flags().StringVar(&packIn, "in", capture.Stdio, "input stream")
	packCmd.Flags().StringVar(&packOut, "out", capture.Stdio, "output CADU stream")
	packCmd.Flags().StringVarP(&packMode, "mode", "m", "raw", "raw|ccsds|ccsdspad")
	packHeader.register(packCmd)
}

func runPack(cmd *cobra.Command, args []string) error {
	mode, err := mux.ParseMode(packMode)
	if err != nil {
		return err
	}
	hdr, err := packHeader.resolve(cmd)
	if err != nil {
		return err
	}
	in, err := openInput(packIn)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := capture.Create(packOut)
	if err != nil {
		return err
	}
	w := cadu.NewWriter(out, cadu.WriterOptions{Randomized: randomised(cmd, packHeader.randomised)})
	w.SetMetrics(metrics)
	err = pack(in, w, mode, mux.Options{Header: hdr, Metrics: metrics})
	return closeOutput(out, err)
}

func pack(in io.Reader, sink mux.FrameSink, mode mux.Mode, opts mux.Options) error {
	if mode == mux.ModeRaw {
		rp, err := mux.NewRawPacker(sink, opts)
		if err != nil {
			return err
		}
		if _, err := io.Copy(rp, in); err != nil {
			return err
		}
		return rp.Close()
	}

	var pk *mux.Packetizer
	var err error
	if mode == mux.ModeCCSDSPadded {
		pk, err = mux.NewPaddedPacketizer(sink, opts)
	} else {
		pk, err = mux.NewPacketizer(sink, opts)
	}
	if err != nil {
		return err
	}
	r := ccsds.NewReader(in)
	for {
		p, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read packet %d: %w", r.Count(), err)
		}
		if err := pk.WritePacket(p); err != nil {
			return err
		}
	}
	if err := pk.Close(); err != nil {
		return err
	}
	if n := pk.Skipped(); n > 0 {
		common.Logf("%d packets larger than the data zone were skipped", n)
	}
	return nil
}

// closeOutput flushes the output and keeps the first error.
func closeOutput(out io.Closer, err error) error {
	cerr := out.Close()
	if err != nil {
		return err
	}
	return cerr
}
