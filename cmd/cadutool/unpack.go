package main

import (
	"github.com/spf13/cobra"

	"example.com/cadugate/internal/cadu"
	"example.com/cadugate/internal/capture"
	"example.com/cadugate/internal/mux"
)

var unpackCmd = &cobra.Command{
	Use:   "unpack",
	Short: "Extract the data zones of a CADU stream",
	Long: `unpack writes the data zones of a CADU stream. In the default ccsds mode
everything before the first packet header is discarded and the discarded
frame and byte counts are logged. --raw writes every data zone.`,
	Args: cobra.NoArgs,
	RunE: runUnpack,
}

var (
	unpackIn         string
	unpackOut        string
	unpackRaw        bool
	unpackRandomised bool
)

func init() {
	rootCmd.AddCommand(unpackCmd)
	unpackCmd.Flags().StringVar(&unpackIn, "in", capture.Stdio, "input CADU stream")
	unpackCmd.Flags().StringVar(&unpackOut, "out", capture.Stdio, "output stream")
	unpackCmd.Flags().BoolVar(&unpackRaw, "raw", false, "write every data zone without alignment")
	registerRandomised(unpackCmd, &unpackRandomised)
}

func runUnpack(cmd *cobra.Command, args []string) error {
	in, err := openInput(unpackIn)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := capture.Create(unpackOut)
	if err != nil {
		return err
	}
	r := cadu.NewReader(in, cadu.ReaderOptions{Randomized: randomised(cmd, unpackRandomised)})
	r.SetMetrics(metrics)
	d := mux.NewDepacketizer(out, mux.DepacketizerOptions{Raw: unpackRaw, Metrics: metrics})
	err = unpack(r, d)
	return closeOutput(out, err)
}

func unpack(r *cadu.Reader, d *mux.Depacketizer) error {
	if err := eachFrame(r, d.WriteFrame); err != nil {
		d.Close()
		return err
	}
	return d.Close()
}
