package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/cadugate/internal/capture"
	"example.com/cadugate/internal/ccsds"
	"example.com/cadugate/internal/dict"
)

var ccsdsCmd = &cobra.Command{
	Use:   "ccsds",
	Short: "Build, split, list and filter CCSDS space packet streams",
}

var ccsdsPackCmd = &cobra.Command{
	Use:   "pack",
	Short: "Wrap a byte stream into CCSDS packets",
	Long: `pack wraps its input into packets of at most 65536 data bytes. Input that
needs more than one packet is segmented with first, continuation and last
sequence flags and an incrementing sequence count.`,
	Args: cobra.NoArgs,
	RunE: runCCSDSPack,
}

var ccsdsUnpackCmd = &cobra.Command{
	Use:   "unpack",
	Short: "Write the data fields of a packet stream",
	Args:  cobra.NoArgs,
	RunE:  runCCSDSUnpack,
}

var ccsdsInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the primary header of every packet as tab-separated columns",
	Args:  cobra.NoArgs,
	RunE:  runCCSDSInfo,
}

var ccsdsFilterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Keep packets whose header fields match",
	Long: `filter keeps a packet when, for every field given, its value is one of the
listed values and, for every --except-* field, it is none of them. --invert
keeps the packets that would otherwise be dropped.`,
	Args: cobra.NoArgs,
	RunE: runCCSDSFilter,
}

var (
	packetIO frameIO

	tmplVersion    int
	tmplType       string
	tmplSecHdrFlag bool
	tmplAppID      string
	tmplSeqCount   int

	stripSecHdr  bool
	secHdrLength int

	filterInclude = map[ccsds.Field]*[]string{}
	filterExclude = map[ccsds.Field]*[]string{}
	filterInvert  bool
)

var filterFields = []ccsds.Field{
	ccsds.FieldVersion,
	ccsds.FieldType,
	ccsds.FieldSecHdrFlag,
	ccsds.FieldAppID,
	ccsds.FieldSeqFlags,
	ccsds.FieldSeqCount,
}

func init() {
	rootCmd.AddCommand(ccsdsCmd)
	ccsdsCmd.AddCommand(ccsdsPackCmd, ccsdsUnpackCmd, ccsdsInfoCmd, ccsdsFilterCmd)
	// The subcommands run one at a time, so they share the --in/--out pair.
	packetIO.register(ccsdsPackCmd, "byte")
	for _, c := range []*cobra.Command{ccsdsUnpackCmd, ccsdsInfoCmd, ccsdsFilterCmd} {
		packetIO.register(c, "packet")
	}

	f := ccsdsPackCmd.Flags()
	f.IntVarP(&tmplVersion, "version", "n", 0, "packet version number (0-7)")
	f.StringVarP(&tmplType, "type", "t", "telemetry", "telemetry|telecommand")
	f.BoolVar(&tmplSecHdrFlag, "sec-hdr-flag", false, "set the secondary header flag")
	f.StringVarP(&tmplAppID, "app-id", "a", "0", "application ID: a dictionary name or 0-2047")
	f.IntVarP(&tmplSeqCount, "seq-cnt", "c", 0, "first sequence count (0-16383)")

	ccsdsUnpackCmd.Flags().BoolVar(&stripSecHdr, "strip-secondary-header", false,
		"omit the secondary header of packets that carry one")
	for _, c := range []*cobra.Command{ccsdsUnpackCmd, ccsdsInfoCmd} {
		c.Flags().IntVar(&secHdrLength, "secondary-header-length", 0, "secondary header length in bytes (default from config)")
	}

	for _, field := range filterFields {
		inc, exc := new([]string), new([]string)
		filterInclude[field], filterExclude[field] = inc, exc
		ccsdsFilterCmd.Flags().StringSliceVar(inc, field.String(), nil, "keep packets with these "+field.String()+" values")
		ccsdsFilterCmd.Flags().StringSliceVar(exc, "except-"+field.String(), nil, "drop packets with these "+field.String()+" values")
	}
	ccsdsFilterCmd.Flags().BoolVar(&filterInvert, "invert", false, "keep the packets that do not match")
}

// packetStream opens --in and --out and hands fn a packet reader.
func packetStream(fn func(r *ccsds.Reader, out io.Writer) error) error {
	in, err := openInput(packetIO.in)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := capture.Create(packetIO.out)
	if err != nil {
		return err
	}
	return closeOutput(out, fn(ccsds.NewReader(in), out))
}

// eachPacket feeds every packet of r to fn.
func eachPacket(r *ccsds.Reader, fn func(*ccsds.Packet) error) error {
	for {
		p, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("packet %d: %w", r.Count(), err)
		}
		if metrics != nil {
			metrics.AddPacket(int64(p.Len()))
		}
		if err := fn(p); err != nil {
			return err
		}
	}
}

func runCCSDSPack(cmd *cobra.Command, args []string) error {
	typ, err := ccsds.ParseType(tmplType)
	if err != nil {
		return err
	}
	app, err := store.Resolve(dict.Application, tmplAppID)
	if err != nil {
		return fmt.Errorf("app-id: %w", err)
	}
	if err := checkRange("version", tmplVersion, ccsds.VersionBits); err != nil {
		return err
	}
	if err := checkRange("seq-cnt", tmplSeqCount, ccsds.SeqCountBits); err != nil {
		return err
	}
	tmpl := ccsds.Template{
		Version:    uint8(tmplVersion),
		Type:       uint8(typ),
		SecHdrFlag: tmplSecHdrFlag,
		AppID:      uint16(app),
		SeqCount:   uint16(tmplSeqCount),
	}
	in, err := openInput(packetIO.in)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := capture.Create(packetIO.out)
	if err != nil {
		return err
	}
	err = ccsds.Segment(in, tmpl, func(p *ccsds.Packet) error {
		if metrics != nil {
			metrics.AddPacket(int64(p.Len()))
		}
		_, err := p.WriteTo(out)
		return err
	})
	return closeOutput(out, err)
}

func secondaryHeaderLength(cmd *cobra.Command) int {
	if cmd.Flags().Changed("secondary-header-length") {
		return secHdrLength
	}
	return cfg.SecondaryHeaderLength
}

func runCCSDSUnpack(cmd *cobra.Command, args []string) error {
	shl := 0
	if stripSecHdr {
		shl = secondaryHeaderLength(cmd)
	}
	return packetStream(func(r *ccsds.Reader, out io.Writer) error {
		return eachPacket(r, func(p *ccsds.Packet) error {
			df, err := p.SplitDataField(shl)
			if err != nil {
				return err
			}
			_, err = out.Write(df.UserData)
			return err
		})
	})
}

func runCCSDSInfo(cmd *cobra.Command, args []string) error {
	shl := secondaryHeaderLength(cmd)
	return packetStream(func(r *ccsds.Reader, out io.Writer) error {
		return writePacketInfo(r, out, shl)
	})
}

func writePacketInfo(r *ccsds.Reader, out io.Writer, shl int) error {
	tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "version\ttype\tsec-hdr-flag\tapp-id\tseq-flags\tseq-cnt\tdata-len\tsecondary-header")
	err := eachPacket(r, func(p *ccsds.Packet) error {
		typ := "telemetry"
		if p.Type() == ccsds.TypeTelecommand {
			typ = "telecommand"
		}
		app := fmt.Sprint(p.AppID())
		if name, ok := store.Name(dict.Application, int(p.AppID())); ok {
			app += " (" + name + ")"
		}
		sec := "-"
		if df, err := p.SplitDataField(shl); err == nil && df.Kind == ccsds.WithSecondaryHeader {
			sec = fmt.Sprintf("%X", df.SecondaryHeader)
		}
		_, err := fmt.Fprintf(tw, "%d\t%s\t%t\t%s\t%s\t%d\t%d\t%s\n",
			p.Version(), typ, p.SecondaryHeaderFlag(), app, ccsds.SeqFlagsName(p.SeqFlags()),
			p.SeqCount(), len(p.Data()), sec)
		return err
	})
	if err != nil {
		return err
	}
	return tw.Flush()
}

func runCCSDSFilter(cmd *cobra.Command, args []string) error {
	sel, err := buildSelector()
	if err != nil {
		return err
	}
	return packetStream(func(r *ccsds.Reader, out io.Writer) error {
		return eachPacket(r, func(p *ccsds.Packet) error {
			if !sel.Match(p) {
				return nil
			}
			_, err := p.WriteTo(out)
			return err
		})
	})
}

func buildSelector() (*ccsds.Selector, error) {
	sel := ccsds.NewSelector()
	sel.Invert = filterInvert
	for _, field := range filterFields {
		inc, err := parseFieldValues(field, *filterInclude[field])
		if err != nil {
			return nil, err
		}
		if len(inc) > 0 {
			if err := sel.Include(field, inc...); err != nil {
				return nil, err
			}
		}
		exc, err := parseFieldValues(field, *filterExclude[field])
		if err != nil {
			return nil, err
		}
		if len(exc) > 0 {
			if err := sel.Exclude(field, exc...); err != nil {
				return nil, err
			}
		}
	}
	return sel, nil
}

// parseFieldValues accepts names where a field has them: packet types,
// sequence flags and dictionary application names.
func parseFieldValues(field ccsds.Field, raw []string) ([]int, error) {
	values := make([]int, 0, len(raw))
	for _, s := range raw {
		var v int
		var err error
		if field == ccsds.FieldAppID {
			v, err = store.Resolve(dict.Application, s)
		} else {
			v, err = ccsds.ParseValue(field, s)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		values = append(values, v)
	}
	return values, nil
}
