package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/cadugate/internal/dict"
	"example.com/cadugate/internal/mux"
)

// headerFlags are the frame header overrides shared by the packing commands.
type headerFlags struct {
	version    int
	scid       string
	vcid       string
	counter    int
	replay     bool
	vcduSpare  int
	mpduSpare  int
	fhp        int
	randomised bool
}

func (h *headerFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVarP(&h.version, "version-number", "n", 0, "version number field (0-3)")
	f.StringVarP(&h.scid, "scid", "s", "0", "spacecraft ID: a dictionary name or 0-255")
	f.StringVarP(&h.vcid, "vcid", "i", "0", "virtual channel ID: a dictionary name or 0-63")
	f.IntVarP(&h.counter, "vcdu-counter", "c", 0, "starting frame counter, incremented per frame (0-16777215)")
	f.BoolVarP(&h.replay, "replay", "r", false, "set the replay flag")
	f.IntVar(&h.vcduSpare, "vcdu-spare", 0, "VCDU spare bits (0-127)")
	f.IntVar(&h.mpduSpare, "m-pdu-spare", 0, "M_PDU spare bits (0-31)")
	f.IntVarP(&h.fhp, "first-header-pointer", "p", 0,
		"raw: pointer of every frame; ccsds: pointer and start offset of the first frame; ccsdspad: fixed packet offset")
	registerRandomised(cmd, &h.randomised)
}

// resolve starts from the configuration file and applies every flag the
// user set.
func (h *headerFlags) resolve(cmd *cobra.Command) (mux.HeaderConfig, error) {
	hdr, err := cfg.Header(store)
	if err != nil {
		return hdr, err
	}
	f := cmd.Flags()
	if f.Changed("version-number") {
		if err := checkRange("version-number", h.version, 2); err != nil {
			return hdr, err
		}
		hdr.Version = uint8(h.version)
	}
	if f.Changed("scid") {
		v, err := store.Resolve(dict.Spacecraft, h.scid)
		if err != nil {
			return hdr, fmt.Errorf("scid: %w", err)
		}
		hdr.SpacecraftID = uint8(v)
	}
	if f.Changed("vcid") {
		v, err := store.Resolve(dict.VirtualChannel, h.vcid)
		if err != nil {
			return hdr, fmt.Errorf("vcid: %w", err)
		}
		hdr.VirtualChannelID = uint8(v)
	}
	if f.Changed("vcdu-counter") {
		if err := checkRange("vcdu-counter", h.counter, 24); err != nil {
			return hdr, err
		}
		hdr.FrameCount = uint32(h.counter)
	}
	if f.Changed("replay") {
		hdr.Replay = h.replay
	}
	if f.Changed("vcdu-spare") {
		if err := checkRange("vcdu-spare", h.vcduSpare, 7); err != nil {
			return hdr, err
		}
		hdr.VCDUSpare = uint8(h.vcduSpare)
	}
	if f.Changed("m-pdu-spare") {
		if err := checkRange("m-pdu-spare", h.mpduSpare, 5); err != nil {
			return hdr, err
		}
		hdr.MPDUSpare = uint8(h.mpduSpare)
	}
	if f.Changed("first-header-pointer") {
		if err := checkRange("first-header-pointer", h.fhp, 11); err != nil {
			return hdr, err
		}
		hdr.FirstHeaderPointer = uint16(h.fhp)
	}
	return hdr, nil
}

func checkRange(name string, v, bits int) error {
	if v < 0 || v >= 1<<bits {
		return fmt.Errorf("%s must be between 0 and %d", name, 1<<bits-1)
	}
	return nil
}

func registerRandomised(cmd *cobra.Command, dst *bool) {
	cmd.Flags().BoolVar(dst, "randomised", false, "frame stream is randomised (default from config)")
}

// randomised reports the flag value when set, else the configured default.
func randomised(cmd *cobra.Command, flag bool) bool {
	if cmd.Flags().Changed("randomised") {
		return flag
	}
	return cfg.Randomised
}
