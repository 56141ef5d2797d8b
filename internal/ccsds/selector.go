package ccsds

import (
	"fmt"
	"strconv"
	"strings"
)

// Field names a primary header field for selection.
type Field int

const (
	FieldVersion Field = iota
	FieldType
	FieldSecHdrFlag
	FieldAppID
	FieldSeqFlags
	FieldSeqCount
)

var fieldNames = map[Field]string{
	FieldVersion:    "version",
	FieldType:       "type",
	FieldSecHdrFlag: "sec-hdr-flag",
	FieldAppID:      "app-id",
	FieldSeqFlags:   "seq-flags",
	FieldSeqCount:   "seq-cnt",
}

var fieldBits = map[Field]int{
	FieldVersion:    VersionBits,
	FieldType:       TypeBits,
	FieldSecHdrFlag: SecHdrFlagBits,
	FieldAppID:      AppIDBits,
	FieldSeqFlags:   SeqFlagsBits,
	FieldSeqCount:   SeqCountBits,
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// Value extracts the field from a packet header.
func (f Field) Value(p *Packet) int {
	switch f {
	case FieldVersion:
		return int(p.Version())
	case FieldType:
		return int(p.Type())
	case FieldSecHdrFlag:
		if p.SecondaryHeaderFlag() {
			return 1
		}
		return 0
	case FieldAppID:
		return int(p.AppID())
	case FieldSeqFlags:
		return int(p.SeqFlags())
	case FieldSeqCount:
		return int(p.SeqCount())
	}
	return -1
}

// Selector keeps packets whose header fields are in every include set and in
// no exclude set. Fields without a set are unconstrained.
type Selector struct {
	include map[Field]map[int]struct{}
	exclude map[Field]map[int]struct{}
	Invert  bool
}

func NewSelector() *Selector {
	return &Selector{
		include: make(map[Field]map[int]struct{}),
		exclude: make(map[Field]map[int]struct{}),
	}
}

func (s *Selector) Include(f Field, values ...int) error {
	return addValues(s.include, f, values)
}

func (s *Selector) Exclude(f Field, values ...int) error {
	return addValues(s.exclude, f, values)
}

func addValues(sets map[Field]map[int]struct{}, f Field, values []int) error {
	bits, ok := fieldBits[f]
	if !ok {
		return fmt.Errorf("ccsds: unknown field %d", int(f))
	}
	for _, v := range values {
		if v < 0 || v >= 1<<bits {
			return fmt.Errorf("%w: %s %d does not fit in %d bits", ErrFieldRange, f, v, bits)
		}
		set := sets[f]
		if set == nil {
			set = make(map[int]struct{})
			sets[f] = set
		}
		set[v] = struct{}{}
	}
	return nil
}

// Empty reports whether no constraint has been added.
func (s *Selector) Empty() bool {
	return len(s.include) == 0 && len(s.exclude) == 0
}

func (s *Selector) Match(p *Packet) bool {
	return s.match(p) != s.Invert
}

func (s *Selector) match(p *Packet) bool {
	for f, set := range s.include {
		if _, ok := set[f.Value(p)]; !ok {
			return false
		}
	}
	for f, set := range s.exclude {
		if _, ok := set[f.Value(p)]; ok {
			return false
		}
	}
	return true
}

// ParseType accepts "telemetry", "telecommand" or an integer.
func ParseType(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "telemetry", "tm":
		return int(TypeTelemetry), nil
	case "telecommand", "tc":
		return int(TypeTelecommand), nil
	}
	return parseBounded(s, FieldType)
}

// ParseSeqFlags accepts "first", "last", "continuation", "unsegmented" or an
// integer.
func ParseSeqFlags(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "continuation":
		return int(SeqContinuation), nil
	case "first":
		return int(SeqFirst), nil
	case "last":
		return int(SeqLast), nil
	case "unsegmented":
		return int(SeqUnsegmented), nil
	}
	return parseBounded(s, FieldSeqFlags)
}

// SeqFlagsName is the inverse of ParseSeqFlags.
func SeqFlagsName(f uint8) string {
	switch f {
	case SeqContinuation:
		return "continuation"
	case SeqFirst:
		return "first"
	case SeqLast:
		return "last"
	case SeqUnsegmented:
		return "unsegmented"
	}
	return strconv.Itoa(int(f))
}

// ParseValue parses a plain integer for the given field.
func ParseValue(f Field, s string) (int, error) {
	switch f {
	case FieldType:
		return ParseType(s)
	case FieldSeqFlags:
		return ParseSeqFlags(s)
	}
	return parseBounded(s, f)
}

func parseBounded(s string, f Field) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("ccsds: invalid %s %q", f, s)
	}
	bits := fieldBits[f]
	if v < 0 || v >= 1<<bits {
		return 0, fmt.Errorf("%w: %s %d does not fit in %d bits", ErrFieldRange, f, v, bits)
	}
	return v, nil
}
