package rules

import (
	"fmt"
	"time"

	"example.com/cadugate/internal/cadu"
)

func intPtr(v int) *int { return &v }

func uint32Ptr(v uint32) *uint32 { return &v }

func uint8Ptr(v uint8) *uint8 { return &v }

func (e *Engine) RegisterBuiltins() {
	e.Register("CheckSyncMarker", CheckSyncMarker)
	e.Register("CheckFrameChecksum", CheckFrameChecksum)
	e.Register("CheckFrameCounter", CheckFrameCounter)
	e.Register("CheckFirstHeaderPointer", CheckFirstHeaderPointer)
	e.Register("CheckSpareBits", CheckSpareBits)
	e.Register("CheckExpectedIDs", CheckExpectedIDs)
	e.Register("CheckTruncatedTail", CheckTruncatedTail)
}

// DefaultRulePack enables every builtin check.
func DefaultRulePack() RulePack {
	return RulePack{
		RulePackId: "cadu-baseline",
		Version:    "1",
		Rules: []Rule{
			{RuleId: "CADU-001", Name: "sync marker", Severity: WARN, Check: "CheckSyncMarker",
				Refs: []string{"CCSDS 131.0-B"}, Message: "stream must consist of back-to-back CADUs"},
			{RuleId: "CADU-002", Name: "frame checksum", Severity: ERROR, Check: "CheckFrameChecksum",
				Refs: []string{"CCSDS 131.0-B"}, Message: "Reed-Solomon check symbols must match"},
			{RuleId: "CADU-003", Name: "frame counter", Severity: WARN, Check: "CheckFrameCounter",
				Refs: []string{"CCSDS 732.0-B"}, Message: "virtual channel frame counters must be contiguous"},
			{RuleId: "CADU-004", Name: "first header pointer", Severity: ERROR, Check: "CheckFirstHeaderPointer",
				Refs: []string{"CCSDS 732.0-B"}, Message: "first header pointer must address the data zone"},
			{RuleId: "CADU-005", Name: "spare bits", Severity: INFO, Check: "CheckSpareBits",
				Refs: []string{"CCSDS 732.0-B"}, Message: "spare fields should be zero"},
			{RuleId: "CADU-006", Name: "identifiers", Severity: ERROR, Check: "CheckExpectedIDs",
				Refs: []string{"CCSDS 732.0-B"}, Message: "frame identifiers must match the mission"},
			{RuleId: "CADU-007", Name: "truncated tail", Severity: WARN, Check: "CheckTruncatedTail",
				Refs: []string{"CCSDS 131.0-B"}, Message: "capture must end on a frame boundary"},
		},
	}
}

func frameFinding(ctx *Context, rule Rule, i int, rec FrameRecord, msg string) Diagnostic {
	return Diagnostic{
		Ts:               time.Now(),
		File:             ctx.InputFile,
		FrameIndex:       intPtr(i),
		Offset:           fmt.Sprintf("0x%X", rec.Offset),
		FrameCount:       uint32Ptr(rec.FrameCount),
		VirtualChannelId: uint8Ptr(rec.VirtualChannelID),
		RuleId:           rule.RuleId,
		Severity:         rule.Severity,
		Message:          msg,
		Refs:             rule.Refs,
	}
}

func streamFinding(ctx *Context, rule Rule, sev Severity, msg string) Diagnostic {
	return Diagnostic{
		Ts:       time.Now(),
		File:     ctx.InputFile,
		RuleId:   rule.RuleId,
		Severity: sev,
		Message:  msg,
		Refs:     rule.Refs,
	}
}

func CheckSyncMarker(ctx *Context, rule Rule) ([]Diagnostic, error) {
	idx := ctx.Index
	if len(idx.Frames) == 0 && !idx.Truncated {
		return []Diagnostic{streamFinding(ctx, rule, ERROR, "no sync marker found")}, nil
	}
	var out []Diagnostic
	if idx.SkippedBytes > 0 {
		out = append(out, streamFinding(ctx, rule, rule.Severity,
			fmt.Sprintf("%d bytes outside frames were skipped", idx.SkippedBytes)))
	}
	if len(idx.Frames) > 0 && idx.Frames[0].Offset != 0 {
		out = append(out, streamFinding(ctx, rule, rule.Severity,
			fmt.Sprintf("first sync marker at offset 0x%X", idx.Frames[0].Offset)))
	}
	return out, nil
}

func CheckFrameChecksum(ctx *Context, rule Rule) ([]Diagnostic, error) {
	var out []Diagnostic
	for i, rec := range ctx.Index.Frames {
		if !rec.ChecksumOK {
			out = append(out, frameFinding(ctx, rule, i, rec, "checksum mismatch"))
		}
	}
	return out, nil
}

// CheckFrameCounter flags gaps and repeats in each virtual channel's counter.
// Replayed frames are ignored.
func CheckFrameCounter(ctx *Context, rule Rule) ([]Diagnostic, error) {
	var out []Diagnostic
	last := make(map[uint8]uint32)
	for i, rec := range ctx.Index.Frames {
		if rec.Replay {
			continue
		}
		prev, seen := last[rec.VirtualChannelID]
		last[rec.VirtualChannelID] = rec.FrameCount
		if !seen {
			continue
		}
		want := (prev + 1) % cadu.FrameCountModulus
		if rec.FrameCount == want {
			continue
		}
		var msg string
		if rec.FrameCount == prev {
			msg = fmt.Sprintf("repeated frame count %d", rec.FrameCount)
		} else {
			gap := (rec.FrameCount + cadu.FrameCountModulus - want) % cadu.FrameCountModulus
			msg = fmt.Sprintf("frame count jumped from %d to %d (%d missing)", prev, rec.FrameCount, gap)
		}
		out = append(out, frameFinding(ctx, rule, i, rec, msg))
	}
	return out, nil
}

func CheckFirstHeaderPointer(ctx *Context, rule Rule) ([]Diagnostic, error) {
	var out []Diagnostic
	for i, rec := range ctx.Index.Frames {
		p := rec.FirstHeaderPointer
		switch {
		case p == cadu.FirstHeaderPointerNone:
		case p == cadu.FirstHeaderPointerReserved:
			out = append(out, frameFinding(ctx, rule, i, rec, "reserved first header pointer 2046"))
		case int(p) >= cadu.DataZoneLength:
			out = append(out, frameFinding(ctx, rule, i, rec,
				fmt.Sprintf("first header pointer %d beyond data zone", p)))
		}
	}
	return out, nil
}

func CheckSpareBits(ctx *Context, rule Rule) ([]Diagnostic, error) {
	var out []Diagnostic
	for i, rec := range ctx.Index.Frames {
		if rec.VCDUSpare != 0 || rec.MPDUSpare != 0 {
			out = append(out, frameFinding(ctx, rule, i, rec,
				fmt.Sprintf("spare bits set (vcdu=0x%02X mpdu=0x%X)", rec.VCDUSpare, rec.MPDUSpare)))
		}
	}
	return out, nil
}

// CheckExpectedIDs compares identifiers against the rule params "version",
// "scid" and "vcids". Absent params are not checked.
func CheckExpectedIDs(ctx *Context, rule Rule) ([]Diagnostic, error) {
	version, hasVersion, err := paramInt(rule, "version")
	if err != nil {
		return nil, err
	}
	scid, hasSCID, err := paramInt(rule, "scid")
	if err != nil {
		return nil, err
	}
	vcids, err := paramIntSet(rule, "vcids")
	if err != nil {
		return nil, err
	}
	var out []Diagnostic
	for i, rec := range ctx.Index.Frames {
		if hasVersion && int(rec.Version) != version {
			out = append(out, frameFinding(ctx, rule, i, rec,
				fmt.Sprintf("version %d, expected %d", rec.Version, version)))
		}
		if hasSCID && int(rec.SpacecraftID) != scid {
			out = append(out, frameFinding(ctx, rule, i, rec,
				fmt.Sprintf("spacecraft id %d, expected %d", rec.SpacecraftID, scid)))
		}
		if len(vcids) > 0 && !vcids[int(rec.VirtualChannelID)] {
			out = append(out, frameFinding(ctx, rule, i, rec,
				fmt.Sprintf("unexpected virtual channel %d", rec.VirtualChannelID)))
		}
	}
	return out, nil
}

func CheckTruncatedTail(ctx *Context, rule Rule) ([]Diagnostic, error) {
	if !ctx.Index.Truncated {
		return nil, nil
	}
	return []Diagnostic{streamFinding(ctx, rule, rule.Severity, "capture ends inside a frame")}, nil
}

// JSON rule packs decode numbers as float64.
func paramInt(rule Rule, key string) (int, bool, error) {
	v, ok := rule.Params[key]
	if !ok {
		return 0, false, nil
	}
	n, err := toInt(v)
	if err != nil {
		return 0, false, fmt.Errorf("param %s: %w", key, err)
	}
	return n, true, nil
}

func paramIntSet(rule Rule, key string) (map[int]bool, error) {
	v, ok := rule.Params[key]
	if !ok {
		return nil, nil
	}
	set := make(map[int]bool)
	switch vs := v.(type) {
	case []any:
		for _, x := range vs {
			n, err := toInt(x)
			if err != nil {
				return nil, fmt.Errorf("param %s: %w", key, err)
			}
			set[n] = true
		}
	case []int:
		for _, n := range vs {
			set[n] = true
		}
	default:
		return nil, fmt.Errorf("param %s: expected a list, got %T", key, v)
	}
	return set, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
