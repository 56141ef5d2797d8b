package rules

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"example.com/cadugate/internal/cadu"
)

func TestWriteDiagnosticsNDJSONIncludesFrameFields(t *testing.T) {
	eng := &Engine{}
	idx := 3
	count := uint32(77)
	eng.diagnostics = []Diagnostic{
		{
			Ts:         time.Unix(0, 0),
			File:       "input.cadu",
			FrameIndex: &idx,
			FrameCount: &count,
			RuleId:     "CADU-TEST-1",
			Severity:   ERROR,
			Message:    "frame finding",
			Refs:       []string{"ref"},
		},
		{
			Ts:       time.Unix(1, 0),
			File:     "input.cadu",
			RuleId:   "CADU-TEST-2",
			Severity: INFO,
			Message:  "stream finding",
			Refs:     []string{"ref"},
		},
	}

	outPath := filepath.Join(t.TempDir(), "diagnostics.jsonl")
	if err := eng.WriteDiagnosticsNDJSON(outPath); err != nil {
		t.Fatalf("WriteDiagnosticsNDJSON failed: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	lines := bytesTrimSplit(data)
	if len(lines) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("unmarshal first line failed: %v", err)
	}
	if v, ok := first["frameIndex"].(float64); !ok || int(v) != idx {
		t.Fatalf("frameIndex = %v, want %d", first["frameIndex"], idx)
	}
	if v, ok := first["frameCount"].(float64); !ok || uint32(v) != count {
		t.Fatalf("frameCount = %v, want %d", first["frameCount"], count)
	}

	var second map[string]any
	if err := json.Unmarshal(lines[1], &second); err != nil {
		t.Fatalf("unmarshal second line failed: %v", err)
	}
	if _, ok := second["frameIndex"]; ok {
		t.Fatalf("frameIndex should be omitted for stream findings")
	}
}

func TestEvalUnknownCheckWarns(t *testing.T) {
	rp := RulePack{Rules: []Rule{{RuleId: "X-1", Check: "NoSuchCheck", Severity: ERROR}}}
	eng := NewEngine(rp)
	ctx := &Context{InputFile: "mem", Index: &FrameIndex{}}
	diags, err := eng.Eval(ctx)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if len(diags) != 1 || diags[0].Severity != WARN {
		t.Fatalf("diags = %+v", diags)
	}
}

func TestEvalLimitsFindings(t *testing.T) {
	frames := make([]*cadu.Frame, 5)
	for i := range frames {
		f := newTestFrame(t, 1, 0, uint32(i))
		f.SetSpacecraftID(9)
		frames[i] = f
	}
	ctx := indexFrames(t, frames)
	rp := RulePack{Rules: []Rule{{
		RuleId: "IDS", Check: "CheckExpectedIDs", Severity: ERROR,
		Params: map[string]any{"scid": float64(42)},
	}}}
	eng := NewEngine(rp)
	eng.RegisterBuiltins()
	eng.SetConfigValue("diag.max_findings", "2")
	diags, err := eng.Eval(ctx)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if len(diags) != 3 {
		t.Fatalf("got %d diagnostics, want 3", len(diags))
	}
	if diags[2].Message != "3 further findings suppressed" {
		t.Fatalf("summary message = %q", diags[2].Message)
	}
}

func TestMakeAcceptance(t *testing.T) {
	rp := DefaultRulePack()
	eng := NewEngine(rp)
	eng.diagnostics = []Diagnostic{
		{RuleId: "CADU-002", Severity: ERROR},
		{RuleId: "CADU-003", Severity: WARN},
		{RuleId: "CADU-003", Severity: WARN},
		{RuleId: "CADU-005", Severity: INFO},
	}
	ctx := &Context{Index: &FrameIndex{Frames: make([]FrameRecord, 12)}}
	rep := eng.MakeAcceptance(ctx)
	if rep.Summary.Total != 4 || rep.Summary.Errors != 1 || rep.Summary.Warnings != 2 {
		t.Fatalf("summary = %+v", rep.Summary)
	}
	if rep.Summary.Pass {
		t.Fatalf("report with errors must not pass")
	}
	if rep.Summary.Frames != 12 {
		t.Fatalf("frames = %d", rep.Summary.Frames)
	}
	if len(rep.RuleMatrix) != len(rp.Rules) {
		t.Fatalf("matrix has %d rows, want %d", len(rep.RuleMatrix), len(rp.Rules))
	}
	if got := rep.RuleMatrix[2]; got.RuleId != "CADU-003" || got.Warnings != 2 {
		t.Fatalf("CADU-003 row = %+v", got)
	}
}

func TestLoadRulePack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pack.json")
	b, err := json.Marshal(DefaultRulePack())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}
	rp, err := LoadRulePack(path)
	if err != nil {
		t.Fatalf("LoadRulePack: %v", err)
	}
	if rp.RulePackId != "cadu-baseline" || len(rp.Rules) != 7 {
		t.Fatalf("loaded %+v", rp)
	}
}

func bytesTrimSplit(in []byte) [][]byte {
	in = bytes.TrimSpace(in)
	if len(in) == 0 {
		return nil
	}
	parts := bytes.Split(in, []byte{'\n'})
	out := make([][]byte, 0, len(parts))
	for _, p := range parts {
		p = bytes.TrimSpace(p)
		if len(p) == 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}
