package rules

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"example.com/cadugate/internal/cadu"
	"example.com/cadugate/internal/capture"
	"example.com/cadugate/internal/common"
)

type Severity string

const (
	ERROR Severity = "ERROR"
	WARN  Severity = "WARN"
	INFO  Severity = "INFO"
)

type Rule struct {
	RuleId   string         `json:"ruleId"`
	Name     string         `json:"name,omitempty"`
	Severity Severity       `json:"severity"`
	Check    string         `json:"check"`
	Refs     []string       `json:"refs"`
	Params   map[string]any `json:"params,omitempty"`
	Message  string         `json:"message"`
}

type RulePack struct {
	RulePackId string `json:"rulePackId"`
	Version    string `json:"version"`
	Rules      []Rule `json:"rules"`
}

type Diagnostic struct {
	Ts               time.Time `json:"ts"`
	File             string    `json:"file"`
	FrameIndex       *int      `json:"frameIndex,omitempty"`
	Offset           string    `json:"offset,omitempty"`
	FrameCount       *uint32   `json:"frameCount,omitempty"`
	VirtualChannelId *uint8    `json:"virtualChannelId,omitempty"`
	RuleId           string    `json:"ruleId"`
	Severity         Severity  `json:"severity"`
	Message          string    `json:"message"`
	Refs             []string  `json:"refs"`
}

type AcceptanceReport struct {
	Summary struct {
		Total    int  `json:"total"`
		Errors   int  `json:"errors"`
		Warnings int  `json:"warnings"`
		Frames   int  `json:"frames"`
		Pass     bool `json:"pass"`
	} `json:"summary"`
	RuleMatrix []RuleCount  `json:"ruleMatrix"`
	Findings   []Diagnostic `json:"findings,omitempty"`
}

// RuleCount tallies findings per rule and severity.
type RuleCount struct {
	RuleId   string `json:"ruleId"`
	Errors   int    `json:"errors"`
	Warnings int    `json:"warnings"`
	Info     int    `json:"info"`
}

// FrameRecord is the indexed header of one frame.
type FrameRecord struct {
	Offset             int64
	Version            uint8
	SpacecraftID       uint8
	VirtualChannelID   uint8
	FrameCount         uint32
	Replay             bool
	VCDUSpare          uint8
	MPDUSpare          uint8
	FirstHeaderPointer uint16
	ChecksumOK         bool
}

// FrameIndex summarizes one pass over a capture.
type FrameIndex struct {
	Frames       []FrameRecord
	SkippedBytes int64
	Truncated    bool
}

type Context struct {
	InputFile  string
	Randomized bool
	Metrics    *common.Metrics

	Index *FrameIndex
}

// EnsureFrameIndex reads the capture once and records every frame header.
func (ctx *Context) EnsureFrameIndex() error {
	if ctx == nil {
		return errors.New("nil context")
	}
	if ctx.Index != nil {
		return nil
	}
	if ctx.InputFile == "" {
		return errors.New("no input file")
	}
	in, err := capture.Open(ctx.InputFile)
	if err != nil {
		return err
	}
	defer in.Close()
	if ctx.Metrics != nil && in.Size > 0 {
		ctx.Metrics.SetTotalBytes(in.Size)
	}
	idx, err := BuildIndex(in, ctx.Randomized, ctx.Metrics)
	if err != nil {
		return err
	}
	ctx.Index = idx
	return nil
}

// BuildIndex indexes a frame stream. A truncated trailing frame is recorded
// and ends the pass.
func BuildIndex(r io.Reader, randomized bool, m *common.Metrics) (*FrameIndex, error) {
	reader := cadu.NewReader(r, cadu.ReaderOptions{Randomized: randomized})
	reader.SetMetrics(m)
	idx := &FrameIndex{}
	for {
		f, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, cadu.ErrTruncatedFrame) {
				idx.Truncated = true
				break
			}
			return nil, err
		}
		rec := FrameRecord{
			Offset:             reader.Offset(),
			Version:            f.Version(),
			SpacecraftID:       f.SpacecraftID(),
			VirtualChannelID:   f.VirtualChannelID(),
			FrameCount:         f.FrameCount(),
			Replay:             f.Replay(),
			VCDUSpare:          f.VCDUSpare(),
			MPDUSpare:          f.MPDUSpare(),
			FirstHeaderPointer: f.FirstHeaderPointer(),
			ChecksumOK:         f.ValidateChecksum(),
		}
		if !rec.ChecksumOK && m != nil {
			m.IncChecksumFailure()
		}
		idx.Frames = append(idx.Frames, rec)
	}
	idx.SkippedBytes = reader.Skipped()
	return idx, nil
}

type Engine struct {
	rulePack    RulePack
	registry    map[string]CheckFunc
	diagnostics []Diagnostic
	maxFindings int
}

const defaultMaxFindings = 100

func NewEngine(rp RulePack) *Engine {
	return &Engine{
		rulePack:    rp,
		registry:    make(map[string]CheckFunc),
		maxFindings: defaultMaxFindings,
	}
}

// CheckFunc inspects the indexed capture and returns its findings.
type CheckFunc func(ctx *Context, rule Rule) ([]Diagnostic, error)

func (e *Engine) Register(name string, f CheckFunc) {
	e.registry[name] = f
}

func (e *Engine) Eval(ctx *Context) ([]Diagnostic, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}
	if err := ctx.EnsureFrameIndex(); err != nil {
		return nil, err
	}
	var diags []Diagnostic
	for _, r := range e.rulePack.Rules {
		if r.Check == "" {
			continue
		}
		fn, ok := e.registry[r.Check]
		if !ok {
			diags = append(diags, Diagnostic{
				Ts: time.Now(), File: ctx.InputFile, RuleId: r.RuleId, Severity: WARN,
				Message: "no check for rule", Refs: r.Refs,
			})
			continue
		}
		found, err := fn(ctx, r)
		if err != nil {
			diags = append(diags, Diagnostic{
				Ts: time.Now(), File: ctx.InputFile, RuleId: r.RuleId, Severity: ERROR,
				Message: "check failed (" + err.Error() + ")", Refs: r.Refs,
			})
			continue
		}
		diags = append(diags, e.limit(ctx, r, found)...)
	}
	e.diagnostics = diags
	return diags, nil
}

// limit keeps the first maxFindings per rule and appends a summary of the rest.
func (e *Engine) limit(ctx *Context, r Rule, found []Diagnostic) []Diagnostic {
	if e.maxFindings <= 0 || len(found) <= e.maxFindings {
		return found
	}
	kept := append([]Diagnostic(nil), found[:e.maxFindings]...)
	kept = append(kept, Diagnostic{
		Ts: time.Now(), File: ctx.InputFile, RuleId: r.RuleId, Severity: found[e.maxFindings].Severity,
		Message: fmt.Sprintf("%d further findings suppressed", len(found)-e.maxFindings), Refs: r.Refs,
	})
	return kept
}

func (e *Engine) Diagnostics() []Diagnostic {
	return e.diagnostics
}

func (e *Engine) WriteDiagnosticsNDJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return e.WriteNDJSON(f)
}

func (e *Engine) WriteNDJSON(out io.Writer) error {
	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	for _, d := range e.diagnostics {
		if err := enc.Encode(d); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (e *Engine) SetConfigValue(key string, value any) {
	if e == nil {
		return
	}
	switch key {
	case "diag.max_findings":
		switch v := value.(type) {
		case int:
			e.maxFindings = v
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				e.maxFindings = n
			}
		}
	}
}

func (e *Engine) MakeAcceptance(ctx *Context) AcceptanceReport {
	var rep AcceptanceReport
	var errs, warns int
	counts := make(map[string]*RuleCount)
	for _, r := range e.rulePack.Rules {
		counts[r.RuleId] = &RuleCount{RuleId: r.RuleId}
	}
	for _, d := range e.diagnostics {
		c, ok := counts[d.RuleId]
		if !ok {
			c = &RuleCount{RuleId: d.RuleId}
			counts[d.RuleId] = c
		}
		switch d.Severity {
		case ERROR:
			errs++
			c.Errors++
		case WARN:
			warns++
			c.Warnings++
		default:
			c.Info++
		}
	}
	for _, r := range e.rulePack.Rules {
		rep.RuleMatrix = append(rep.RuleMatrix, *counts[r.RuleId])
	}
	rep.Summary.Total = len(e.diagnostics)
	rep.Summary.Errors = errs
	rep.Summary.Warnings = warns
	if ctx != nil && ctx.Index != nil {
		rep.Summary.Frames = len(ctx.Index.Frames)
	}
	rep.Summary.Pass = errs == 0
	rep.Findings = e.diagnostics
	return rep
}

func LoadRulePack(path string) (RulePack, error) {
	var rp RulePack
	b, err := os.ReadFile(path)
	if err != nil {
		return rp, err
	}
	err = json.Unmarshal(b, &rp)
	return rp, err
}
