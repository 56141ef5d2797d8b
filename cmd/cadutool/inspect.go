package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"example.com/cadugate/internal/capture"
	"example.com/cadugate/internal/common"
	"example.com/cadugate/internal/dict"
	"example.com/cadugate/internal/report"
	"example.com/cadugate/internal/rules"
)

var errAcceptanceFailed = errors.New("acceptance failed")

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Check a CADU capture and write diagnostics and an acceptance report",
	Long: `inspect indexes every frame of a capture and runs the rule pack over it:
checksums, per-channel counter continuity, first header pointer range, spare
bits, identifiers and stream alignment. Diagnostics are written as NDJSON.
The command fails when any ERROR finding is reported.`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

var (
	inspectIn          string
	inspectRules       string
	inspectOut         string
	inspectAcceptance  string
	inspectPDF         string
	inspectLang        string
	inspectSCID        string
	inspectVCIDs       []string
	inspectMaxFindings int
	inspectRandomised  bool
)

func init() {
	rootCmd.AddCommand(inspectCmd)
	f := inspectCmd.Flags()
	f.StringVar(&inspectIn, "in", capture.Stdio, "input CADU capture")
	f.StringVar(&inspectRules, "rules", "", "rule pack JSON (default: built-in checks)")
	f.StringVar(&inspectOut, "out", capture.Stdio, "diagnostics NDJSON output")
	f.StringVar(&inspectAcceptance, "acceptance", "", "acceptance report JSON output")
	f.StringVar(&inspectPDF, "pdf", "", "acceptance report PDF output")
	f.StringVar(&inspectLang, "lang", string(report.LangEnglish), fmt.Sprintf("PDF language %v", report.Languages()))
	f.StringVar(&inspectSCID, "expect-scid", "", "expected spacecraft: a dictionary name or 0-255")
	f.StringSliceVar(&inspectVCIDs, "expect-vcid", nil, "expected virtual channels: names or 0-63")
	f.IntVar(&inspectMaxFindings, "max-findings", 100, "findings kept per rule; 0 keeps all")
	registerRandomised(inspectCmd, &inspectRandomised)
}

func runInspect(cmd *cobra.Command, args []string) error {
	rp := rules.DefaultRulePack()
	if inspectRules != "" {
		var err error
		if rp, err = rules.LoadRulePack(inspectRules); err != nil {
			return fmt.Errorf("load rule pack: %w", err)
		}
	}
	if err := applyExpectations(&rp); err != nil {
		return err
	}
	lang, err := report.ParseLanguage(inspectLang)
	if err != nil {
		return err
	}

	eng := rules.NewEngine(rp)
	eng.RegisterBuiltins()
	eng.SetConfigValue("diag.max_findings", inspectMaxFindings)
	ctx := &rules.Context{
		InputFile:  inspectIn,
		Randomized: randomised(cmd, inspectRandomised),
		Metrics:    metrics,
	}
	if _, err := eng.Eval(ctx); err != nil {
		return err
	}

	out, err := capture.Create(inspectOut)
	if err != nil {
		return err
	}
	if err := closeOutput(out, eng.WriteNDJSON(out)); err != nil {
		return err
	}

	acc := eng.MakeAcceptance(ctx)
	if inspectAcceptance != "" {
		if err := report.SaveAcceptanceJSON(acc, inspectAcceptance); err != nil {
			return err
		}
	}
	if inspectPDF != "" {
		opts := report.PDFOptions{Lang: lang}
		if inspectIn != capture.Stdio {
			if sum, _, err := common.Sha256OfFile(inspectIn); err == nil {
				opts.CaptureHash = sum
			}
		}
		if err := report.SaveAcceptancePDF(acc, inspectPDF, opts); err != nil {
			return err
		}
	}
	common.Logf("inspect: %d frames, %d findings (%d errors, %d warnings)",
		acc.Summary.Frames, acc.Summary.Total, acc.Summary.Errors, acc.Summary.Warnings)
	if !acc.Summary.Pass {
		return errAcceptanceFailed
	}
	return nil
}

// applyExpectations copies --expect-* values into every CheckExpectedIDs rule.
func applyExpectations(rp *rules.RulePack) error {
	if inspectSCID == "" && len(inspectVCIDs) == 0 {
		return nil
	}
	params := map[string]any{}
	if inspectSCID != "" {
		v, err := store.Resolve(dict.Spacecraft, inspectSCID)
		if err != nil {
			return fmt.Errorf("expect-scid: %w", err)
		}
		params["scid"] = v
	}
	if len(inspectVCIDs) > 0 {
		vcids := make([]int, 0, len(inspectVCIDs))
		for _, s := range inspectVCIDs {
			v, err := store.Resolve(dict.VirtualChannel, s)
			if err != nil {
				return fmt.Errorf("expect-vcid: %w", err)
			}
			vcids = append(vcids, v)
		}
		params["vcids"] = vcids
	}
	for i := range rp.Rules {
		if rp.Rules[i].Check != "CheckExpectedIDs" {
			continue
		}
		if rp.Rules[i].Params == nil {
			rp.Rules[i].Params = map[string]any{}
		}
		for k, v := range params {
			rp.Rules[i].Params[k] = v
		}
	}
	return nil
}
