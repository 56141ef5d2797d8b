package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"example.com/cadugate/internal/rules"
)

func sampleReport() rules.AcceptanceReport {
	var rep rules.AcceptanceReport
	idx := 4
	vcid := uint8(3)
	rep.Summary.Total = 1
	rep.Summary.Errors = 1
	rep.Summary.Frames = 10
	rep.RuleMatrix = []rules.RuleCount{{RuleId: "CADU-002", Errors: 1}}
	rep.Findings = []rules.Diagnostic{{
		File: "pass.cadu", FrameIndex: &idx, VirtualChannelId: &vcid, Offset: "0x1000",
		RuleId: "CADU-002", Severity: rules.ERROR, Message: "checksum mismatch", Refs: []string{"CCSDS 131.0-B"},
	}}
	return rep
}

func TestAcceptanceJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acceptance.json")
	if err := SaveAcceptanceJSON(sampleReport(), path); err != nil {
		t.Fatalf("SaveAcceptanceJSON: %v", err)
	}
	rep, err := LoadAcceptanceJSON(path)
	if err != nil {
		t.Fatalf("LoadAcceptanceJSON: %v", err)
	}
	if rep.Summary.Frames != 10 || len(rep.Findings) != 1 || *rep.Findings[0].FrameIndex != 4 {
		t.Fatalf("loaded %+v", rep)
	}
}

func TestSaveAcceptancePDF(t *testing.T) {
	for _, lang := range []Language{LangEnglish, LangTurkish} {
		path := filepath.Join(t.TempDir(), "acceptance-"+string(lang)+".pdf")
		opts := PDFOptions{Lang: lang, CaptureHash: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"}
		if err := SaveAcceptancePDF(sampleReport(), path, opts); err != nil {
			t.Fatalf("SaveAcceptancePDF(%s): %v", lang, err)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.HasPrefix(b, []byte("%PDF-")) {
			t.Fatalf("%s: output is not a PDF", lang)
		}
	}
}

func TestCaptureHashToQR(t *testing.T) {
	png, err := CaptureHashToQR(" ab:cd-12 ", 0)
	if err != nil {
		t.Fatalf("CaptureHashToQR: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("not a PNG")
	}
	if _, err := CaptureHashToQR("zz", 64); err == nil {
		t.Fatalf("expected error for hash without hex digits")
	}
}

func TestTranslator(t *testing.T) {
	tr := NewTranslator(LangTurkish)
	if got := tr.T("pass"); got != "GEÇTİ" {
		t.Fatalf("T(pass) = %q", got)
	}
	if got := tr.T("missing_key"); got != "missing_key" {
		t.Fatalf("missing key = %q", got)
	}
	if got := NewTranslator("de").Lang(); got != LangEnglish {
		t.Fatalf("fallback lang = %q", got)
	}
	if _, err := ParseLanguage("klingon"); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("ParseLanguage error = %v", err)
	}
}
