package report

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/cadugate/internal/rules"
)

type PDFOptions struct {
	Lang Language
	// CaptureHash, when set, is printed and encoded as a QR code.
	CaptureHash string
}

// SaveAcceptancePDF renders the given acceptance report into a PDF document.
func SaveAcceptancePDF(rep rules.AcceptanceReport, out string, opts PDFOptions) error {
	tr := NewTranslator(opts.Lang)
	pdf := gofpdf.New("P", "mm", "A4", "")
	enc := pdf.UnicodeTranslatorFromDescriptor(codePage(tr.Lang()))
	t := func(key string) string { return enc(tr.T(key)) }
	f := func(key string, args ...interface{}) string { return enc(tr.Format(key, args...)) }

	pdf.SetTitle(tr.T("title"), true)
	pdf.SetAuthor("cadutool", false)
	pdf.SetCreator("cadutool", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, t("title"))
	if opts.CaptureHash != "" {
		if err := addCaptureHash(pdf, t("capture_sha256"), opts.CaptureHash); err != nil {
			return err
		}
	}
	addSummarySection(pdf, rep, t)
	addRuleMatrixSection(pdf, rep.RuleMatrix, t)
	addFindingsSection(pdf, rep.Findings, t, f)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func codePage(lang Language) string {
	if lang == LangTurkish {
		return "cp1254"
	}
	return "cp1252"
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addCaptureHash(pdf *gofpdf.Fpdf, label, hash string) error {
	png, err := CaptureHashToQR(hash, 256)
	if err != nil {
		return err
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("capture-qr", opts, bytes.NewReader(png))
	x, y := pdf.GetXY()
	pdf.ImageOptions("capture-qr", x, y, 30, 30, false, opts, 0, "")
	pdf.SetXY(x+34, y+8)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Cell(0, 6, label)
	pdf.SetXY(x+34, y+14)
	pdf.SetFont("Courier", "", 8)
	pdf.MultiCell(0, 4, sanitizeHash(hash), "", "L", false)
	pdf.SetXY(x, y+34)
	return nil
}

func addSummarySection(pdf *gofpdf.Fpdf, rep rules.AcceptanceReport, t func(string) string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, t("summary"))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: t("frames"), value: strconv.Itoa(rep.Summary.Frames)},
		{label: t("total_findings"), value: strconv.Itoa(rep.Summary.Total)},
		{label: t("errors"), value: strconv.Itoa(rep.Summary.Errors)},
		{label: t("warnings"), value: strconv.Itoa(rep.Summary.Warnings)},
		{label: t("overall"), value: passLabel(rep.Summary.Pass, t)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addRuleMatrixSection(pdf *gofpdf.Fpdf, rows []rules.RuleCount, t func(string) string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, t("rule_matrix"))
	pdf.Ln(9)

	headers := []string{t("col_rule"), t("col_errors"), t("col_warnings"), t("col_info")}
	widths := []float64{60, 30, 30, 30}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		values := []string{
			row.RuleId,
			strconv.Itoa(row.Errors),
			strconv.Itoa(row.Warnings),
			strconv.Itoa(row.Info),
		}
		renderTableRow(pdf, widths, values, 5)
	}
	pdf.Ln(4)
}

func addFindingsSection(pdf *gofpdf.Fpdf, findings []rules.Diagnostic, t func(string) string, f func(string, ...interface{}) string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, t("findings"))
	pdf.Ln(9)

	if len(findings) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, t("no_findings"), "", "L", false)
		return
	}

	for i, d := range findings {
		pdf.SetFont("Helvetica", "B", 10)
		header := strconv.Itoa(i+1) + ". " + d.RuleId + " (" + severityLabel(d.Severity) + ")"
		pdf.MultiCell(0, 5, header, "", "L", false)

		if msg := strings.TrimSpace(d.Message); msg != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, msg, "", "L", false)
		}
		if meta := findingMetadata(d, f); meta != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, meta, "", "L", false)
		}
		if len(d.Refs) > 0 {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, f("refs", strings.Join(d.Refs, ", ")), "", "L", false)
		}
		pdf.Ln(2)
	}
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		pdf.MultiCell(widths[i], lineHeight, strings.Join(lines, "\n"), "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func passLabel(pass bool, t func(string) string) string {
	if pass {
		return t("pass")
	}
	return t("fail")
}

func severityLabel(sev rules.Severity) string {
	if s := strings.TrimSpace(string(sev)); s != "" {
		return s
	}
	return "UNKNOWN"
}

func findingMetadata(d rules.Diagnostic, f func(string, ...interface{}) string) string {
	parts := make([]string, 0, 6)
	if !d.Ts.IsZero() {
		parts = append(parts, d.Ts.Format(time.RFC3339))
	}
	if d.File != "" {
		parts = append(parts, d.File)
	}
	if d.FrameIndex != nil {
		parts = append(parts, f("frame", *d.FrameIndex))
	}
	if d.Offset != "" {
		parts = append(parts, f("offset", d.Offset))
	}
	if d.VirtualChannelId != nil {
		parts = append(parts, f("vcid", *d.VirtualChannelId))
	}
	if d.FrameCount != nil {
		parts = append(parts, f("frame_count", *d.FrameCount))
	}
	return strings.Join(parts, " | ")
}
