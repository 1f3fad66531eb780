// Package summary renders escalation scan reports as PNG digests for admins.
package summary

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"os"
	"runtime"
	"sort"

	"github.com/fogleman/gg"

	"grievance/models"
)

const (
	digestWidth   = 1200
	padding       = 40
	titleFontSz   = 34
	bodyFontSz    = 20
	rowHeight     = 40
	maxDigestRows = 20
)

var (
	bgColor       = color.RGBA{R: 245, G: 247, B: 250, A: 255}
	titleColor    = color.RGBA{R: 30, G: 41, B: 59, A: 255}
	headerBgColor = color.RGBA{R: 37, G: 99, B: 235, A: 255}
	rowOddColor   = color.RGBA{R: 241, G: 245, B: 249, A: 255}
	textColor     = color.RGBA{R: 30, G: 41, B: 59, A: 255}
	mutedColor    = color.RGBA{R: 100, G: 116, B: 139, A: 255}
	levelColors   = map[int]color.RGBA{
		1: {R: 234, G: 179, B: 8, A: 255},
		2: {R: 249, G: 115, B: 22, A: 255},
		3: {R: 220, G: 38, B: 38, A: 255},
	}
)

// findFont returns the first font file that exists, or "" to use the built-in face.
func findFont(bold bool) string {
	var candidates []string
	if runtime.GOOS == "windows" {
		winRoot := os.Getenv("WINDIR")
		if winRoot == "" {
			winRoot = `C:\Windows`
		}
		if bold {
			candidates = []string{winRoot + `\Fonts\arialbd.ttf`}
		} else {
			candidates = []string{winRoot + `\Fonts\arial.ttf`}
		}
	} else if bold {
		candidates = []string{
			"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
			"/usr/share/fonts/TTF/DejaVuSans-Bold.ttf",
		}
	} else {
		candidates = []string{
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/TTF/DejaVuSans.ttf",
		}
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func useFont(dc *gg.Context, bold bool, size float64) {
	if path := findFont(bold); path != "" {
		if err := dc.LoadFontFace(path, size); err == nil {
			return
		}
	}
	// gg keeps its basic bitmap face when nothing was loaded
}

// escalatedResults returns escalations, highest level first
func escalatedResults(report *models.ScanReport) []models.EscalationResult {
	out := make([]models.EscalationResult, 0)
	for _, r := range report.Results {
		if r.Outcome == models.OutcomeEscalated {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level > out[j].Level
		}
		return out[i].ComplaintID < out[j].ComplaintID
	})
	if len(out) > maxDigestRows {
		out = out[:maxDigestRows]
	}
	return out
}

// RenderDigest draws the counters and escalations of a scan and returns PNG bytes
func RenderDigest(report *models.ScanReport) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("no scan report to render")
	}

	rows := escalatedResults(report)
	stats := []struct {
		label string
		value int
	}{
		{"Open complaints scanned", report.Scanned},
		{"SLA targets initialised", report.TargetsInitialised},
		{"Newly overdue", report.NewlyOverdue},
		{"Escalated", report.Escalated},
		{"In warning window", report.Warnings},
		{"Version conflicts", report.Conflicts},
		{"Failures", report.Failures},
	}

	height := padding*2 + 110 + len(stats)*rowHeight + 60 + rowHeight*(len(rows)+1) + 60
	dc := gg.NewContext(digestWidth, height)
	dc.SetColor(bgColor)
	dc.Clear()

	// title
	useFont(dc, true, titleFontSz)
	dc.SetColor(titleColor)
	title := "Escalation digest"
	if report.DryRun {
		title += " (dry run)"
	}
	dc.DrawString(title, padding, padding+titleFontSz)

	useFont(dc, false, bodyFontSz)
	dc.SetColor(mutedColor)
	dc.DrawString(fmt.Sprintf("%s  to  %s UTC",
		report.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		report.FinishedAt.UTC().Format("15:04:05")), padding, padding+titleFontSz+40)
	if report.Cancelled {
		dc.SetColor(levelColors[3])
		dc.DrawString("scan cancelled before completion", digestWidth/2, padding+titleFontSz+40)
	}

	y := float64(padding + 110)
	for i, s := range stats {
		if i%2 == 1 {
			dc.SetColor(rowOddColor)
			dc.DrawRectangle(padding, y, digestWidth-2*padding, rowHeight)
			dc.Fill()
		}
		dc.SetColor(textColor)
		dc.DrawStringAnchored(s.label, padding+16, y+rowHeight/2, 0, 0.5)
		dc.DrawStringAnchored(fmt.Sprint(s.value), 560, y+rowHeight/2, 1, 0.5)
		y += rowHeight
	}

	// escalation bars per level
	barX := 640.0
	barY := float64(padding + 110)
	maxCount := 1
	for level := 1; level <= models.MaxEscalationLevel; level++ {
		if report.EscalatedByLevel[level] > maxCount {
			maxCount = report.EscalatedByLevel[level]
		}
	}
	for level := 1; level <= models.MaxEscalationLevel; level++ {
		count := report.EscalatedByLevel[level]
		w := float64(count) / float64(maxCount) * 400
		dc.SetColor(textColor)
		dc.DrawStringAnchored(fmt.Sprintf("L%d", level), barX, barY+rowHeight/2, 0, 0.5)
		dc.SetColor(levelColors[level])
		dc.DrawRectangle(barX+40, barY+8, w, rowHeight-16)
		dc.Fill()
		dc.SetColor(textColor)
		dc.DrawStringAnchored(fmt.Sprint(count), barX+50+w, barY+rowHeight/2, 0, 0.5)
		barY += rowHeight
	}

	// escalated complaints table
	y += 40
	dc.SetColor(headerBgColor)
	dc.DrawRectangle(padding, y, digestWidth-2*padding, rowHeight)
	dc.Fill()
	useFont(dc, true, bodyFontSz)
	dc.SetColor(color.White)
	headers := []struct {
		text string
		x    float64
	}{{"Complaint", padding + 16}, {"Level", 280}, {"Assigned to", 360}, {"Reason", 640}}
	for _, h := range headers {
		dc.DrawStringAnchored(h.text, h.x, y+rowHeight/2, 0, 0.5)
	}
	y += rowHeight

	useFont(dc, false, bodyFontSz)
	if len(rows) == 0 {
		dc.SetColor(mutedColor)
		dc.DrawStringAnchored("No complaints escalated in this scan", padding+16, y+rowHeight/2, 0, 0.5)
	}
	for i, r := range rows {
		if i%2 == 1 {
			dc.SetColor(rowOddColor)
			dc.DrawRectangle(padding, y, digestWidth-2*padding, rowHeight)
			dc.Fill()
		}
		assignee := "unassigned"
		if r.EscalatedTo != nil {
			assignee = *r.EscalatedTo
		}
		dc.SetColor(textColor)
		dc.DrawStringAnchored(r.ComplaintID, padding+16, y+rowHeight/2, 0, 0.5)
		dc.SetColor(levelColors[r.Level])
		dc.DrawStringAnchored(fmt.Sprint(r.Level), 280, y+rowHeight/2, 0, 0.5)
		dc.SetColor(textColor)
		dc.DrawStringAnchored(assignee, 360, y+rowHeight/2, 0, 0.5)
		dc.DrawStringAnchored(r.Reason, 640, y+rowHeight/2, 0, 0.5)
		y += rowHeight
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
