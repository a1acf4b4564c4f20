package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"veritas/internal/cache"
	"veritas/internal/deps"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const detailLabelWidth = 16

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func colorVerdict(rec *cache.Record, colorize bool) string {
	label := rec.VerdictLabel()
	if !colorize {
		return label
	}
	if rec.Verdict.Synthetic() {
		return ansiRed + label + ansiReset
	}
	return ansiGreen + label + ansiReset
}

// renderRecord prints a detailed, line-per-field view of one analysis.
func renderRecord(out io.Writer, rec *cache.Record, cached, colorize bool) {
	header := "== Analysis =="
	if colorize {
		header = ansiBlue + header + ansiReset
	}
	fmt.Fprintln(out, header)

	line := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(out, "  %-*s %s\n", detailLabelWidth, label+":", value)
	}
	line("Verdict", colorVerdict(rec, colorize))
	line("Artifact score", formatScore(rec.ArtifactScore))
	line("Motion score", formatScore(rec.MotionScore))
	line("Policy", rec.Policy)
	line("Frames", fmt.Sprintf("%d", rec.SampledFrames))
	line("URL", rec.CanonicalURL)
	line("Video ID", rec.VideoID)
	line("Title", rec.Title)
	if rec.DurationSeconds > 0 {
		line("Duration", formatDuration(rec.DurationSeconds))
	}
	line("Record", rec.ID)
	line("Updated", formatTime(rec.UpdatedAt))
	if cached {
		note := "served from cache (use --force to recompute)"
		if colorize {
			note = ansiYellow + note + ansiReset
		}
		line("Source", note)
	}

	if rec.Accuracy == "" && rec.Transcript == "" {
		return
	}
	fmt.Fprintln(out)
	line("Accuracy", rec.Accuracy)
	line("Why", rec.AccuracyReason)
	line("Summary", rec.Reason)
	for i, u := range rec.SourceURLs {
		label := ""
		if i == 0 {
			label = "Sources:"
		}
		fmt.Fprintf(out, "  %-*s %s\n", detailLabelWidth, label, u)
	}
	if rec.Transcript != "" {
		line("Transcript", truncate(strings.ReplaceAll(rec.Transcript, "\n", " "), 120))
	}
}

// recordTable lists analyses with scores right-aligned.
func recordTable(records []*cache.Record, colorize bool) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Verdict", "Artifact", "Motion", "Policy", "URL", "Updated"})
	for _, rec := range records {
		tw.AppendRow(table.Row{
			colorVerdict(rec, colorize),
			formatScore(rec.ArtifactScore),
			formatScore(rec.MotionScore),
			rec.Policy,
			truncate(rec.CanonicalURL, 60),
			formatTime(rec.UpdatedAt),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Artifact", Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Name: "Motion", Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

// dependencyTable shows one row per external binary, missing ones coloured
// by whether analysis can run without them.
func dependencyTable(statuses []deps.Status, colorize bool) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Dependency", "Command", "Status", "Location", "Purpose"})
	for _, status := range statuses {
		state, color := "ok", ansiGreen
		switch {
		case !status.Available && status.Optional:
			state, color = "missing (optional)", ansiYellow
		case !status.Available:
			state, color = "missing", ansiRed
		}
		if colorize {
			state = color + state + ansiReset
		}
		location := status.Path
		if location == "" {
			location = status.Detail
		}
		tw.AppendRow(table.Row{status.Name, status.Command, state, location, status.Description})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Location", WidthMax: 60},
	})
	return tw.Render()
}

// renderVerification prints a stored text verification.
func renderVerification(out io.Writer, v *cache.Verification, colorize bool) {
	header := "== Verification =="
	if colorize {
		header = ansiBlue + header + ansiReset
	}
	fmt.Fprintln(out, header)
	line := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(out, "  %-*s %s\n", detailLabelWidth, label+":", value)
	}
	line("Accuracy", v.Accuracy)
	line("Why", v.AccuracyReason)
	line("Summary", v.Reason)
	for i, u := range v.URLs {
		label := ""
		if i == 0 {
			label = "Sources:"
		}
		fmt.Fprintf(out, "  %-*s %s\n", detailLabelWidth, label, u)
	}
	line("Text", truncate(strings.ReplaceAll(v.InputText, "\n", " "), 120))
	line("Record", v.ID)
	line("Checked", formatTime(v.CreatedAt))
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

func formatDuration(seconds float64) string {
	return (time.Duration(seconds * float64(time.Second))).Round(time.Second).String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
