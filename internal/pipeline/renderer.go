package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/fatih/color"

	"github.com/ppiankov/eventscout/internal/model"
)

// Renderer writes batch results to disk and to the terminal
type Renderer struct {
	out io.Writer
}

// NewRenderer creates a renderer printing summaries to out (stdout if nil)
func NewRenderer(out io.Writer) *Renderer {
	if out == nil {
		out = os.Stdout
	}
	return &Renderer{out: out}
}

// RenderJSON writes the batch result as indented JSON. The file is replaced
// atomically so readers never see a partial result.
func (r *Renderer) RenderJSON(result *model.BatchResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".validated-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close result: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace result: %w", err)
	}
	return nil
}

// LoadResult reads a batch result written by RenderJSON
func LoadResult(path string) (*model.BatchResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	var result model.BatchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &result, nil
}

// RenderSummary prints a human-readable batch summary
func (r *Renderer) RenderSummary(result *model.BatchResult, verbose bool) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	stats := result.Stats
	_, _ = bold.Fprintf(r.out, "\nBatch %s\n", result.RunID)
	_, _ = fmt.Fprintf(r.out, "  Events:    %d\n", stats.Total)
	_, _ = green.Fprintf(r.out, "  Accepted:  %d\n", stats.Accepted)
	_, _ = red.Fprintf(r.out, "  Rejected:  %d\n", stats.Rejected)

	for _, reason := range sortedKeys(stats.ByReason) {
		_, _ = fmt.Fprintf(r.out, "    %-18s %d\n", reason, stats.ByReason[reason])
	}

	_, _ = fmt.Fprintf(r.out, "  Quality:   mean %.2f (high %d, medium %d, low %d)\n",
		stats.MeanOverall, stats.HighQuality, stats.MediumQuality, stats.LowQuality)
	if stats.FetchFailures > 0 {
		_, _ = yellow.Fprintf(r.out, "  Fetch failures: %d (scored without reference dates)\n", stats.FetchFailures)
	}

	if !verbose {
		return
	}

	_, _ = bold.Fprintln(r.out, "\nAccepted:")
	for _, v := range result.Accepted {
		c := green
		switch {
		case v.Score.Overall < 5:
			c = red
		case v.Score.Overall < 8:
			c = yellow
		}
		_, _ = c.Fprintf(r.out, "  %5.2f  ", v.Score.Overall)
		_, _ = fmt.Fprintf(r.out, "%s | %s %s | %s\n", v.Event.Title, v.Event.Date, v.Event.Time, v.Event.VenueName)
		for _, w := range v.Score.Warnings {
			_, _ = yellow.Fprintf(r.out, "         ! %s\n", w)
		}
	}

	if len(result.Rejected) > 0 {
		_, _ = bold.Fprintln(r.out, "\nRejected:")
		for _, rej := range result.Rejected {
			_, _ = red.Fprintf(r.out, "  %-18s ", rej.Reason)
			_, _ = fmt.Fprintf(r.out, "%s: %s\n", rej.Event.Title, rej.Detail)
		}
	}
}

func sortedKeys(m map[model.RejectionReason]int) []model.RejectionReason {
	keys := make([]model.RejectionReason, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
