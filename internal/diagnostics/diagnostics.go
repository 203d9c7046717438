// Package diagnostics runs the raycast and part inspection probes used when parts end up
// somewhere unexpected.
package diagnostics

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/danmuck/legosorter/internal/mcp"
	"github.com/danmuck/legosorter/internal/protocol"
	"github.com/danmuck/legosorter/internal/scripts"
	"github.com/rs/zerolog/log"
)

// DefaultRaycastFrame is the frame the raycast diagnostic samples unless told otherwise.
const DefaultRaycastFrame = 20

// DefaultInspectFrames are the frames part inspection reports.
var DefaultInspectFrames = []int{1, 20}

// CSVHeader is the first row of every raycast CSV.
var CSVHeader = []string{"PART_NAME", "TOP_Z", "HIT_OBJECT", "GAP_m"}

// Executor runs probe scripts with retries.
type Executor interface {
	ExecuteWithRetries(ctx context.Context, code string, opts mcp.ExecOptions) (mcp.Result, error)
}

// Diagnostics writes its CSV files under Dir.
type Diagnostics struct {
	exec Executor
	dir  string
}

func New(exec Executor, dir string) *Diagnostics {
	return &Diagnostics{exec: exec, dir: dir}
}

// RaycastRow is one part's ray hit. Nil numbers were not finite on the host.
type RaycastRow struct {
	Name      string   `json:"name"`
	TopZ      *float64 `json:"top_z"`
	Hit       bool     `json:"hit"`
	HitObject string   `json:"hit_object"`
	Gap       *float64 `json:"gap"`
	Error     string   `json:"error"`
}

// RaycastReport is the decoded raycast_diagnostic payload plus where it was written.
type RaycastReport struct {
	Frame      int          `json:"frame"`
	Collection bool         `json:"collection"`
	Rows       []RaycastRow `json:"rows"`
	Path       string       `json:"path"`
}

// CSVPath is the file Raycast writes for frame.
func (d *Diagnostics) CSVPath(frame int) string {
	return filepath.Join(d.dir, fmt.Sprintf("diagnostic_frame%02d.csv", frame))
}

// Raycast probes frame and writes the CSV report.
func (d *Diagnostics) Raycast(ctx context.Context, frame int) (RaycastReport, error) {
	if frame < 1 {
		return RaycastReport{}, fmt.Errorf("diagnostics: frame must be >= 1, got %d", frame)
	}
	code, err := scripts.RaycastDiagnostic(frame)
	if err != nil {
		return RaycastReport{}, err
	}
	res, err := d.exec.ExecuteWithRetries(ctx, code, mcp.ExecOptions{Description: scripts.ProbeRaycastDiagnostic})
	if err != nil {
		return RaycastReport{}, fmt.Errorf("diagnostics: raycast: %w", err)
	}
	var report RaycastReport
	if err := protocol.ExtractPayload(res.Output, &report); err != nil {
		return RaycastReport{}, fmt.Errorf("diagnostics: raycast: %w", err)
	}
	report.Path = d.CSVPath(frame)

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return report, fmt.Errorf("diagnostics: %w", err)
	}
	f, err := os.Create(report.Path)
	if err != nil {
		return report, fmt.Errorf("diagnostics: %w", err)
	}
	if err := WriteCSV(f, report); err != nil {
		_ = f.Close()
		return report, err
	}
	if err := f.Close(); err != nil {
		return report, fmt.Errorf("diagnostics: %w", err)
	}
	log.Info().
		Str("path", report.Path).
		Int("frame", frame).
		Int("parts", len(report.Rows)).
		Msg("diagnostics.raycast wrote")
	return report, nil
}

// WriteCSV renders report rows in the diagnostic CSV layout.
func WriteCSV(w io.Writer, report RaycastReport) error {
	cw := csv.NewWriter(w)
	records := [][]string{CSVHeader}
	if !report.Collection {
		records = append(records, []string{"NO_PARTS", "0", "None", ""})
	}
	for _, row := range report.Rows {
		records = append(records, row.record())
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("diagnostics: write csv: %w", err)
	}
	return nil
}

func (r RaycastRow) record() []string {
	if r.Error != "" {
		return []string{r.Name, "ERROR", "", r.Error}
	}
	rec := []string{r.Name, formatNum(r.TopZ), "", ""}
	if r.Hit && r.Gap != nil {
		rec[2] = r.HitObject
		rec[3] = formatNum(r.Gap)
	}
	return rec
}

func formatNum(v *float64) string {
	if v == nil {
		return "nan"
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}
