// Package report renders the signed markdown summary of a pipeline run.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"custetl/internal/tables"
	"custetl/pkg/metadata"
)

// Version is stamped into the metadata block of every report.
const Version = "1"

// ArtifactCount is the row count of one produced artifact.
type ArtifactCount struct {
	Name string
	Rows int
}

// Input is everything a report shows.
type Input struct {
	GeneratedAt    time.Time
	AsOf           time.Time
	RunID          string
	ClusterCount   int
	Seed           uint64
	SegmentMetrics *tables.Table
	GenderCodes    []string
	Artifacts      []ArtifactCount
}

// Render returns the signed markdown report.
func Render(in Input) string {
	var sb strings.Builder

	sb.WriteString("# Customer segmentation report\n\n")
	fmt.Fprintf(&sb, "- Run: `%s`\n", in.RunID)
	fmt.Fprintf(&sb, "- As of: %s\n", in.AsOf.Format(tables.DateLayout))
	fmt.Fprintf(&sb, "- Segments requested: %d (seed %d)\n\n", in.ClusterCount, in.Seed)

	sb.WriteString("## Segments\n\n")
	writeTable(&sb, in.SegmentMetrics)

	if len(in.GenderCodes) > 0 {
		sb.WriteString("\n## Gender codes\n\n")
		sb.WriteString("| code | gender |\n| ---: | --- |\n")

		for code, gender := range in.GenderCodes {
			fmt.Fprintf(&sb, "| %d | %s |\n", code, escapeCell(gender))
		}
	}

	sb.WriteString("\n## Artifacts\n\n")
	sb.WriteString("| artifact | rows |\n| --- | ---: |\n")

	for _, a := range in.Artifacts {
		fmt.Fprintf(&sb, "| %s | %s |\n", a.Name, strconv.Itoa(a.Rows))
	}

	return metadata.Sign(FormatTables(sb.String()), metadata.Metadata{
		RunID:       in.RunID,
		Version:     Version,
		GeneratedAt: in.GeneratedAt,
	})
}

func writeTable(sb *strings.Builder, t *tables.Table) {
	if t == nil || len(t.Rows) == 0 {
		sb.WriteString("_No segments._\n")
		return
	}

	sb.WriteString("| " + strings.Join(t.ColumnNames(), " | ") + " |\n")

	seps := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if c.Kind == tables.KindText || c.Kind == tables.KindDate {
			seps[i] = "---"
		} else {
			seps[i] = "---:"
		}
	}

	sb.WriteString("| " + strings.Join(seps, " | ") + " |\n")

	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = escapeCell(c)
		}

		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "/")
}

// WriteFile writes a rendered report, creating parent directories.
func WriteFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(content+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// VerifyFile checks the signature of a report on disk.
func VerifyFile(path string) (*metadata.Metadata, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	return metadata.Verify(string(content))
}
