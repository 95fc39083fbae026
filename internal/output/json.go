package output

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/report"
)

const jsonFileName = "report.json"

// jsonReport is the file shape: rows are flattened so each category is a
// top-level key of its row.
type jsonReport struct {
	Location        string                   `json:"location"`
	Date            string                   `json:"date"`
	IntervalMinutes int                      `json:"interval_minutes"`
	Categories      []string                 `json:"categories"`
	Rows            []map[string]interface{} `json:"rows"`
	Audit           models.Audit             `json:"audit"`
	GeneratedAt     time.Time                `json:"generated_at"`
}

type JSONOutput struct {
	files *fileStore
}

func NewJSONOutput(basePath, folder string) *JSONOutput {
	return &JSONOutput{files: &fileStore{basePath: basePath, folder: folder}}
}

func (j *JSONOutput) WriteReport(ctx context.Context, rep *models.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := jsonReport{
		Location:        rep.Location,
		Date:            rep.DateString(),
		IntervalMinutes: rep.IntervalMinutes,
		Categories:      rep.Categories,
		Rows:            []map[string]interface{}{},
		Audit:           rep.Audit,
		GeneratedAt:     rep.GeneratedAt,
	}
	for _, row := range report.Grouped(rep.Rows) {
		doc.Rows = append(doc.Rows, row.Flatten())
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	f, err := j.files.create(rep, jsonFileName)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", jsonFileName, err)
	}
	return nil
}

func (j *JSONOutput) Close() error {
	return nil
}
