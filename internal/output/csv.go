package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/report"
)

const csvFileName = "report.csv"

// CSVOutput writes one wide csv per report: service, label, interval, one
// column per category, total and row_kind.
type CSVOutput struct {
	files *fileStore
}

func NewCSVOutput(basePath, folder string) *CSVOutput {
	return &CSVOutput{files: &fileStore{basePath: basePath, folder: folder}}
}

func (c *CSVOutput) WriteReport(ctx context.Context, rep *models.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := c.files.create(rep, csvFileName)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	header := append([]string{"service", "label", "interval"}, rep.Categories...)
	header = append(header, "total", "row_kind")
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	for _, row := range report.Grouped(rep.Rows) {
		record := make([]string, 0, len(header))
		record = append(record, string(row.Service), row.Label, row.Interval)
		for _, category := range rep.Categories {
			record = append(record, strconv.Itoa(row.Count(category)))
		}
		record = append(record, strconv.Itoa(row.Total), row.Kind.String())
		if err := w.Write(record); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", csvFileName, err)
	}
	return nil
}

func (c *CSVOutput) Close() error {
	return nil
}
