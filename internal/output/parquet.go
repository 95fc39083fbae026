package output

import (
	"context"
	"fmt"

	"github.com/chrisdamba/salescount/internal/models"
	"github.com/xitongsys/parquet-go/writer"
)

const parquetFileName = "report.parquet"

// ParquetCell is one (row, category) count in long format. RowTotal repeats
// the row total on every cell of the row.
type ParquetCell struct {
	Location        string `parquet:"name=location, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Date            string `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	IntervalMinutes int32  `parquet:"name=interval_minutes, type=INT32"`
	Service         string `parquet:"name=service, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Label           string `parquet:"name=label, type=BYTE_ARRAY, convertedtype=UTF8"`
	Interval        string `parquet:"name=interval, type=BYTE_ARRAY, convertedtype=UTF8"`
	Slot            int32  `parquet:"name=slot, type=INT32"`
	RowKind         string `parquet:"name=row_kind, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Category        string `parquet:"name=category, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Count           int64  `parquet:"name=count, type=INT64"`
	RowTotal        int64  `parquet:"name=row_total, type=INT64"`
}

type ParquetOutput struct {
	files *fileStore
}

func NewParquetOutput(basePath, folder string) *ParquetOutput {
	return &ParquetOutput{files: &fileStore{basePath: basePath, folder: folder}}
}

// Cells flattens a report into its long-format records, in row order.
func Cells(rep *models.Report) []ParquetCell {
	cells := make([]ParquetCell, 0, len(rep.Rows)*len(rep.Categories))
	for _, row := range rep.Rows {
		for _, category := range rep.Categories {
			cells = append(cells, ParquetCell{
				Location:        rep.Location,
				Date:            rep.DateString(),
				IntervalMinutes: int32(rep.IntervalMinutes),
				Service:         string(row.Service),
				Label:           row.Label,
				Interval:        row.Interval,
				Slot:            int32(row.Slot),
				RowKind:         row.Kind.String(),
				Category:        category,
				Count:           int64(row.Count(category)),
				RowTotal:        int64(row.Total),
			})
		}
	}
	return cells
}

func (p *ParquetOutput) WriteReport(ctx context.Context, rep *models.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fw, err := p.files.createParquet(rep, parquetFileName)
	if err != nil {
		return err
	}

	pw, err := writer.NewParquetWriter(fw, new(ParquetCell), 4)
	if err != nil {
		fw.Close()
		return fmt.Errorf("failed to create ParquetWriter: %w", err)
	}
	for _, cell := range Cells(rep) {
		if err := pw.Write(cell); err != nil {
			fw.Close()
			return fmt.Errorf("failed to write cell: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return fw.Close()
}

func (p *ParquetOutput) Close() error {
	return nil
}
