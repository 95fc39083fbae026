package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/chrisdamba/salescount/internal/aggregator"
	"github.com/chrisdamba/salescount/internal/cloudwriter"
	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/report"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

var categories = []string{"1/2 Chix", "Full Ribs"}

func sampleReport() *models.Report {
	cells := aggregator.Cells{
		{Service: models.ServiceLunch, Interval: "12:00", Slot: 360}:  {"1/2 Chix": 2},
		{Service: models.ServiceDinner, Interval: "18:00", Slot: 720}: {"1/2 Chix": 1, "Full Ribs": 3},
	}
	return &models.Report{
		Location:        "Main St",
		Date:            time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		IntervalMinutes: 60,
		Categories:      categories,
		Rows:            report.Assemble(categories, cells),
		Audit: models.Audit{
			Lines:   7,
			Voided:  1,
			Skipped: models.SkipSummary{Count: 1, Examples: []models.Rejection{{Kind: models.LineKindItem, Row: 4, Reason: "missing order_id"}}},
			Unclassified: models.UnclassifiedSummary{
				Lines:    2,
				Quantity: decimal.NewFromInt(2),
				Examples: []models.NameCount{{Name: "Lemonade", Lines: 2}},
			},
		},
		GeneratedAt: time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC),
	}
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	out := NewConsoleOutput(&buf)

	require.NoError(t, out.WriteReport(context.Background(), sampleReport()))
	require.NoError(t, out.Close())

	text := buf.String()
	assert.Contains(t, text, "Main St  2024-03-01  (60 min)")
	assert.Contains(t, text, "Lunch Total")
	assert.Contains(t, text, "Grand Total")
	assert.Contains(t, text, "unclassified \"Lemonade\" x2")
	assert.Contains(t, text, "skipped item row 4: missing order_id")

	lunch := bytes.Index(buf.Bytes(), []byte("Lunch Total"))
	dinner := bytes.Index(buf.Bytes(), []byte("18:00"))
	grand := bytes.Index(buf.Bytes(), []byte("Grand Total"))
	assert.Less(t, lunch, dinner)
	assert.Less(t, dinner, grand)
}

func TestConsoleOutputEmptyReport(t *testing.T) {
	var buf bytes.Buffer
	rep := sampleReport()
	rep.Rows = nil

	require.NoError(t, NewConsoleOutput(&buf).WriteReport(context.Background(), rep))
	assert.Contains(t, buf.String(), "no sales")
}

func TestCSVOutput(t *testing.T) {
	dir := t.TempDir()
	out := NewCSVOutput(dir, "reports")
	rep := sampleReport()

	require.NoError(t, out.WriteReport(context.Background(), rep))
	// a rerun replaces the file rather than appending
	require.NoError(t, out.WriteReport(context.Background(), rep))

	f, err := os.Open(filepath.Join(dir, "reports", "location=main-st", "date=2024-03-01", "report.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 6)
	assert.Equal(t, []string{"service", "label", "interval", "1/2 Chix", "Full Ribs", "total", "row_kind"}, records[0])
	assert.Equal(t, []string{"Lunch", "12:00", "12:00", "2", "0", "2", "detail"}, records[1])
	assert.Equal(t, []string{"Lunch", "Lunch Total", "", "2", "0", "2", "service_total"}, records[2])
	assert.Equal(t, []string{"Dinner", "18:00", "18:00", "1", "3", "4", "detail"}, records[3])
	assert.Equal(t, []string{"", "Grand Total", "", "3", "3", "6", "grand_total"}, records[5])
}

func TestJSONOutput(t *testing.T) {
	dir := t.TempDir()
	out := NewJSONOutput(dir, "reports")

	require.NoError(t, out.WriteReport(context.Background(), sampleReport()))

	data, err := os.ReadFile(filepath.Join(dir, "reports", "location=main-st", "date=2024-03-01", "report.json"))
	require.NoError(t, err)

	var doc struct {
		Location string                   `json:"location"`
		Date     string                   `json:"date"`
		Rows     []map[string]interface{} `json:"rows"`
		Audit    models.Audit             `json:"audit"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Main St", doc.Location)
	assert.Equal(t, "2024-03-01", doc.Date)
	require.Len(t, doc.Rows, 5)
	assert.Equal(t, "Lunch", doc.Rows[0]["service"])
	assert.Equal(t, float64(2), doc.Rows[0]["1/2 Chix"])
	assert.Equal(t, "grand_total", doc.Rows[4]["row_kind"])
	assert.Equal(t, 2, doc.Audit.Unclassified.Lines)
}

func TestParquetOutput(t *testing.T) {
	dir := t.TempDir()
	out := NewParquetOutput(dir, "reports")
	rep := sampleReport()

	require.NoError(t, out.WriteReport(context.Background(), rep))

	fr, err := local.NewLocalFileReader(filepath.Join(dir, "reports", "location=main-st", "date=2024-03-01", "report.parquet"))
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(ParquetCell), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	require.Equal(t, len(rep.Rows)*len(categories), n)
	cells := make([]ParquetCell, n)
	require.NoError(t, pr.Read(&cells))

	var grand int64
	for _, c := range cells {
		if c.RowKind == "grand_total" {
			grand += c.Count
			assert.Equal(t, int64(6), c.RowTotal)
		}
	}
	assert.Equal(t, int64(6), grand)
}

type memoryWriter struct {
	bytes.Buffer
	closed bool
}

func (m *memoryWriter) Close() error {
	m.closed = true
	return nil
}

type memoryFactory struct {
	objects map[string]*memoryWriter
}

func (f *memoryFactory) NewWriter(bucket, objectPath string) (cloudwriter.CloudWriter, error) {
	w := &memoryWriter{}
	f.objects[bucket+"/"+objectPath] = w
	return w, nil
}

func TestFileOutputsWriteToCloud(t *testing.T) {
	factory := &memoryFactory{objects: make(map[string]*memoryWriter)}
	store := &fileStore{folder: "daily", cloud: factory, bucket: "exports"}
	rep := sampleReport()

	require.NoError(t, (&CSVOutput{files: store}).WriteReport(context.Background(), rep))
	require.NoError(t, (&ParquetOutput{files: store}).WriteReport(context.Background(), rep))

	csvObj := factory.objects["exports/daily/location=main-st/date=2024-03-01/report.csv"]
	require.NotNil(t, csvObj)
	assert.True(t, csvObj.closed)
	assert.Contains(t, csvObj.String(), "Grand Total")

	parquetObj := factory.objects["exports/daily/location=main-st/date=2024-03-01/report.parquet"]
	require.NotNil(t, parquetObj)
	assert.True(t, parquetObj.closed)
	assert.True(t, bytes.HasPrefix(parquetObj.Bytes(), []byte("PAR1")))
}

func TestKafkaOutput(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	rep := sampleReport()

	var keys []string
	for range rep.Rows {
		producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
			if msg.Topic != "report_rows" {
				return fmt.Errorf("unexpected topic %s", msg.Topic)
			}
			key, err := msg.Key.Encode()
			if err != nil {
				return err
			}
			keys = append(keys, string(key))

			value, err := msg.Value.Encode()
			if err != nil {
				return err
			}
			var flat map[string]interface{}
			if err := json.Unmarshal(value, &flat); err != nil {
				return err
			}
			if flat["location"] != "Main St" || flat["date"] != "2024-03-01" {
				return fmt.Errorf("bad row %s", value)
			}
			return nil
		})
	}

	out := NewKafkaOutputWithProducer(producer, "")
	require.NoError(t, out.WriteReport(context.Background(), rep))
	require.NoError(t, out.Close())

	assert.Equal(t, []string{
		"Main St|2024-03-01|Lunch|12:00",
		"Main St|2024-03-01|Lunch Total|",
		"Main St|2024-03-01|Dinner|18:00",
		"Main St|2024-03-01|Dinner Total|",
		"Main St|2024-03-01|Grand Total|",
	}, keys)

	assert.Error(t, out.WriteReport(context.Background(), rep))
}

func TestKafkaOutputTombstonesDroppedKeys(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	rep := sampleReport()
	possible := rep.PossibleRowKeys()
	require.Len(t, possible, 3*48+3+1)

	values := make(map[string]bool)
	for range possible {
		producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
			key, err := msg.Key.Encode()
			if err != nil {
				return err
			}
			values[string(key)] = msg.Value != nil
			return nil
		})
	}

	out := NewKafkaOutputWithProducer(producer, "rows").WithTombstones(true)
	require.NoError(t, out.WriteReport(context.Background(), rep))

	assert.Len(t, values, len(possible))
	assert.True(t, values["Main St|2024-03-01|Lunch|12:00"])
	assert.True(t, values["Main St|2024-03-01|Dinner Total|"])
	assert.False(t, values["Main St|2024-03-01|Lunch|12:30"])
	assert.False(t, values["Main St|2024-03-01|Overnight Total|"])

	// a rerun with no sales clears every key of the date
	empty := sampleReport()
	empty.Rows = nil
	cleared := 0
	for range possible {
		producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
			if msg.Value != nil {
				return fmt.Errorf("expected a tombstone, got a value")
			}
			cleared++
			return nil
		})
	}
	require.NoError(t, out.WriteReport(context.Background(), empty))
	assert.Equal(t, len(possible), cleared)
	require.NoError(t, out.Close())
}

func TestKafkaOutputSendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	rep := sampleReport()
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	for i := 1; i < len(rep.Rows); i++ {
		producer.ExpectSendMessageAndSucceed()
	}

	out := NewKafkaOutputWithProducer(producer, "rows")
	err := out.WriteReport(context.Background(), rep)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sarama.ErrOutOfBrokers))
	require.NoError(t, out.Close())
}

func TestKafkaOutputSkipsEmptyReport(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	rep := sampleReport()
	rep.Rows = nil

	out := NewKafkaOutputWithProducer(producer, "rows")
	require.NoError(t, out.WriteReport(context.Background(), rep))
	require.NoError(t, out.Close())
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, NewCSVOutput(t.TempDir(), "r").WriteReport(ctx, sampleReport()), context.Canceled)
	assert.ErrorIs(t, NewConsoleOutput(&bytes.Buffer{}).WriteReport(ctx, sampleReport()), context.Canceled)
}

func TestNewDestination(t *testing.T) {
	cfg := &models.Config{Output: models.OutputConfig{Path: t.TempDir(), Folder: "reports"}}

	for name, want := range map[string]interface{}{
		"":        &ConsoleOutput{},
		"console": &ConsoleOutput{},
		"csv":     &CSVOutput{},
		"json":    &JSONOutput{},
		"parquet": &ParquetOutput{},
	} {
		cfg.Output.Destination = name
		dest, err := NewDestination(context.Background(), cfg)
		require.NoError(t, err, name)
		assert.IsType(t, want, dest, name)
	}

	cfg.Output.Destination = "xml"
	_, err := NewDestination(context.Background(), cfg)
	assert.Error(t, err)

	cfg.Output.Destination = "csv"
	cfg.Output.CloudStorage.Provider = "ftp"
	_, err = NewDestination(context.Background(), cfg)
	assert.Error(t, err)
}
