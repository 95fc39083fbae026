package report

import (
	"testing"
	"time"

	"github.com/chrisdamba/salescount/internal/bucketer"
	"github.com/chrisdamba/salescount/internal/classifier"
	"github.com/chrisdamba/salescount/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func engine(t *testing.T, mutate func(*bucketer.Options)) *Engine {
	t.Helper()
	opts := bucketer.DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	b, err := bucketer.New(opts)
	require.NoError(t, err)
	return NewEngine(classifier.Default(), b)
}

func item(location, order, line, name, code, qty string, hour, minute int) models.RawLine {
	return models.RawLine{
		Location:    location,
		OrderID:     order,
		LineID:      line,
		OrderTime:   day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute),
		DisplayName: name,
		Code:        code,
		Quantity:    decimal.RequireFromString(qty),
	}
}

func TestRunSingleCodedLine(t *testing.T) {
	e := engine(t, nil)
	items := []models.RawLine{item("Midtown", "O1", "L1", "1/2 Chicken Plate", "81831", "2", 12, 30)}

	rep := e.Run("Midtown", day, items, nil)

	require.Len(t, rep.Rows, 3)
	detail, lunch, grand := rep.Rows[0], rep.Rows[1], rep.Rows[2]

	assert.Equal(t, models.RowDetail, detail.Kind)
	assert.Equal(t, models.ServiceLunch, detail.Service)
	assert.Equal(t, "12:00", detail.Interval)
	assert.Equal(t, 2, detail.Count("1/2 Chix"))
	assert.Equal(t, 2, detail.Total)
	for _, c := range rep.Categories {
		if c != "1/2 Chix" {
			assert.Zero(t, detail.Count(c), c)
		}
	}

	assert.Equal(t, models.RowServiceTotal, lunch.Kind)
	assert.Equal(t, "Lunch Total", lunch.Label)
	assert.Equal(t, 2, lunch.Count("1/2 Chix"))
	assert.Equal(t, 2, lunch.Total)

	assert.Equal(t, models.RowGrandTotal, grand.Kind)
	assert.Equal(t, models.GrandTotalLabel, grand.Label)
	assert.Equal(t, 2, grand.Count("1/2 Chix"))
	assert.Equal(t, 2, grand.Total)

	assert.Equal(t, 60, rep.IntervalMinutes)
	assert.Equal(t, "2024-03-15", rep.DateString())
}

func TestRunIntervalWidth(t *testing.T) {
	items := []models.RawLine{
		item("Midtown", "O1", "L1", "Smashed Potatoes", "", "1", 13, 15),
		item("Midtown", "O2", "L1", "Smashed Potatoes", "", "2", 13, 45),
	}

	half := engine(t, func(o *bucketer.Options) { o.WidthMinutes = 30 }).Run("Midtown", day, items, nil)
	details := half.Details()
	require.Len(t, details, 2)
	assert.Equal(t, "13:00", details[0].Interval)
	assert.Equal(t, "13:30", details[1].Interval)

	hourly := engine(t, nil).Run("Midtown", day, items, nil)
	details = hourly.Details()
	require.Len(t, details, 1)
	assert.Equal(t, "13:00", details[0].Interval)
	assert.Equal(t, 3, details[0].Count("Pots"))
}

func TestRunFiltersLocationAndDate(t *testing.T) {
	e := engine(t, nil)
	items := []models.RawLine{
		item("Midtown", "O1", "L1", "Grits", "", "1", 12, 0),
		item("Uptown", "O2", "L1", "Grits", "", "1", 12, 0),
		item("midtown ", "O3", "L1", "Grits", "", "1", 12, 0),
		item("Midtown", "O4", "L1", "Grits", "", "1", 24+12, 0),
	}

	rep := e.Run("Midtown", day, items, nil)
	require.NotEmpty(t, rep.Rows)
	assert.Equal(t, 2, rep.Rows[0].Count("Grits"))
	assert.Equal(t, 2, rep.Audit.OutOfScope)
	assert.Equal(t, 2, rep.Audit.Lines)
}

func TestRunPriorDayDinnerPolicy(t *testing.T) {
	e := engine(t, func(o *bucketer.Options) { o.EarlyMorning = models.EarlyMorningPriorDayDinner })
	items := []models.RawLine{
		item("Midtown", "O1", "L1", "Grits", "", "1", 21, 0),
		item("Midtown", "O2", "L1", "Grits", "", "1", 24+1, 30),
	}

	rep := e.Run("Midtown", day, items, nil)
	details := rep.Details()
	require.Len(t, details, 2)
	assert.Equal(t, "21:00", details[0].Interval)
	assert.Equal(t, "01:00", details[1].Interval)
	assert.Equal(t, models.ServiceDinner, details[1].Service)
	assert.Zero(t, rep.Audit.OutOfScope)
}

func TestRunEmptyInput(t *testing.T) {
	rep := engine(t, nil).Run("Midtown", day, nil, nil)
	assert.Empty(t, rep.Rows)
	assert.Len(t, rep.Categories, 8)
}

func TestRunIsIdempotent(t *testing.T) {
	e := engine(t, nil)
	items := []models.RawLine{
		item("Midtown", "O1", "L1", "1/2 Chicken Plate", "", "1", 12, 5),
		item("Midtown", "O2", "L1", "Full Slab Ribs", "", "1", 18, 40),
		item("Midtown", "O3", "L1", "Creamed Corn", "", "2", 19, 10),
	}
	first := e.Run("Midtown", day, items, nil)
	second := e.Run("Midtown", day, items, nil)
	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, first.Audit, second.Audit)
}

func TestPartitionsAndRunAll(t *testing.T) {
	e := engine(t, nil)
	items := []models.RawLine{
		item("Uptown", "O1", "L1", "Grits", "", "1", 12, 0),
		item("Midtown", "O2", "L1", "Grits", "", "1", 24+12, 0),
		item("Midtown", "O3", "L1", "Grits", "", "1", 12, 0),
		{Location: "Midtown", OrderID: "O4", LineID: "L1"},
	}

	parts := e.Partitions(items, nil)
	require.Len(t, parts, 3)
	assert.Equal(t, "Midtown@2024-03-15", parts[0].String())
	assert.Equal(t, "Midtown@2024-03-16", parts[1].String())
	assert.Equal(t, "Uptown@2024-03-15", parts[2].String())

	reports := e.RunAll(items, nil)
	require.Len(t, reports, 3)
	for _, r := range reports {
		assert.Equal(t, 1, r.Rows[len(r.Rows)-1].Total, r.Location)
	}
}

func TestAttachRejections(t *testing.T) {
	e := engine(t, nil).WithAuditExamples(1)
	reports := []*models.Report{
		e.Run("Midtown", day, nil, nil),
		e.Run("Midtown", day.AddDate(0, 0, 1), nil, nil),
		e.Run("Uptown", day, nil, nil),
	}
	rejections := []models.Rejection{
		{Kind: models.LineKindItem, Row: 1, Location: "Midtown", Reason: "bad quantity", OrderTime: day.Add(13 * time.Hour)},
		{Kind: models.LineKindItem, Row: 2, Location: "midtown ", Reason: "unrecognised timestamp"},
		{Kind: models.LineKindModifier, Row: 3, Reason: "bad quantity", OrderTime: day.Add(19 * time.Hour)},
	}

	e.AttachRejections(reports, rejections)

	assert.Equal(t, 3, reports[0].Audit.Skipped.Count)
	require.Len(t, reports[0].Audit.Skipped.Examples, 1)
	assert.Equal(t, 1, reports[0].Audit.Skipped.Examples[0].Row)
	assert.Equal(t, 1, reports[1].Audit.Skipped.Count)
	assert.Equal(t, 2, reports[1].Audit.Skipped.Examples[0].Row)
	assert.Equal(t, 1, reports[2].Audit.Skipped.Count)
	assert.Equal(t, 3, reports[2].Audit.Skipped.Examples[0].Row)
}
