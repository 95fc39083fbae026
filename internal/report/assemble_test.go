package report

import (
	"encoding/json"
	"testing"

	"github.com/chrisdamba/salescount/internal/aggregator"
	"github.com/chrisdamba/salescount/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cats = []string{"1/2 Chix", "Corn", "Grits"}

func key(service models.ServicePeriod, interval string, slot int) models.BucketKey {
	return models.BucketKey{Service: service, Interval: interval, Slot: slot}
}

func sampleCells() aggregator.Cells {
	return aggregator.Cells{
		key(models.ServiceDinner, "18:00", 720):  {"1/2 Chix": 4, "Corn": 1},
		key(models.ServiceLunch, "12:00", 360):   {"1/2 Chix": 2},
		key(models.ServiceLunch, "09:00", 180):   {"Grits": 3},
		key(models.ServiceDinner, "01:00", 1140): {"Corn": 2},
		key(models.ServiceLunch, "13:00", 420):   {"Corn": 0},
	}
}

func TestAssembleRowsAndOrder(t *testing.T) {
	rows := Assemble(cats, sampleCells())

	var labels []string
	for _, r := range rows {
		labels = append(labels, string(r.Service)+"/"+r.Label)
	}
	assert.Equal(t, []string{
		"Lunch/09:00",
		"Lunch/12:00",
		"Dinner/18:00",
		"Dinner/01:00",
		"Lunch/Lunch Total",
		"Dinner/Dinner Total",
		"/Grand Total",
	}, labels)

	for _, r := range rows {
		assert.Len(t, r.Counts, len(cats), r.Label)
	}
	assert.Equal(t, models.RowGrandTotal, rows[len(rows)-1].Kind)
}

func TestAssembleConservation(t *testing.T) {
	rows := Assemble(cats, sampleCells())

	serviceSums := make(map[models.ServicePeriod]int)
	subtotals := make(map[models.ServicePeriod]int)
	grand := 0
	for _, r := range rows {
		sum := 0
		for _, c := range cats {
			sum += r.Count(c)
		}
		assert.Equal(t, sum, r.Total, r.Label)

		switch r.Kind {
		case models.RowDetail:
			serviceSums[r.Service] += r.Total
		case models.RowServiceTotal:
			subtotals[r.Service] = r.Total
		case models.RowGrandTotal:
			grand = r.Total
		}
	}
	assert.Equal(t, serviceSums, subtotals)
	assert.Equal(t, subtotals[models.ServiceLunch]+subtotals[models.ServiceDinner], grand)
	assert.Equal(t, 12, grand)
}

func TestAssembleOmitsZeroBuckets(t *testing.T) {
	rows := Assemble(cats, sampleCells())
	for _, r := range rows {
		assert.NotEqual(t, "13:00", r.Interval)
	}

	assert.Empty(t, Assemble(cats, aggregator.Cells{key(models.ServiceLunch, "10:00", 240): {"Corn": 0}}))
	assert.Empty(t, Assemble(cats, nil))
}

func TestAssembleIsIdempotent(t *testing.T) {
	first, err := json.Marshal(Assemble(cats, sampleCells()))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := json.Marshal(Assemble(cats, sampleCells()))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestSortKeepsTotalsBelowDetails(t *testing.T) {
	rows := Assemble(cats, sampleCells())
	// scramble by label, as a consumer re-sorting on a column would
	scrambled := make([]models.ReportRow, len(rows))
	for i := range rows {
		scrambled[i] = rows[len(rows)-1-i]
	}
	Sort(scrambled)
	assert.Equal(t, rows, scrambled)

	lastDetail, firstTotal := -1, len(rows)
	for i, r := range rows {
		if r.Kind == models.RowDetail {
			lastDetail = i
		} else if i < firstTotal {
			firstTotal = i
		}
	}
	assert.Less(t, lastDetail, firstTotal)
}

func TestGrouped(t *testing.T) {
	rows := Grouped(Assemble(cats, sampleCells()))

	var labels []string
	for _, r := range rows {
		labels = append(labels, r.Label)
	}
	assert.Equal(t, []string{
		"09:00", "12:00", "Lunch Total",
		"18:00", "01:00", "Dinner Total",
		"Grand Total",
	}, labels)
}

func TestGroupedDoesNotMutateInput(t *testing.T) {
	rows := Assemble(cats, sampleCells())
	before := append([]models.ReportRow(nil), rows...)
	_ = Grouped(rows)
	assert.Equal(t, before, rows)
}

func TestSortIsChronologicalNotAlphabetical(t *testing.T) {
	rows := []models.ReportRow{
		{Service: models.ServiceDinner, Interval: "00:00", Slot: 1080, Kind: models.RowDetail},
		{Service: models.ServiceDinner, Interval: "23:00", Slot: 1020, Kind: models.RowDetail},
		{Service: models.ServiceDinner, Label: "Dinner Total", Kind: models.RowServiceTotal},
		{Service: models.ServiceLunch, Interval: "12:00", Slot: 360, Kind: models.RowDetail},
		{Service: models.ServiceLunch, Label: "Lunch Total", Kind: models.RowServiceTotal},
	}
	Sort(rows)

	var got []string
	for _, r := range rows {
		got = append(got, string(r.Service)+" "+r.Interval+r.Label)
	}
	assert.Equal(t, []string{
		"Lunch 12:00",
		"Dinner 23:00",
		"Dinner 00:00",
		"Lunch Lunch Total",
		"Dinner Dinner Total",
	}, got)
}
