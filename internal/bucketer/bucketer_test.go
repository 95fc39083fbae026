package bucketer

import (
	"fmt"
	"testing"
	"time"

	"github.com/chrisdamba/salescount/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 3, 15, hour, minute, 0, 0, time.UTC)
}

func mustNew(t *testing.T, opts Options) *Bucketer {
	t.Helper()
	b, err := New(opts)
	require.NoError(t, err)
	return b
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr error
	}{
		{"defaults", func(*Options) {}, nil},
		{"thirty minutes", func(o *Options) { o.WidthMinutes = 30 }, nil},
		{"fifteen minutes", func(o *Options) { o.WidthMinutes = 15 }, ErrInvalidWidth},
		{"zero width", func(o *Options) { o.WidthMinutes = 0 }, ErrInvalidWidth},
		{"lunch after dinner", func(o *Options) { o.LunchStartHour = 17 }, ErrInvalidOptions},
		{"dinner past midnight", func(o *Options) { o.DinnerStartHour = 25 }, ErrInvalidOptions},
		{"unknown policy", func(o *Options) { o.EarlyMorning = "next_day" }, ErrInvalidOptions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			b, err := New(opts)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.NotNil(t, b)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, b)
		})
	}
}

func TestEmptyPolicyDefaultsToSameDayDinner(t *testing.T) {
	opts := DefaultOptions()
	opts.EarlyMorning = ""
	b := mustNew(t, opts)
	assert.Equal(t, models.EarlyMorningSameDayDinner, b.Options().EarlyMorning)
}

func TestBucketLabelsAndServices(t *testing.T) {
	hourly := mustNew(t, DefaultOptions())
	opts := DefaultOptions()
	opts.WidthMinutes = 30
	halfHourly := mustNew(t, opts)

	tests := []struct {
		name    string
		b       *Bucketer
		time    time.Time
		service models.ServicePeriod
		label   string
	}{
		{"lunch opens at six", hourly, at(6, 0), models.ServiceLunch, "06:00"},
		{"midday", hourly, at(12, 30), models.ServiceLunch, "12:00"},
		{"last lunch minute", hourly, at(15, 59), models.ServiceLunch, "15:00"},
		{"dinner opens at sixteen", hourly, at(16, 0), models.ServiceDinner, "16:00"},
		{"late dinner", hourly, at(23, 59), models.ServiceDinner, "23:00"},
		{"after midnight", hourly, at(0, 10), models.ServiceDinner, "00:00"},
		{"before lunch", hourly, at(5, 59), models.ServiceDinner, "05:00"},
		{"first half hour", halfHourly, at(13, 15), models.ServiceLunch, "13:00"},
		{"second half hour", halfHourly, at(13, 45), models.ServiceLunch, "13:30"},
		{"half hour boundary", halfHourly, at(18, 30), models.ServiceDinner, "18:30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := tt.b.Bucket(tt.time)
			assert.Equal(t, tt.service, key.Service)
			assert.Equal(t, tt.label, key.Interval)
		})
	}
}

func TestThirtyAndSixtyMinuteMerge(t *testing.T) {
	opts := DefaultOptions()
	hourly := mustNew(t, opts)
	opts.WidthMinutes = 30
	halfHourly := mustNew(t, opts)

	assert.NotEqual(t, halfHourly.Bucket(at(13, 15)), halfHourly.Bucket(at(13, 45)))
	assert.Equal(t, hourly.Bucket(at(13, 15)), hourly.Bucket(at(13, 45)))
}

func TestBucketIsTotal(t *testing.T) {
	policies := []string{
		models.EarlyMorningSameDayDinner,
		models.EarlyMorningPriorDayDinner,
		models.EarlyMorningOvernight,
	}
	for _, policy := range policies {
		for _, width := range []int{30, 60} {
			t.Run(fmt.Sprintf("%s/%d", policy, width), func(t *testing.T) {
				b := mustNew(t, Options{WidthMinutes: width, LunchStartHour: 6, DinnerStartHour: 16, EarlyMorning: policy})
				seen := make(map[string]bool)
				for m := 0; m < minutesPerDay; m++ {
					key := b.Bucket(at(m/60, m%60))
					require.Len(t, key.Interval, 5)
					require.NotEmpty(t, key.Service)
					require.GreaterOrEqual(t, key.Slot, 0)
					require.Less(t, key.Slot, minutesPerDay)
					seen[key.Interval] = true
				}
				assert.Len(t, seen, minutesPerDay/width)
			})
		}
	}
}

func TestSlotIsChronologicalAcrossMidnight(t *testing.T) {
	b := mustNew(t, DefaultOptions())
	lunch := b.Bucket(at(6, 0))
	late := b.Bucket(at(23, 0))
	afterMidnight := b.Bucket(at(1, 0))

	assert.Equal(t, 0, lunch.Slot)
	assert.Less(t, lunch.Slot, late.Slot)
	assert.Less(t, late.Slot, afterMidnight.Slot)
}

func TestOvernightPolicy(t *testing.T) {
	opts := DefaultOptions()
	opts.EarlyMorning = models.EarlyMorningOvernight
	b := mustNew(t, opts)

	assert.Equal(t, models.ServiceOvernight, b.Bucket(at(2, 30)).Service)
	assert.Equal(t, models.ServiceLunch, b.Bucket(at(6, 0)).Service)
	assert.Equal(t, models.ServiceDinner, b.Bucket(at(22, 0)).Service)
}

func TestBusinessDate(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	prev := day.AddDate(0, 0, -1)

	same := mustNew(t, DefaultOptions())
	assert.True(t, same.BusinessDate(at(2, 0)).Equal(day))
	assert.True(t, same.BusinessDate(at(20, 0)).Equal(day))

	opts := DefaultOptions()
	opts.EarlyMorning = models.EarlyMorningPriorDayDinner
	prior := mustNew(t, opts)
	assert.True(t, prior.BusinessDate(at(2, 0)).Equal(prev))
	assert.True(t, prior.BusinessDate(at(6, 0)).Equal(day))
	assert.Equal(t, models.ServiceDinner, prior.Bucket(at(2, 0)).Service)
}

func TestDateOfIgnoresLocation(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	local := time.Date(2024, 3, 15, 22, 0, 0, 0, est)
	assert.Equal(t, "2024-03-15", DateOf(local).Format(models.DateLayout))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.March, d.Month())

	_, err = ParseDate("15/03/2024")
	assert.Error(t, err)
}
