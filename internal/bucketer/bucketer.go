// Package bucketer assigns order timestamps to a service period and a
// fixed-width reporting interval.
package bucketer

import (
	"errors"
	"fmt"
	"time"

	"github.com/chrisdamba/salescount/internal/models"
)

var (
	ErrInvalidWidth   = errors.New("interval width must be 30 or 60 minutes")
	ErrInvalidOptions = errors.New("invalid bucketer options")
)

const minutesPerDay = 24 * 60

type Options struct {
	WidthMinutes    int
	LunchStartHour  int
	DinnerStartHour int
	// EarlyMorning decides where hours before LunchStartHour go.
	EarlyMorning string
}

func DefaultOptions() Options {
	return Options{
		WidthMinutes:    60,
		LunchStartHour:  6,
		DinnerStartHour: 16,
		EarlyMorning:    models.EarlyMorningSameDayDinner,
	}
}

// OptionsFromConfig maps the service section of the run configuration.
func OptionsFromConfig(cfg *models.Config) Options {
	return Options{
		WidthMinutes:    cfg.IntervalMinutes,
		LunchStartHour:  cfg.Service.LunchStartHour,
		DinnerStartHour: cfg.Service.DinnerStartHour,
		EarlyMorning:    cfg.Service.EarlyMorningPolicy,
	}
}

// Bucketer is immutable and safe for concurrent use. Timestamps are read in
// their own location, so callers convert to the store's local time first.
type Bucketer struct {
	opts Options
}

func New(opts Options) (*Bucketer, error) {
	if opts.WidthMinutes != 30 && opts.WidthMinutes != 60 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWidth, opts.WidthMinutes)
	}
	if opts.LunchStartHour < 0 || opts.DinnerStartHour > 24 || opts.LunchStartHour >= opts.DinnerStartHour {
		return nil, fmt.Errorf("%w: lunch starts at %d, dinner at %d", ErrInvalidOptions, opts.LunchStartHour, opts.DinnerStartHour)
	}
	switch opts.EarlyMorning {
	case "":
		opts.EarlyMorning = models.EarlyMorningSameDayDinner
	case models.EarlyMorningSameDayDinner, models.EarlyMorningPriorDayDinner, models.EarlyMorningOvernight:
	default:
		return nil, fmt.Errorf("%w: unknown early morning policy %q", ErrInvalidOptions, opts.EarlyMorning)
	}
	return &Bucketer{opts: opts}, nil
}

func (b *Bucketer) WidthMinutes() int {
	return b.opts.WidthMinutes
}

func (b *Bucketer) Options() Options {
	return b.opts
}

// Bucket returns the service period and interval t falls in. The interval
// label is the floored start time as zero-padded "HH:MM".
func (b *Bucketer) Bucket(t time.Time) models.BucketKey {
	hour, minute := t.Hour(), t.Minute()
	start := minute - minute%b.opts.WidthMinutes

	return models.BucketKey{
		Service:  b.service(hour),
		Interval: fmt.Sprintf("%02d:%02d", hour, start),
		Slot:     b.slot(hour, start),
	}
}

func (b *Bucketer) service(hour int) models.ServicePeriod {
	switch {
	case hour >= b.opts.DinnerStartHour:
		return models.ServiceDinner
	case hour >= b.opts.LunchStartHour:
		return models.ServiceLunch
	case b.opts.EarlyMorning == models.EarlyMorningOvernight:
		return models.ServiceOvernight
	}
	return models.ServiceDinner
}

// slot counts minutes from the start of lunch, so hours after midnight land
// at the end of the service day.
func (b *Bucketer) slot(hour, minute int) int {
	m := (hour-b.opts.LunchStartHour)*60 + minute
	return (m + minutesPerDay) % minutesPerDay
}

// BusinessDate is the reporting date t counts towards. It only differs from
// the calendar date under the prior_day_dinner policy.
func (b *Bucketer) BusinessDate(t time.Time) time.Time {
	d := DateOf(t)
	if b.opts.EarlyMorning == models.EarlyMorningPriorDayDinner && t.Hour() < b.opts.LunchStartHour {
		return d.AddDate(0, 0, -1)
	}
	return d
}

// DateOf truncates t to its wall-clock date, expressed as midnight UTC so
// dates compare with Equal regardless of the source location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD reporting date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}
