// Package batch recomputes stored reports for many (location, date) pairs
// at once.
package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/report"
	"github.com/chrisdamba/salescount/internal/repositories"
)

const defaultConcurrency = 4

// Logger abstracts logging so callers can pass a logrus logger or anything
// else with these methods.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

type Config struct {
	Lines       repositories.LineRepository
	Reports     repositories.ReportRepository
	Engine      *report.Engine
	Partitions  []models.Partition
	Concurrency int    // defaults to 4 if <= 0
	Log         Logger // optional; nil = no logging

	// OnDone is called from the worker goroutines once per partition, with
	// the stored report or the error that stopped it.
	OnDone func(p models.Partition, rep *models.Report, err error)
}

// PartitionError ties a failure to the partition it happened in.
type PartitionError struct {
	Partition models.Partition
	Err       error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Partition, e.Err)
}

func (e *PartitionError) Unwrap() error {
	return e.Err
}

type Result struct {
	Reports []*models.Report
	Errors  []error
}

// Recompute rebuilds and replaces the report of every partition. A failing
// partition does not stop the others; its error is collected in the result.
// Reports come back sorted by location then date.
func Recompute(ctx context.Context, cfg Config) *Result {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	result := &Result{}
	if len(cfg.Partitions) == 0 {
		return result
	}

	partChan := make(chan models.Partition, len(cfg.Partitions))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range partChan {
				rep, err := recomputeOne(ctx, cfg, p, log)

				mu.Lock()
				if err != nil {
					result.Errors = append(result.Errors, &PartitionError{Partition: p, Err: err})
				} else {
					result.Reports = append(result.Reports, rep)
				}
				mu.Unlock()

				if cfg.OnDone != nil {
					cfg.OnDone(p, rep, err)
				}
			}
		}()
	}

	for _, p := range cfg.Partitions {
		partChan <- p
	}
	close(partChan)
	wg.Wait()

	sort.Slice(result.Reports, func(i, j int) bool {
		a, b := result.Reports[i], result.Reports[j]
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		return a.Date.Before(b.Date)
	})
	return result
}

func recomputeOne(ctx context.Context, cfg Config, p models.Partition, log Logger) (*models.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// early-morning lines of the next calendar day can belong to this date
	items, modifiers, err := cfg.Lines.GetByDate(ctx, p.Location, p.Date, p.Date.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to load lines: %w", err)
	}

	rep := cfg.Engine.Run(p.Location, p.Date, items, modifiers)
	if skipped := rep.Audit.Skipped.Count; skipped > 0 {
		log.Warnf("%s: skipped %d invalid lines", p, skipped)
	}
	if err := cfg.Reports.ReplaceReport(ctx, rep); err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}
	log.Debugf("%s: %d rows from %d lines", p, len(rep.Rows), rep.Audit.Lines)
	return rep, nil
}

// Plan lists the partitions whose business date lies in [from, to] and that
// have stored lines. Under prior_day_dinner a calendar date also yields the
// business date before it.
func Plan(ctx context.Context, lines repositories.LineRepository, engine *report.Engine, from, to time.Time) ([]models.Partition, error) {
	stored, err := lines.ListPartitions(ctx, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}

	priorDay := engine.Bucketer().Options().EarlyMorning == models.EarlyMorningPriorDayDinner
	seen := make(map[models.Partition]bool)
	var parts []models.Partition
	add := func(p models.Partition) {
		if p.Date.Before(from) || p.Date.After(to) || seen[p] {
			return
		}
		seen[p] = true
		parts = append(parts, p)
	}
	for _, p := range stored {
		add(p)
		if priorDay {
			add(models.Partition{Location: p.Location, Date: p.Date.AddDate(0, 0, -1)})
		}
	}

	sort.Slice(parts, func(i, j int) bool {
		if parts[i].Location != parts[j].Location {
			return parts[i].Location < parts[j].Location
		}
		return parts[i].Date.Before(parts[j].Date)
	})
	return parts, nil
}
