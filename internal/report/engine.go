package report

import (
	"sort"
	"strings"
	"time"

	"github.com/chrisdamba/salescount/internal/aggregator"
	"github.com/chrisdamba/salescount/internal/bucketer"
	"github.com/chrisdamba/salescount/internal/classifier"
	"github.com/chrisdamba/salescount/internal/models"
)

// Engine runs classification, bucketing, aggregation and assembly for one
// (location, date) at a time. It holds no mutable state and can be shared
// between goroutines.
type Engine struct {
	rules    *classifier.RuleSet
	bucketer *bucketer.Bucketer
	opts     aggregator.Options
	now      func() time.Time
}

func NewEngine(rules *classifier.RuleSet, b *bucketer.Bucketer) *Engine {
	return &Engine{
		rules:    rules,
		bucketer: b,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithAuditExamples returns a copy of the engine keeping up to n examples
// per audit list.
func (e *Engine) WithAuditExamples(n int) *Engine {
	c := *e
	c.opts.AuditExamples = n
	return &c
}

func (e *Engine) Categories() []string {
	return e.rules.Categories()
}

func (e *Engine) Bucketer() *bucketer.Bucketer {
	return e.bucketer
}

// Run builds the report of location on the business date date. Lines of
// other locations or dates are counted as out of scope. An empty location
// matches every line.
func (e *Engine) Run(location string, date time.Time, items, modifiers []models.RawLine) *models.Report {
	date = bucketer.DateOf(date)

	outOfScope := 0
	filter := func(lines []models.RawLine) []models.RawLine {
		var kept []models.RawLine
		for _, l := range lines {
			if !sameLocation(location, l.Location) {
				outOfScope++
				continue
			}
			// undated lines go through so the aggregator reports them
			if !l.OrderTime.IsZero() && !e.bucketer.BusinessDate(l.OrderTime).Equal(date) {
				outOfScope++
				continue
			}
			kept = append(kept, l)
		}
		return kept
	}
	items = filter(items)
	modifiers = filter(modifiers)

	res := aggregator.Aggregate(items, modifiers, e.rules, e.bucketer, e.opts)
	res.Audit.OutOfScope = outOfScope
	categories := e.rules.Categories()

	return &models.Report{
		Location:        location,
		Date:            date,
		IntervalMinutes: e.bucketer.WidthMinutes(),
		Categories:      categories,
		Rows:            Assemble(categories, res.Cells),
		Audit:           res.Audit,
		GeneratedAt:     e.now(),
	}
}

// Partitions lists every (location, business date) present in the lines,
// sorted by location then date. Lines without a timestamp are ignored.
func (e *Engine) Partitions(items, modifiers []models.RawLine) []models.Partition {
	seen := make(map[models.Partition]bool)
	var parts []models.Partition
	for _, lines := range [][]models.RawLine{items, modifiers} {
		for _, l := range lines {
			if l.OrderTime.IsZero() {
				continue
			}
			p := models.Partition{Location: l.Location, Date: e.bucketer.BusinessDate(l.OrderTime)}
			if !seen[p] {
				seen[p] = true
				parts = append(parts, p)
			}
		}
	}
	sort.Slice(parts, func(i, j int) bool {
		if parts[i].Location != parts[j].Location {
			return parts[i].Location < parts[j].Location
		}
		return parts[i].Date.Before(parts[j].Date)
	})
	return parts
}

// RunAll builds one report per partition found in the lines.
func (e *Engine) RunAll(items, modifiers []models.RawLine) []*models.Report {
	var reports []*models.Report
	for _, p := range e.Partitions(items, modifiers) {
		reports = append(reports, e.Run(p.Location, p.Date, items, modifiers))
	}
	return reports
}

// AttachRejections adds records rejected before they became lines, such as
// export rows whose timestamp or quantity could not be parsed, to the skipped
// counts of reports. A rejection whose time was read goes to the report of its
// location and business date. One without a time cannot be dated and goes to
// every report of its location; one without a location matches any report.
func (e *Engine) AttachRejections(reports []*models.Report, rejections []models.Rejection) {
	examples := e.opts.AuditExamples
	if examples <= 0 {
		examples = aggregator.DefaultAuditExamples
	}
	for _, r := range rejections {
		for _, rep := range reports {
			if r.Location != "" && !sameLocation(rep.Location, r.Location) {
				continue
			}
			if !r.OrderTime.IsZero() && !e.bucketer.BusinessDate(r.OrderTime).Equal(rep.Date) {
				continue
			}
			rep.Audit.Skip(r, examples)
		}
	}
}

func sameLocation(want, got string) bool {
	if want == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(want), strings.TrimSpace(got))
}
