// Package aggregator turns classified, bucketed POS lines into per-bucket
// category counts. A physical order line, identified by (order_id, line_id),
// contributes to a category at most once per bucket no matter how many of
// its item or modifier rows match that category.
package aggregator

import (
	"sort"
	"time"

	"github.com/chrisdamba/salescount/internal/models"
	"github.com/shopspring/decimal"
)

const DefaultAuditExamples = 10

type Classifier interface {
	Classify(line models.RawLine, kind models.LineKind) (string, bool)
}

type Bucketer interface {
	Bucket(t time.Time) models.BucketKey
}

type Options struct {
	// AuditExamples caps the example lists kept in the audit.
	AuditExamples int
}

// Cells holds the integer count of every category with at least one
// contributing line, per non-empty bucket.
type Cells map[models.BucketKey]map[string]int

type Result struct {
	Cells Cells
	Audit models.Audit
}

type aggregation struct {
	classifier Classifier
	bucketer   Bucketer
	examples   int

	// bucket -> category -> dedup key -> largest quantity seen for that line
	groups       map[models.BucketKey]map[string]map[string]decimal.Decimal
	audit        models.Audit
	unclassified map[string]int
}

// Aggregate validates, classifies and buckets every line, then sums each
// category per bucket. Invalid lines are skipped and reported in the audit.
// Voided lines are dropped before classification.
func Aggregate(items, modifiers []models.RawLine, classifier Classifier, bucketer Bucketer, opts Options) *Result {
	a := &aggregation{
		classifier:   classifier,
		bucketer:     bucketer,
		examples:     opts.AuditExamples,
		groups:       make(map[models.BucketKey]map[string]map[string]decimal.Decimal),
		unclassified: make(map[string]int),
	}
	if a.examples <= 0 {
		a.examples = DefaultAuditExamples
	}
	a.audit.Unclassified.Quantity = decimal.Zero

	for i, line := range items {
		a.add(i+1, line, models.LineKindItem)
	}
	for i, line := range modifiers {
		a.add(i+1, line, models.LineKindModifier)
	}

	a.audit.Unclassified.Examples = topNames(a.unclassified, a.examples)
	return &Result{Cells: a.cells(), Audit: a.audit}
}

func (a *aggregation) add(row int, line models.RawLine, kind models.LineKind) {
	a.audit.Lines++

	if err := line.Validate(); err != nil {
		a.audit.Skip(models.Rejection{
			Kind:      kind,
			Row:       row,
			Location:  line.Location,
			OrderID:   line.OrderID,
			LineID:    line.LineID,
			Reason:    err.Error(),
			OrderTime: line.OrderTime,
		}, a.examples)
		return
	}
	if line.Voided {
		a.audit.Voided++
		return
	}

	category, ok := a.classifier.Classify(line, kind)
	if !ok {
		a.audit.Unclassified.Lines++
		a.audit.Unclassified.Quantity = a.audit.Unclassified.Quantity.Add(line.Quantity)
		a.unclassified[line.DisplayName]++
		return
	}

	key := a.bucketer.Bucket(line.OrderTime)
	byCategory, ok := a.groups[key]
	if !ok {
		byCategory = make(map[string]map[string]decimal.Decimal)
		a.groups[key] = byCategory
	}
	byLine, ok := byCategory[category]
	if !ok {
		byLine = make(map[string]decimal.Decimal)
		byCategory[category] = byLine
	}

	id := line.DedupKey()
	if prev, seen := byLine[id]; !seen || line.Quantity.GreaterThan(prev) {
		byLine[id] = line.Quantity
	}
}

func (a *aggregation) cells() Cells {
	cells := make(Cells, len(a.groups))
	for key, byCategory := range a.groups {
		counts := make(map[string]int, len(byCategory))
		nonZero := false
		for category, byLine := range byCategory {
			sum := decimal.Zero
			for _, qty := range byLine {
				sum = sum.Add(qty)
			}
			n := RoundCount(sum)
			counts[category] = n
			if n != 0 {
				nonZero = true
			}
		}
		if nonZero {
			cells[key] = counts
		}
	}
	return cells
}

// RoundCount converts a non-negative quantity to an integer count, rounding
// halves up.
func RoundCount(q decimal.Decimal) int {
	return int(q.Round(0).IntPart())
}

func topNames(counts map[string]int, limit int) []models.NameCount {
	names := make([]models.NameCount, 0, len(counts))
	for name, n := range counts {
		names = append(names, models.NameCount{Name: name, Lines: n})
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i].Lines != names[j].Lines {
			return names[i].Lines > names[j].Lines
		}
		return names[i].Name < names[j].Name
	})
	if len(names) > limit {
		names = names[:limit]
	}
	return names
}
