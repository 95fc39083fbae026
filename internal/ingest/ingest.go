// Package ingest maps heterogeneous POS exports onto models.RawLine. Each
// source schema is resolved once from its header; rows that cannot be parsed
// are returned as rejections instead of failing the file.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chrisdamba/salescount/internal/models"
)

var ErrMissingColumn = errors.New("missing required column")

type Options struct {
	// Location fills lines from exports without a location column.
	Location string
	// TimeZone is used for timestamps without an offset. Defaults to UTC.
	TimeZone *time.Location
	// SyntheticIDs accepts sources without order or line ids. Such records
	// get ids derived from their row number, so each counts as its own line.
	SyntheticIDs bool
}

type Result struct {
	Lines      []models.RawLine
	Rejections []models.Rejection
}

// Schema is a resolved column layout: for every canonical field, the
// positions of the columns that can fill it, best first.
type Schema struct {
	kind    models.LineKind
	columns map[string][]int
}

// ResolveSchema matches header against the aliases of kind.
func ResolveSchema(header []string, kind models.LineKind, opts Options) (*Schema, error) {
	aliases := itemAliases
	if kind == models.LineKindModifier {
		aliases = modifierAliases
	}

	position := make(map[string]int, len(header))
	for i, h := range header {
		name := NormalizeHeader(h)
		if _, dup := position[name]; !dup {
			position[name] = i
		}
	}

	s := &Schema{kind: kind, columns: make(map[string][]int)}
	for field, names := range aliases {
		for _, name := range names {
			if i, ok := position[name]; ok {
				s.columns[field] = append(s.columns[field], i)
			}
		}
	}

	var missing []string
	for _, field := range requiredFields {
		if opts.SyntheticIDs && (field == FieldOrderID || field == FieldLineID) {
			continue
		}
		if len(s.columns[field]) == 0 {
			missing = append(missing, fmt.Sprintf("%s (one of %s)", field, strings.Join(aliases[field], ", ")))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, "; "))
	}
	return s, nil
}

func (s *Schema) Has(field string) bool {
	return len(s.columns[field]) > 0
}

// value returns the first non-empty cell among the columns of field.
func (s *Schema) value(record []string, field string) string {
	for _, i := range s.columns[field] {
		if i < len(record) {
			if v := strings.TrimSpace(record[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

// Line converts the record at data row row. Missing ids are left for
// RawLine.Validate to report; only values that cannot be parsed are errors
// here.
func (s *Schema) Line(record []string, row int, opts Options) (models.RawLine, error) {
	line := models.RawLine{
		Location:    s.value(record, FieldLocation),
		OrderID:     s.value(record, FieldOrderID),
		LineID:      s.value(record, FieldLineID),
		DisplayName: s.value(record, FieldName),
		ParentName:  s.value(record, FieldParent),
		Code:        s.value(record, FieldCode),
	}
	if line.Location == "" {
		line.Location = opts.Location
	}
	if opts.SyntheticIDs {
		if line.OrderID == "" {
			line.OrderID = fmt.Sprintf("%s-row-%d", s.kind, row)
		}
		if line.LineID == "" {
			line.LineID = strconv.Itoa(row)
		}
	}

	var err error
	if raw := s.value(record, FieldTime); raw != "" {
		if line.OrderTime, err = ParseTime(raw, opts.TimeZone); err != nil {
			return line, err
		}
	}
	if line.Quantity, err = ParseQuantity(s.value(record, FieldQuantity)); err != nil {
		return line, err
	}
	if line.Voided, err = ParseBool(s.value(record, FieldVoided)); err != nil {
		return line, err
	}
	return line, nil
}

func ReadItems(r io.Reader, opts Options) (*Result, error) {
	return Read(r, models.LineKindItem, opts)
}

func ReadModifiers(r io.Reader, opts Options) (*Result, error) {
	return Read(r, models.LineKindModifier, opts)
}

// Read parses a CSV export of the given kind. Row numbers in rejections
// count data rows from 1.
func Read(r io.Reader, kind models.LineKind, opts Options) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return &Result{}, nil
		}
		return nil, fmt.Errorf("error reading header: %w", err)
	}
	schema, err := ResolveSchema(header, kind, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				res.Rejections = append(res.Rejections, models.Rejection{Kind: kind, Row: row, Reason: err.Error()})
				continue
			}
			return nil, fmt.Errorf("error reading row %d: %w", row, err)
		}
		if isBlank(record) {
			continue
		}

		line, err := schema.Line(record, row, opts)
		if err != nil {
			res.Rejections = append(res.Rejections, rejection(kind, row, line, err))
			continue
		}
		res.Lines = append(res.Lines, line)
	}
	return res, nil
}

// ReadFile opens path and reads it as kind.
func ReadFile(path string, kind models.LineKind, opts Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	res, err := Read(f, kind, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// rejection keeps whatever of line was read before err, so the record can
// still be attributed to its location and, when the time parsed, its date.
func rejection(kind models.LineKind, row int, line models.RawLine, err error) models.Rejection {
	return models.Rejection{
		Kind:      kind,
		Row:       row,
		Location:  line.Location,
		OrderID:   line.OrderID,
		LineID:    line.LineID,
		Reason:    err.Error(),
		OrderTime: line.OrderTime,
	}
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// FromMaps normalizes records that arrive as key/value objects, as JSON APIs
// return them. Keys go through the same alias table as CSV headers.
func FromMaps(records []map[string]string, kind models.LineKind, opts Options) (*Result, error) {
	var header []string
	index := make(map[string]int)
	for _, rec := range records {
		for k := range rec {
			if _, ok := index[k]; !ok {
				index[k] = len(header)
				header = append(header, k)
			}
		}
	}
	if len(records) == 0 {
		return &Result{}, nil
	}
	sortHeader(header, index)

	schema, err := ResolveSchema(header, kind, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for n, rec := range records {
		record := make([]string, len(header))
		for k, v := range rec {
			record[index[k]] = v
		}
		line, err := schema.Line(record, n+1, opts)
		if err != nil {
			res.Rejections = append(res.Rejections, rejection(kind, n+1, line, err))
			continue
		}
		res.Lines = append(res.Lines, line)
	}
	return res, nil
}

// sortHeader fixes the column order so that duplicate aliases resolve the
// same way on every run.
func sortHeader(header []string, index map[string]int) {
	sort.Strings(header)
	for i, h := range header {
		index[h] = i
	}
}
