package classifier

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// LoadFile reads a rule set from a yaml, json, toml or csv file. The format
// is taken from the extension.
func LoadFile(path string) (*RuleSet, error) {
	spec, err := ReadFileSpec(path)
	if err != nil {
		return nil, err
	}
	return New(spec)
}

// ReadFileSpec decodes a rules file without compiling it. A .csv path is
// read as a mapping sheet.
func ReadFileSpec(path string) (Spec, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, err := os.Open(path)
		if err != nil {
			return Spec{}, fmt.Errorf("error reading rules file: %w", err)
		}
		defer f.Close()
		return ReadCSVSpec(f)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Spec{}, fmt.Errorf("error reading rules file: %w", err)
	}

	var spec Spec
	if err := v.Unmarshal(&spec); err != nil {
		return Spec{}, fmt.Errorf("unable to decode rules file, %w", err)
	}
	return spec, nil
}

// LoadCSV reads a mapping sheet exported from a spreadsheet. Required columns
// are category plus at least one of code or pattern; match, parent_pattern
// and applies_to are optional. The category vocabulary is the order in which
// categories first appear.
func LoadCSV(r io.Reader) (*RuleSet, error) {
	spec, err := ReadCSVSpec(r)
	if err != nil {
		return nil, err
	}
	return New(spec)
}

func ReadCSVSpec(r io.Reader) (Spec, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return Spec{}, fmt.Errorf("error reading mapping header: %w", err)
	}
	cols := make(map[string]int)
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["category"]; !ok {
		return Spec{}, errors.New("mapping sheet has no category column")
	}
	_, hasCode := cols["code"]
	_, hasPattern := cols["pattern"]
	if !hasCode && !hasPattern {
		return Spec{}, errors.New("mapping sheet needs a code or pattern column")
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var spec Spec
	seen := make(map[string]int)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Spec{}, err
		}

		category := field(record, "category")
		if category == "" {
			continue
		}
		idx, ok := seen[category]
		if !ok {
			spec.Categories = append(spec.Categories, category)
			spec.Codes = append(spec.Codes, CodeMapping{Category: category})
			idx = len(spec.Codes) - 1
			seen[category] = idx
		}
		if code := field(record, "code"); code != "" {
			spec.Codes[idx].Codes = append(spec.Codes[idx].Codes, code)
		}
		if pattern := field(record, "pattern"); pattern != "" {
			spec.Patterns = append(spec.Patterns, PatternSpec{
				Category:      category,
				Match:         field(record, "match"),
				Pattern:       pattern,
				ParentPattern: field(record, "parent_pattern"),
				AppliesTo:     field(record, "applies_to"),
			})
		}
	}
	return spec, nil
}

// FromCategoryMap builds a code-only spec from the {"category": [codes]}
// shape served by category mapping endpoints, keeping the given column order.
// Mapping keys outside categories are kept so that New rejects them.
func FromCategoryMap(categories []string, mapping map[string][]string) Spec {
	spec := Spec{Categories: categories}
	listed := make(map[string]bool, len(categories))
	for _, c := range categories {
		listed[c] = true
		if codes, ok := mapping[c]; ok {
			spec.Codes = append(spec.Codes, CodeMapping{Category: c, Codes: codes})
		}
	}
	var extra []string
	for c := range mapping {
		if !listed[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	for _, c := range extra {
		spec.Codes = append(spec.Codes, CodeMapping{Category: c, Codes: mapping[c]})
	}
	return spec
}
