package pos

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chrisdamba/salescount/internal/ingest"
	"github.com/chrisdamba/salescount/internal/models"
	"github.com/tidwall/gjson"
)

// PullGeneric reads sales lines from a plain JSON endpoint. The body may be
// an array of records or an object with a data array. Records that name a
// modifier are returned as modifier lines.
func (c *Client) PullGeneric(ctx context.Context, path, location string, from, to time.Time) ([]models.RawLine, []models.RawLine, []models.Rejection, error) {
	query := url.Values{}
	query.Set("location", location)
	query.Set("start_date", from.Format(models.DateLayout))
	query.Set("end_date", to.Format(models.DateLayout))
	query.Set("format", "json")

	body, err := c.do(ctx, "GET", path, query, nil, nil, c.bearer() != "")
	if err != nil {
		return nil, nil, nil, err
	}

	parsed := gjson.Parse(body)
	if parsed.IsObject() && parsed.Get("data").IsArray() {
		parsed = parsed.Get("data")
	}
	var itemRecs, modRecs []map[string]string
	for _, rec := range parsed.Array() {
		m := flatten(rec)
		if strings.TrimSpace(m["modifier_name"]) != "" {
			modRecs = append(modRecs, m)
		} else {
			itemRecs = append(itemRecs, m)
		}
	}

	opts := ingest.Options{Location: location, TimeZone: c.zone, SyntheticIDs: true}
	items, err := ingest.FromMaps(itemRecs, models.LineKindItem, opts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("item records: %w", err)
	}
	mods, err := ingest.FromMaps(modRecs, models.LineKindModifier, opts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("modifier records: %w", err)
	}
	return items.Lines, mods.Lines, append(items.Rejections, mods.Rejections...), nil
}

func flatten(rec gjson.Result) map[string]string {
	m := make(map[string]string)
	rec.ForEach(func(k, v gjson.Result) bool {
		if v.Type != gjson.Null {
			m[k.String()] = v.String()
		}
		return true
	})
	return m
}

// FetchCategoryMappings reads a {"category": [code, ...]} document.
func (c *Client) FetchCategoryMappings(ctx context.Context, path string) (map[string][]string, error) {
	body, err := c.do(ctx, "GET", path, nil, nil, nil, c.bearer() != "")
	if err != nil {
		return nil, err
	}
	parsed := gjson.Parse(body)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("%s: expected an object of category code lists", path)
	}

	mapping := make(map[string][]string)
	var bad []string
	parsed.ForEach(func(k, v gjson.Result) bool {
		if !v.IsArray() {
			bad = append(bad, k.String())
			return true
		}
		codes := []string{}
		for _, code := range v.Array() {
			if s := strings.TrimSpace(code.String()); s != "" {
				codes = append(codes, s)
			}
		}
		mapping[k.String()] = codes
		return true
	})
	if len(bad) > 0 {
		return nil, fmt.Errorf("%s: categories without a code list: %s", path, strings.Join(bad, ", "))
	}
	return mapping, nil
}
