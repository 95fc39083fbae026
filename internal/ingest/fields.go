package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Canonical field names every source schema is mapped onto.
const (
	FieldLocation = "location"
	FieldOrderID  = "order_id"
	FieldLineID   = "line_id"
	FieldTime     = "order_timestamp"
	FieldName     = "display_name"
	FieldParent   = "parent_name"
	FieldQuantity = "quantity"
	FieldVoided   = "voided"
	FieldCode     = "code"
)

// Aliases lists, per canonical field, the source column names that carry it
// in priority order. Item and modifier exports differ only in the name
// column and in which PLU column they fill.
var itemAliases = map[string][]string{
	FieldLocation: {"location", "store_location", "location_name", "store_name", "restaurant"},
	FieldOrderID:  {"order_id", "order_guid", "check_id"},
	FieldLineID:   {"item_selection_id", "line_id", "selection_id"},
	FieldTime:     {"order_date", "order_timestamp", "order_time", "transaction_time", "timestamp", "sent_date"},
	FieldName:     {"menu_item", "display_name", "item_name", "product_name"},
	FieldParent:   {"parent_name"},
	FieldQuantity: {"qty", "quantity"},
	FieldVoided:   {"void", "voided", "is_void"},
	FieldCode:     {"plu", "plu_code", "code", "item_id", "product_id", "master_id"},
}

var modifierAliases = map[string][]string{
	FieldLocation: itemAliases[FieldLocation],
	FieldOrderID:  itemAliases[FieldOrderID],
	// the parent selection id ties a modifier to the order line it describes
	FieldLineID:   {"item_selection_id", "line_id", "selection_id", "modifier_id"},
	FieldTime:     itemAliases[FieldTime],
	FieldName:     {"modifier", "modifier_name", "display_name", "option_name"},
	FieldParent:   {"parent_menu_selection", "parent_name", "menu_item", "item_name"},
	FieldQuantity: itemAliases[FieldQuantity],
	FieldVoided:   itemAliases[FieldVoided],
	FieldCode:     {"modifier_plu", "plu", "plu_code", "code", "master_id"},
}

var requiredFields = []string{FieldOrderID, FieldLineID, FieldTime, FieldName}

// NormalizeHeader folds a column name so "Order Id", "order_id" and
// "ORDER-ID" compare equal. "Void?" becomes "void".
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range h {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == ' ' || r == '_' || r == '-' || r == '.':
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"1/2/06 3:04 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006 3:04:05 PM",
	"01/02/2006 15:04",
	"01/02/2006 15:04:05",
}

var errEmpty = errors.New("empty value")

// ParseTime accepts the timestamp layouts seen in POS exports. Layouts
// without an offset are read in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmpty
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// ParseQuantity defaults to 1 when the value is missing.
func ParseQuantity(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NewFromInt(1), nil
	}
	q, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad quantity %q", s)
	}
	return q, nil
}

func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "f", "no", "n", "0":
		return false, nil
	case "true", "t", "yes", "y", "1":
		return true, nil
	}
	return false, fmt.Errorf("bad void flag %q", s)
}
