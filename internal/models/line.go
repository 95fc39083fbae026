package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidLine = errors.New("invalid line")

// RawLine is one POS item selection or modifier selection after it has been
// normalized from whatever export or API produced it.
type RawLine struct {
	Location    string          `json:"location"`
	OrderID     string          `json:"order_id"`
	LineID      string          `json:"line_id"` // dedup key, unique within an order
	OrderTime   time.Time       `json:"order_timestamp"`
	DisplayName string          `json:"display_name"`
	ParentName  string          `json:"parent_name,omitempty"` // modifiers only
	Quantity    decimal.Decimal `json:"quantity"`
	Voided      bool            `json:"voided"`
	Code        string          `json:"code,omitempty"` // PLU / lookup code
}

// Validate reports the first problem that makes the line unusable for
// aggregation. Voided lines are still valid lines.
func (l RawLine) Validate() error {
	switch {
	case strings.TrimSpace(l.OrderID) == "":
		return fmt.Errorf("%w: missing order_id", ErrInvalidLine)
	case strings.TrimSpace(l.LineID) == "":
		return fmt.Errorf("%w: missing line_id", ErrInvalidLine)
	case l.OrderTime.IsZero():
		return fmt.Errorf("%w: missing order timestamp", ErrInvalidLine)
	case l.Quantity.IsNegative():
		return fmt.Errorf("%w: negative quantity %s", ErrInvalidLine, l.Quantity.String())
	}
	return nil
}

// DedupKey identifies the physical order line the record describes.
func (l RawLine) DedupKey() string {
	return l.OrderID + "\x00" + l.LineID
}
