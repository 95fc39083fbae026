package models

import "fmt"

type LineKind string

const (
	LineKindItem     LineKind = "item"
	LineKindModifier LineKind = "modifier"
)

type ServicePeriod string

const (
	ServiceLunch     ServicePeriod = "Lunch"
	ServiceDinner    ServicePeriod = "Dinner"
	ServiceOvernight ServicePeriod = "Overnight"
)

var ServicePeriods = []ServicePeriod{ServiceLunch, ServiceDinner, ServiceOvernight}

// TotalLabel is the label of the period's subtotal row.
func (s ServicePeriod) TotalLabel() string {
	return string(s) + " Total"
}

// Order is the chronological position of the period within a business day.
func (s ServicePeriod) Order() int {
	switch s {
	case ServiceLunch:
		return 0
	case ServiceDinner:
		return 1
	case ServiceOvernight:
		return 2
	}
	return 3
}

// RowKind tags report rows so totals never have to be recognised by their text.
type RowKind int

const (
	RowDetail RowKind = iota
	RowServiceTotal
	RowGrandTotal
)

func (k RowKind) String() string {
	switch k {
	case RowDetail:
		return "detail"
	case RowServiceTotal:
		return "service_total"
	case RowGrandTotal:
		return "grand_total"
	}
	return fmt.Sprintf("row_kind(%d)", int(k))
}

func (k RowKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *RowKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "detail":
		*k = RowDetail
	case "service_total":
		*k = RowServiceTotal
	case "grand_total":
		*k = RowGrandTotal
	default:
		return fmt.Errorf("unknown row kind %q", string(text))
	}
	return nil
}

const (
	EarlyMorningSameDayDinner  = "same_day_dinner"
	EarlyMorningPriorDayDinner = "prior_day_dinner"
	EarlyMorningOvernight      = "overnight"
)

const (
	GrandTotalLabel = "Grand Total"
	DateLayout      = "2006-01-02"
)
