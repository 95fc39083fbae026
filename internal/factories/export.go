package factories

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/chrisdamba/salescount/internal/models"
)

const exportTimeLayout = "2006-01-02 15:04:05"

var (
	itemHeader     = []string{"Location", "Order Id", "Item Selection Id", "Order Date", "Menu Item", "Master Id", "Qty", "Void?"}
	modifierHeader = []string{"Location", "Order Id", "Item Selection Id", "Order Date", "Modifier", "Parent Menu Selection", "Modifier PLU", "Qty", "Void?"}
)

// WriteItemsCSV writes lines in the layout of a POS item selection export.
func WriteItemsCSV(w io.Writer, lines []models.RawLine) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(itemHeader); err != nil {
		return err
	}
	for _, l := range lines {
		record := []string{
			l.Location, l.OrderID, l.LineID, l.OrderTime.Format(exportTimeLayout),
			l.DisplayName, l.Code, l.Quantity.String(), strconv.FormatBool(l.Voided),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteModifiersCSV writes lines in the layout of a POS modifier export.
func WriteModifiersCSV(w io.Writer, lines []models.RawLine) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(modifierHeader); err != nil {
		return err
	}
	for _, l := range lines {
		record := []string{
			l.Location, l.OrderID, l.LineID, l.OrderTime.Format(exportTimeLayout),
			l.DisplayName, l.ParentName, l.Code, l.Quantity.String(), strconv.FormatBool(l.Voided),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
