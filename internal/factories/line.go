package factories

import (
	"math"
	"math/rand"
	"time"

	"github.com/chrisdamba/salescount/internal/models"
	"github.com/jaswdr/faker"
	"github.com/lucsky/cuid"
	"github.com/shopspring/decimal"
)

type menuItem struct {
	name string
	code string
	// each inner slice is one modifier group; a selection picks one option
	// from every group
	modifiers [][]string
}

var sides = []string{"Corn on the Cob", "Cheese Grits", "Mashed Potatoes", "Potato Salad", "Coleslaw", "Mac & Cheese"}

var menu = []menuItem{
	{name: "1/2 Chicken Plate", code: "81831", modifiers: [][]string{{"White Meat", "Dark Meat"}, sides}},
	{name: "Chicken (2pc) Plate", modifiers: [][]string{{"White Meat", "Dark Meat"}, sides}},
	{name: "1/2 Ribs Plate", code: "81840", modifiers: [][]string{sides, sides}},
	{name: "Full Ribs Dinner", code: "81841", modifiers: [][]string{sides, sides}},
	{name: "Meat Plate", modifiers: [][]string{{"6oz Brisket", "8oz Brisket", "6 oz Pulled Pork", "8 oz Pulled Pork"}, sides}},
	{name: "Side of Corn"},
	{name: "Side of Grits"},
	{name: "Sweet Tea"},
	{name: "Lemonade"},
	{name: "Banana Pudding"},
}

// LineFactory generates POS lines shaped like real exports: item selections
// from a barbecue menu with their modifier selections.
type LineFactory struct {
	fake faker.Faker
	// VoidPercent is the chance, 0-100, that an item selection is voided.
	VoidPercent int
}

func NewLineFactory(seed int64) *LineFactory {
	return &LineFactory{fake: faker.NewWithSeed(rand.NewSource(seed)), VoidPercent: 3}
}

// CreateOrder returns the item and modifier lines of one order placed at t.
// Modifier lines carry the selection id of their parent item as LineID.
func (f *LineFactory) CreateOrder(location string, t time.Time) ([]models.RawLine, []models.RawLine) {
	orderID := cuid.New()
	selections := f.fake.IntBetween(1, 4)

	var items, modifiers []models.RawLine
	for i := 0; i < selections; i++ {
		m := menu[f.fake.IntBetween(0, len(menu)-1)]
		item := models.RawLine{
			Location:    location,
			OrderID:     orderID,
			LineID:      cuid.New(),
			OrderTime:   t,
			DisplayName: m.name,
			Quantity:    decimal.NewFromInt(int64(f.quantity())),
			Voided:      f.fake.IntBetween(1, 100) <= f.VoidPercent,
			Code:        m.code,
		}
		items = append(items, item)

		for _, group := range m.modifiers {
			modifiers = append(modifiers, models.RawLine{
				Location:    location,
				OrderID:     orderID,
				LineID:      item.LineID,
				OrderTime:   t,
				DisplayName: f.fake.RandomStringElement(group),
				ParentName:  m.name,
				Quantity:    decimal.NewFromInt(1),
				Voided:      item.Voided,
			})
		}
	}
	return items, modifiers
}

// CreateDay generates about orders orders for date, scaled by weekday and
// season, with times following the lunch and dinner peaks in loc. A few
// orders fall after midnight on the next calendar day.
func (f *LineFactory) CreateDay(location string, date time.Time, orders int, loc *time.Location) ([]models.RawLine, []models.RawLine) {
	if loc == nil {
		loc = time.UTC
	}
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	n := int(math.Round(float64(orders) * dayMultiplier(date)))

	var items, modifiers []models.RawLine
	for i := 0; i < n; i++ {
		hour := pickHour(float64(f.fake.IntBetween(0, 9999)) / 10000)
		at := midnight.Add(time.Duration(hour)*time.Hour + time.Duration(f.fake.IntBetween(0, 3599))*time.Second)
		it, mods := f.CreateOrder(location, at)
		items = append(items, it...)
		modifiers = append(modifiers, mods...)
	}
	return items, modifiers
}

func (f *LineFactory) quantity() int {
	if f.fake.IntBetween(1, 10) == 1 {
		return 2
	}
	return 1
}
