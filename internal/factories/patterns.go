package factories

import (
	"math"
	"time"
)

// hourWeights is the relative order volume per opening hour: a lunch peak at
// 12-13 and a dinner peak at 18-20, with a trickle after midnight.
var hourWeights = map[int]float64{
	11: 0.6, 12: 1.5, 13: 1.3, 14: 0.6, 15: 0.4,
	16: 0.5, 17: 0.9, 18: 1.4, 19: 1.5, 20: 1.1, 21: 0.6,
	// the next calendar day
	24: 0.05, 25: 0.03,
}

var hours = func() []int {
	var hs []int
	for h := 11; h <= 25; h++ {
		if hourWeights[h] > 0 {
			hs = append(hs, h)
		}
	}
	return hs
}()

// dayMultiplier scales a day's order count: busier on Friday and the
// weekend, slightly busier in summer.
func dayMultiplier(date time.Time) float64 {
	m := 1.0
	switch date.Weekday() {
	case time.Friday:
		m *= 1.3
	case time.Saturday, time.Sunday:
		m *= 1.5
	}
	seasonal := math.Sin(2 * math.Pi * float64(date.YearDay()-80) / 365.0)
	return m * (1 + 0.1*seasonal)
}

// pickHour draws an hour (24 and 25 mean after midnight) with probability
// proportional to its weight, given u uniform in [0, 1).
func pickHour(u float64) int {
	total := 0.0
	for _, h := range hours {
		total += hourWeights[h]
	}
	target := u * total
	for _, h := range hours {
		target -= hourWeights[h]
		if target < 0 {
			return h
		}
	}
	return hours[len(hours)-1]
}
