package pos

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/chrisdamba/salescount/internal/ingest"
	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

type Restaurant struct {
	GUID       string `json:"guid"`
	Name       string `json:"name"`
	ExternalID string `json:"external_id,omitempty"`
}

// ListRestaurants returns the restaurants the credentials can see. Several
// endpoint generations exist; the first one answering with a non-empty list
// wins.
func (c *Client) ListRestaurants(ctx context.Context) ([]Restaurant, error) {
	var lastErr error
	for _, path := range restaurantPaths {
		body, err := c.do(ctx, "GET", path, nil, nil, nil, true)
		if err != nil {
			if errors.Is(err, ErrNotAuthorized) {
				return nil, err
			}
			utils.Log.WithField("path", path).Debugf("restaurant listing failed: %v", err)
			lastErr = err
			continue
		}

		var restaurants []Restaurant
		gjson.Parse(body).ForEach(func(_, r gjson.Result) bool {
			guid := firstString(r, "guid", "id")
			if guid == "" {
				return true
			}
			restaurants = append(restaurants, Restaurant{
				GUID:       guid,
				Name:       firstString(r, "restaurantName", "name", "locationName"),
				ExternalID: r.Get("externalId").String(),
			})
			return true
		})
		if len(restaurants) > 0 {
			return restaurants, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("no restaurant endpoint answered: %w", lastErr)
	}
	return nil, errors.New("no restaurants visible to these credentials")
}

// PullOrders fetches every order of one business day for a restaurant and
// flattens checks and selections into item lines and modifier lines.
// Modifiers carry the GUID of the selection they modify as their line id.
// An order with an unreadable timestamp or quantity is logged and skipped.
func (c *Client) PullOrders(ctx context.Context, restaurantGUID string, businessDate time.Time) ([]models.RawLine, []models.RawLine, error) {
	location := c.LocationName(restaurantGUID)
	headers := map[string]string{restaurantHeader: restaurantGUID}
	log := utils.Log.WithFields(logrus.Fields{
		"restaurant": restaurantGUID,
		"location":   location,
		"date":       businessDate.Format(models.DateLayout),
	})

	var items, modifiers []models.RawLine
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("businessDate", businessDate.Format("20060102"))
		query.Set("page", strconv.Itoa(page))
		query.Set("pageSize", strconv.Itoa(c.pageSize))

		body, err := c.do(ctx, "GET", "/orders/v2/ordersBulk", query, headers, nil, true)
		if err != nil {
			return nil, nil, fmt.Errorf("page %d: %w", page, err)
		}

		orders := gjson.Parse(body).Array()
		for _, order := range orders {
			it, mods, err := c.orderLines(order, location)
			if err != nil {
				log.WithField("order", order.Get("guid").String()).Warnf("skipping order: %v", err)
				continue
			}
			items = append(items, it...)
			modifiers = append(modifiers, mods...)
		}
		log.Debugf("page %d: %d orders", page, len(orders))

		if len(orders) < c.pageSize {
			break
		}
	}
	log.Infof("pulled %d item lines and %d modifier lines", len(items), len(modifiers))
	return items, modifiers, nil
}

func (c *Client) orderLines(order gjson.Result, location string) ([]models.RawLine, []models.RawLine, error) {
	orderID := order.Get("guid").String()
	opened := firstString(order, "openedDate", "paidDate", "createdDate")
	var orderTime time.Time
	if opened != "" {
		t, err := ingest.ParseTime(opened, time.UTC)
		if err != nil {
			return nil, nil, err
		}
		orderTime = t.In(c.zone)
	}
	orderVoided := order.Get("voided").Bool() || order.Get("deleted").Bool()

	var items, modifiers []models.RawLine
	for _, check := range order.Get("checks").Array() {
		checkVoided := orderVoided || check.Get("voided").Bool() || check.Get("deleted").Bool()
		for _, sel := range check.Get("selections").Array() {
			selID := sel.Get("guid").String()
			selName := sel.Get("displayName").String()
			selVoided := checkVoided || sel.Get("voided").Bool()
			selQty, err := quantity(sel)
			if err != nil {
				return nil, nil, err
			}

			items = append(items, models.RawLine{
				Location:    location,
				OrderID:     orderID,
				LineID:      selID,
				OrderTime:   orderTime,
				DisplayName: selName,
				Quantity:    selQty,
				Voided:      selVoided,
				Code:        selectionCode(sel),
			})

			for _, mod := range sel.Get("modifiers").Array() {
				modQty, err := quantity(mod)
				if err != nil {
					return nil, nil, err
				}
				modifiers = append(modifiers, models.RawLine{
					Location:    location,
					OrderID:     orderID,
					LineID:      selID,
					OrderTime:   orderTime,
					DisplayName: mod.Get("displayName").String(),
					ParentName:  selName,
					Quantity:    modQty,
					Voided:      selVoided || mod.Get("voided").Bool(),
					Code:        selectionCode(mod),
				})
			}
		}
	}
	return items, modifiers, nil
}

// quantity defaults to 1 when the field is absent. A value that is present
// but not a number is an error.
func quantity(r gjson.Result) (decimal.Decimal, error) {
	q := r.Get("quantity")
	if !q.Exists() || q.Type == gjson.Null {
		return decimal.NewFromInt(1), nil
	}
	d, err := decimal.NewFromString(q.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("selection %s: bad quantity %q", r.Get("guid").String(), q.Raw)
	}
	return d, nil
}

func selectionCode(r gjson.Result) string {
	return firstString(r, "plu", "item.plu", "item.externalId", "sku")
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p).String(); v != "" {
			return v
		}
	}
	return ""
}
