// Package twse fetches daily bars for a listed stock from the Taiwan Stock
// Exchange STOCK_DAY report, one calendar month per request.
package twse

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bandrebalance/internal/marketdata/csvfeed"
	"bandrebalance/internal/model"
)

// DefaultBaseURL is the public TWSE site.
const DefaultBaseURL = "https://www.twse.com.tw"

// Column labels of the STOCK_DAY report.
const (
	colDate   = "日期"
	colVolume = "成交股數"
	colOpen   = "開盤價"
	colHigh   = "最高價"
	colLow    = "最低價"
	colClose  = "收盤價"
)

// rocEpoch is the offset between ROC (Minguo) years and Gregorian years.
const rocEpoch = 1911

// Client fetches STOCK_DAY reports.
type Client struct {
	baseURL string
	client  *http.Client

	// Interval is the pause between consecutive month requests in FetchRange.
	Interval time.Duration
}

// NewClient creates a TWSE client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		Interval: time.Second,
	}
}

type stockDayResponse struct {
	Stat   string     `json:"stat"`
	Fields []string   `json:"fields"`
	Data   [][]string `json:"data"`
}

// FetchMonth returns the bars of the month containing month, oldest first.
// A month the exchange has no data for yields nil, nil.
func (c *Client) FetchMonth(ctx context.Context, stockNo string, month time.Time) ([]model.DailyBar, error) {
	q := url.Values{}
	q.Set("response", "json")
	q.Set("date", month.Format("20060102"))
	q.Set("stockNo", stockNo)
	endpoint := c.baseURL + "/exchangeReport/STOCK_DAY?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("twse: create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twse: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("twse: unexpected status %d", resp.StatusCode)
	}

	var body stockDayResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("twse: decode: %w", err)
	}
	if len(body.Fields) == 0 || len(body.Data) == 0 {
		return nil, nil
	}
	return parseRows(body.Fields, body.Data)
}

func parseRows(fields []string, rows [][]string) ([]model.DailyBar, error) {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[strings.TrimSpace(f)] = i
	}
	for _, name := range []string{colDate, colVolume, colOpen, colHigh, colLow, colClose} {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("twse: report missing column %q", name)
		}
	}

	bars := make([]model.DailyBar, 0, len(rows))
	for _, row := range rows {
		if len(row) < len(fields) {
			continue
		}
		date, err := ConvertROCDate(row[idx[colDate]])
		if err != nil {
			return nil, fmt.Errorf("twse: %w", err)
		}
		var b model.DailyBar
		b.Date = date
		ok := true
		for col, dst := range map[string]*float64{colOpen: &b.Open, colHigh: &b.High, colLow: &b.Low, colClose: &b.Close, colVolume: &b.Volume} {
			v, err := csvfeed.ParseNumber(row[idx[col]])
			if err != nil {
				ok = false
				break
			}
			*dst = v
		}
		if !ok {
			// "--" prices: no trade that day
			log.Printf("[twse] skipping %s: non-numeric price", b.Day())
			continue
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// FetchRange walks month by month from the month of from through the month
// of to, calling onMonth with each month's bars. Months that fail or have no
// data are logged and skipped. It returns early only on ctx cancellation or
// an onMonth error.
func (c *Client) FetchRange(ctx context.Context, stockNo string, from, to time.Time, onMonth func(month time.Time, bars []model.DailyBar) error) error {
	month := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	first := true

	for !month.After(to) {
		if !first && c.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.Interval):
			}
		}
		first = false

		bars, err := c.FetchMonth(ctx, stockNo, month)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		switch {
		case err != nil:
			log.Printf("[twse] %s %s: fetch failed: %v", stockNo, month.Format("2006-01"), err)
		case len(bars) == 0:
			log.Printf("[twse] %s %s: no data", stockNo, month.Format("2006-01"))
		default:
			if err := onMonth(month, bars); err != nil {
				return err
			}
			log.Printf("[twse] %s %s: %d bars", stockNo, month.Format("2006-01"), len(bars))
		}
		month = NextMonth(month)
	}
	return nil
}

// ConvertROCDate converts a "yyy/mm/dd" ROC calendar date to a Gregorian date.
func ConvertROCDate(s string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid ROC date %q", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid ROC date %q", s)
		}
		nums[i] = n
	}
	year, month, day := nums[0]+rocEpoch, time.Month(nums[1]), nums[2]
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Month() != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("invalid ROC date %q", s)
	}
	return t, nil
}

// NextMonth returns the first day of the month after t.
func NextMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
