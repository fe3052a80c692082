package twse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bandrebalance/internal/model"
)

var reportFields = []string{"日期", "成交股數", "成交金額", "開盤價", "最高價", "最低價", "收盤價", "漲跌價差", "成交筆數"}

func newTestServer(t *testing.T, months map[string][][]string) (*httptest.Server, *[]string) {
	t.Helper()
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exchangeReport/STOCK_DAY" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("stockNo") != "00631L" || r.URL.Query().Get("response") != "json" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		date := r.URL.Query().Get("date")
		seen = append(seen, date)
		rows, ok := months[date[:6]]
		if !ok {
			json.NewEncoder(w).Encode(map[string]string{"stat": "很抱歉，沒有符合條件的資料!"})
			return
		}
		if rows == nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"stat":   "OK",
			"fields": reportFields,
			"data":   rows,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestFetchMonth(t *testing.T) {
	srv, _ := newTestServer(t, map[string][][]string{
		"202401": {
			{"113/01/02", "12,345,678", "1", "100.50", "101.00", "99.80", "100.90", "+0.40", "5,000"},
			{"113/01/03", "0", "0", "--", "--", "--", "--", "0.00", "0"},
			{"113/01/04", "9,000", "1", "101.00", "102.00", "100.00", "101.50", "+0.60", "300"},
		},
	})
	c := NewClient(srv.URL)

	bars, err := c.FetchMonth(context.Background(), "00631L", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("FetchMonth: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars (no-trade row skipped), got %d", len(bars))
	}
	b := bars[0]
	if b.Day() != "2024-01-02" || b.Open != 100.5 || b.Close != 100.9 || b.Volume != 12345678 {
		t.Errorf("bar 0: %+v", b)
	}
	if bars[1].Day() != "2024-01-04" {
		t.Errorf("bar 1 date: %s", bars[1].Day())
	}
}

func TestFetchMonth_NoData(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	bars, err := NewClient(srv.URL).FetchMonth(context.Background(), "00631L", time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil || bars != nil {
		t.Errorf("expected nil, nil; got %v, %v", bars, err)
	}
}

func TestFetchRange_SkipsFailedMonths(t *testing.T) {
	srv, seen := newTestServer(t, map[string][][]string{
		"202401": {{"113/01/31", "1", "1", "10", "10", "10", "10", "0", "1"}},
		"202402": nil, // server error
		"202403": {{"113/03/01", "1", "1", "11", "11", "11", "11", "0", "1"}},
	})
	c := NewClient(srv.URL)
	c.Interval = 0

	var got []model.DailyBar
	err := c.FetchRange(context.Background(), "00631L",
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC),
		func(month time.Time, bars []model.DailyBar) error {
			got = append(got, bars...)
			return nil
		})
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	want := []string{"20240101", "20240201", "20240301", "20240401"}
	if len(*seen) != len(want) {
		t.Fatalf("requests: got %v, want %v", *seen, want)
	}
	for i := range want {
		if (*seen)[i] != want[i] {
			t.Errorf("request %d: got %s, want %s", i, (*seen)[i], want[i])
		}
	}
	if len(got) != 2 || got[0].Close != 10 || got[1].Close != 11 {
		t.Errorf("bars: %+v", got)
	}
}

func TestFetchRange_Cancelled(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c := NewClient(srv.URL)
	c.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := c.FetchRange(ctx, "00631L",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
		func(time.Time, []model.DailyBar) error { return nil })
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestConvertROCDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"113/01/02", "2024-01-02", false},
		{"104/12/31", "2015-12-31", false},
		{" 99/07/01 ", "2010-07-01", false},
		{"113/02/30", "", true},
		{"113-01-02", "", true},
		{"abc/01/02", "", true},
	}
	for _, tt := range tests {
		got, err := ConvertROCDate(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.in)
			}
			continue
		}
		if err != nil || got.Format(model.DateLayout) != tt.want {
			t.Errorf("%q: got %v %v, want %s", tt.in, got, err, tt.want)
		}
	}
}

func TestNextMonth(t *testing.T) {
	got := NextMonth(time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC))
	if got.Format(model.DateLayout) != "2025-01-01" {
		t.Errorf("NextMonth: got %v", got)
	}
}
