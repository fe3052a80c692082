package model

import (
	"testing"
	"time"
)

func TestNormalizeDate(t *testing.T) {
	in := time.Date(2024, 3, 15, 13, 45, 10, 99, time.FixedZone("CST", 8*3600))
	got := NormalizeDate(in)
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NormalizeDate: got %v, want %v", got, want)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2015-01-05")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	bar := DailyBar{Date: d, Close: 20}
	if bar.Day() != "2015-01-05" {
		t.Errorf("Day: got %s", bar.Day())
	}

	if _, err := ParseDate("2015/01/05"); err == nil {
		t.Error("expected error for wrong layout")
	}
}
