package model

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse(DefaultDateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestHistorySeries_Layout(t *testing.T) {
	s := HistorySeries{}
	if s.Layout() != DefaultDateLayout {
		t.Errorf("Layout() = %q, want %q", s.Layout(), DefaultDateLayout)
	}

	s.DateLayout = "2006-01-02 15:04:05"
	if s.Layout() != "2006-01-02 15:04:05" {
		t.Errorf("Layout() = %q, want %q", s.Layout(), "2006-01-02 15:04:05")
	}
}

func TestHistorySeries_MinMaxDate(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		s := HistorySeries{}
		if _, ok := s.MinDate(); ok {
			t.Error("MinDate() ok = true for empty series")
		}
		if _, ok := s.MaxDate(); ok {
			t.Error("MaxDate() ok = true for empty series")
		}
	})

	t.Run("unordered rows", func(t *testing.T) {
		s := HistorySeries{Rows: []HistoryRow{
			{Date: day("2017-03-02")},
			{Date: day("2017-03-01")},
			{Date: day("2017-03-05")},
		}}

		min, ok := s.MinDate()
		if !ok || !min.Equal(day("2017-03-01")) {
			t.Errorf("MinDate() = %v, %v, want 2017-03-01", min, ok)
		}
		max, ok := s.MaxDate()
		if !ok || !max.Equal(day("2017-03-05")) {
			t.Errorf("MaxDate() = %v, %v, want 2017-03-05", max, ok)
		}
	})
}

func TestHistorySeries_Sort(t *testing.T) {
	s := HistorySeries{Rows: []HistoryRow{
		{Date: day("2017-03-02"), AvgPrice: 2},
		{Date: day("2017-03-01"), AvgPrice: 1},
		{Date: day("2017-03-03"), AvgPrice: 3},
	}}

	s.SortDescending()
	for i, want := range []float64{3, 2, 1} {
		if s.Rows[i].AvgPrice != want {
			t.Errorf("descending Rows[%d].AvgPrice = %v, want %v", i, s.Rows[i].AvgPrice, want)
		}
	}

	s.SortAscending()
	for i, want := range []float64{1, 2, 3} {
		if s.Rows[i].AvgPrice != want {
			t.Errorf("ascending Rows[%d].AvgPrice = %v, want %v", i, s.Rows[i].AvgPrice, want)
		}
	}
}

func TestHistorySeries_Clone(t *testing.T) {
	s := HistorySeries{Rows: []HistoryRow{{Date: day("2017-03-01"), AvgPrice: 1}}, DateLayout: "x"}
	c := s.Clone()
	c.Rows[0].AvgPrice = 99

	if s.Rows[0].AvgPrice != 1 {
		t.Errorf("original mutated: AvgPrice = %v, want 1", s.Rows[0].AvgPrice)
	}
	if c.DateLayout != "x" {
		t.Errorf("DateLayout = %q, want %q", c.DateLayout, "x")
	}
}

func TestTruncateDate(t *testing.T) {
	in := time.Date(2017, 4, 20, 17, 45, 3, 99, time.FixedZone("EST", -5*3600))
	got := TruncateDate(in)
	want := time.Date(2017, 4, 20, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("TruncateDate() = %v, want %v", got, want)
	}
}
