package util

import (
	"math"
	"path/filepath"
	"testing"
)

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00.000"},
		{2.5, "00:00:02.500"},
		{3725.5, "01:02:05.500"},
		{-1, "00:00:00.000"},
	}
	for _, tt := range tests {
		if got := FormatSeconds(tt.in); got != tt.want {
			t.Errorf("FormatSeconds(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"45.5", 45.5, false},
		{"1:30", 90, false},
		{"01:02:05.5", 3725.5, false},
		{" 8 ", 8, false},
		{"", 0, true},
		{"a:b", 0, true},
		{"1:2:3:4", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseRange(t *testing.T) {
	start, end, err := ParseRange("2,0:08")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != 2 || end != 8 {
		t.Errorf("got %v..%v, want 2..8", start, end)
	}

	if _, _, err := ParseRange("2"); err == nil {
		t.Error("expected error for missing end")
	}
}

func TestParseFrameRate(t *testing.T) {
	if got := ParseFrameRate("30/1"); got != 30 {
		t.Errorf("expected 30, got %v", got)
	}
	if got := ParseFrameRate("30000/1001"); math.Abs(got-29.97) > 0.01 {
		t.Errorf("expected ~29.97, got %v", got)
	}
	if got := ParseFrameRate("0/0"); got != 0 {
		t.Errorf("expected 0 for 0/0, got %v", got)
	}
	if got := ParseFrameRate("25"); got != 25 {
		t.Errorf("expected 25, got %v", got)
	}
}

func TestPartialPath(t *testing.T) {
	got := PartialPath(filepath.Join("out", "clip.mp4"))
	want := filepath.Join("out", ".clip.partial.mp4")
	if got != want {
		t.Errorf("PartialPath = %q, want %q", got, want)
	}
}
