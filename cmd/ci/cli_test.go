package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matsen/scholarimpact/internal/rankings"
)

func TestParseAge(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30d", 30 * 24 * time.Hour, false},
		{"0d", 0, false},
		{"12h", 12 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"-1d", 0, true},
		{"-5h", 0, true},
		{"soon", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseAge(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseAge(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("parseAge(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadRankCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "venues.csv")
	csv := "name,rank,tier,source\nNeurIPS,1,A*,core2023\nICML,2,A*\nJSS,40,B,core2023\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	var got []string
	n, err := loadRankCSV(path, func(name string, info rankings.RankInfo) error {
		got = append(got, name)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || len(got) != 3 {
		t.Errorf("loaded %d rows: %v", n, got)
	}
	if got[0] != "NeurIPS" {
		t.Errorf("header row not skipped: %v", got)
	}
}

func TestLoadRankCSVBadRank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "venues.csv")
	if err := os.WriteFile(path, []byte("NeurIPS,1,A*\nICML,two,A*\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadRankCSV(path, func(string, rankings.RankInfo) error { return nil }); err == nil {
		t.Error("bad rank on a non-header row accepted")
	}
}
