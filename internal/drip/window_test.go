package drip

import (
	"testing"
	"time"
)

func TestSendWindowOpen(t *testing.T) {
	day := SendWindow{StartHour: 9, EndHour: 21}
	night := SendWindow{StartHour: 22, EndHour: 6}
	always := SendWindow{StartHour: 8, EndHour: 8}

	at := func(hour int) time.Time {
		return time.Date(2026, 5, 4, hour, 30, 0, 0, time.UTC)
	}

	tests := []struct {
		name   string
		window SendWindow
		hour   int
		want   bool
	}{
		{"day before open", day, 8, false},
		{"day at open", day, 9, true},
		{"day last hour", day, 20, true},
		{"day at close", day, 21, false},
		{"wrapped late", night, 23, true},
		{"wrapped early", night, 5, true},
		{"wrapped closed", night, 12, false},
		{"always open", always, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.window.Open(at(tt.hour)); got != tt.want {
				t.Errorf("Open(%02d:30) = %v, want %v", tt.hour, got, tt.want)
			}
		})
	}
}

func TestSendWindowNextOpen(t *testing.T) {
	w := SendWindow{StartHour: 9, EndHour: 21}

	early := time.Date(2026, 5, 4, 3, 0, 0, 0, time.UTC)
	if got, want := w.NextOpen(early), time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("NextOpen(early) = %s, want %s", got, want)
	}

	late := time.Date(2026, 5, 4, 22, 15, 0, 0, time.UTC)
	if got, want := w.NextOpen(late), time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("NextOpen(late) = %s, want %s", got, want)
	}

	open := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	if got := w.NextOpen(open); !got.Equal(open) {
		t.Errorf("NextOpen(open) = %s, want unchanged", got)
	}
}

func TestSendWindowLocation(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	w := SendWindow{StartHour: 9, EndHour: 21, Location: loc}

	// 13:00 UTC is 08:00 local
	if w.Open(time.Date(2026, 5, 4, 13, 0, 0, 0, time.UTC)) {
		t.Error("expected window closed at 08:00 local")
	}
	next := w.NextOpen(time.Date(2026, 5, 4, 13, 0, 0, 0, time.UTC))
	if want := time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("NextOpen = %s, want %s", next.UTC(), want)
	}
}
