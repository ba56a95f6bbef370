package drip

import "time"

// SendWindow is the daily range of local hours [StartHour, EndHour) in which
// messages may go out. Equal hours leave the window always open.
type SendWindow struct {
	StartHour int
	EndHour   int
	Location  *time.Location
}

func (w SendWindow) loc() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// Open reports whether t falls inside the window.
func (w SendWindow) Open(t time.Time) bool {
	if w.StartHour == w.EndHour {
		return true
	}
	h := t.In(w.loc()).Hour()
	if w.StartHour < w.EndHour {
		return h >= w.StartHour && h < w.EndHour
	}
	// window wraps past midnight
	return h >= w.StartHour || h < w.EndHour
}

// NextOpen returns t when the window is open, otherwise the next time it opens.
func (w SendWindow) NextOpen(t time.Time) time.Time {
	if w.Open(t) {
		return t
	}
	local := t.In(w.loc())
	opening := time.Date(local.Year(), local.Month(), local.Day(), w.StartHour, 0, 0, 0, w.loc())
	if !opening.After(local) {
		opening = opening.AddDate(0, 0, 1)
	}
	return opening
}
