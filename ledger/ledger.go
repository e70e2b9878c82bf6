// Package ledger keeps the operator's running list of scan outcomes for one
// scanning session.
package ledger

import (
	"encoding/csv"
	"io"
	"sync"
	"time"
)

// Status is the outcome recorded for a scan attempt
type Status string

// Scan outcomes
const (
	StatusVerified        Status = "verified"
	StatusAlreadyVerified Status = "already_verified"
	StatusNotFound        Status = "not_found"
	StatusMalformed       Status = "malformed"
	StatusError           Status = "error"
)

// Header is the first row written by WriteCSV
var Header = []string{"name", "token", "timeSlot", "scannedAt", "status", "errorMessage"}

// Entry is a single scan attempt
type Entry struct {
	Name         string    `json:"name"`
	Token        string    `json:"token"`
	TimeSlot     string    `json:"timeSlot"`
	ScannedAt    time.Time `json:"scannedAt"`
	Status       Status    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Operator     string    `json:"operator,omitempty"`
}

// Ledger is append only and safe for concurrent use
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
}

// New returns an empty ledger
func New() *Ledger {
	return &Ledger{}
}

// Record appends an entry, stamping ScannedAt when it is zero
func (l *Ledger) Record(e Entry) {
	if e.ScannedAt.IsZero() {
		e.ScannedAt = time.Now()
	}
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Entries returns a copy of every entry in the order recorded
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded entries
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Summary counts entries by status
func (l *Ledger) Summary() map[Status]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[Status]int)
	for _, e := range l.entries {
		counts[e.Status]++
	}
	return counts
}

// WriteCSV writes the header and one row per entry
func (l *Ledger) WriteCSV(w io.Writer) error {
	entries := l.Entries()

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{
			e.Name,
			e.Token,
			e.TimeSlot,
			e.ScannedAt.UTC().Format(time.RFC3339),
			string(e.Status),
			e.ErrorMessage,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
