// Package report is the JSON record of a convert run: one entry per source,
// its output file and hash, and totals. stats and validate read it back.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// New creates an empty report.
func New(presetName string) *Report {
	return &Report{
		Version:     SupportedVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Preset:      presetName,
		Entries:     make(map[string]Entry),
	}
}

// ComputeStats recalculates the totals from the entries.
func (r *Report) ComputeStats() {
	var s Stats
	s.TotalEntries = len(r.Entries)
	for _, e := range r.Entries {
		s.TotalInputBytes += e.Source.Size
		switch {
		case e.Output != nil:
			s.Converted++
			s.TotalOutputBytes += e.Output.Size
			s.ConvertedInput += e.Source.Size
		case e.Error != "":
			s.Failed++
		default:
			s.Skipped++
		}
	}
	r.Stats = s
}

// WriteJSON serializes the report with stable key ordering.
func WriteJSON(r *Report, path string) error {
	r.ComputeStats()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON loads a report written by WriteJSON. Unknown fields are ignored.
func ReadJSON(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	if r.Entries == nil {
		r.Entries = make(map[string]Entry)
	}
	return &r, nil
}
