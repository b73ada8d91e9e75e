package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kilianp07/unitcommit/core/model"
)

// ErrEmptySchedule is returned when the schedule carries no commitment.
var ErrEmptySchedule = errors.New("schedule has no commitment")

// Row is one generator-period line of an exported schedule. The shedding
// rows use the reserved unit name "shed".
type Row struct {
	Unit      string  `json:"unit"`
	Period    int     `json:"period"`
	Committed int     `json:"committed"`
	Startup   int     `json:"startup"`
	PowerMW   float64 `json:"power_mw"`
	DemandMW  float64 `json:"demand_mw"`
	Cost      float64 `json:"cost"`
}

// Rows flattens s into per-period lines. Periods are 1-based.
func Rows(d *model.ProblemData, s *model.Schedule) ([]Row, error) {
	if s == nil || s.Commitment == nil {
		return nil, ErrEmptySchedule
	}
	rows := make([]Row, 0, (d.G()+1)*d.T())
	for g, gen := range d.Generators {
		for t := 0; t < d.T(); t++ {
			r := Row{Unit: gen.Name, Period: t + 1, DemandMW: d.Demand[t]}
			if s.Commitment.On(g, t) {
				r.Committed = 1
				r.PowerMW = s.Dispatch.Production[g][t]
				r.Cost = gen.OnlineCost + gen.ProductionCost*r.PowerMW
				if !s.Commitment.On(g, t-1) {
					r.Startup = 1
					r.Cost += gen.StartupCost
				}
			}
			rows = append(rows, r)
		}
	}
	for t := 0; t < d.T(); t++ {
		shed := s.Dispatch.Shedding[t]
		rows = append(rows, Row{
			Unit:     "shed",
			Period:   t + 1,
			PowerMW:  shed,
			DemandMW: d.Demand[t],
			Cost:     d.SheddingCost * shed,
		})
	}
	return rows, nil
}

// WriteJSON writes the schedule lines to w as a JSON array.
func WriteJSON(w io.Writer, d *model.ProblemData, s *model.Schedule) error {
	rows, err := Rows(d, s)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	return enc.Encode(rows)
}

// WriteCSV writes the schedule lines to w in CSV format with a header row.
func WriteCSV(w io.Writer, d *model.ProblemData, s *model.Schedule) error {
	rows, err := Rows(d, s)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"unit", "period", "committed", "startup", "power_mw", "demand_mw", "cost"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Unit,
			strconv.Itoa(r.Period),
			strconv.Itoa(r.Committed),
			strconv.Itoa(r.Startup),
			strconv.FormatFloat(r.PowerMW, 'f', -1, 64),
			strconv.FormatFloat(r.DemandMW, 'f', -1, 64),
			strconv.FormatFloat(r.Cost, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile exports to path, choosing CSV, JSON or an HTML chart from its
// extension.
func WriteFile(path string, d *model.ProblemData, s *model.Schedule) error {
	var write func(io.Writer, *model.ProblemData, *model.Schedule) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = WriteCSV
	case ".json":
		write = WriteJSON
	case ".html":
		write = WriteHTML
	default:
		return fmt.Errorf("export: unsupported file extension %q", filepath.Ext(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, d, s); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
