// Package scenario loads unit commitment instances: the whitespace
// generator and demand tables, YAML documents, and the built-in reference
// instance.
package scenario

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/unitcommit/core/model"
)

// tableColumns is the column order of a generator table row.
var tableColumns = []string{
	"name", "min_p", "max_p", "startup_cost", "online_cost",
	"ramp_limit", "min_up_time", "min_down_time", "production_cost",
}

// Default returns the two-generator, three-period reference instance.
func Default() *model.ProblemData {
	return &model.ProblemData{
		Generators: []model.Generator{
			{Name: "A", MinP: 0, MaxP: 20, StartupCost: 50, OnlineCost: 5, ProductionCost: 10, MinUpTime: 1, MinDownTime: 1, RampLimit: 20},
			{Name: "B", MinP: 5, MaxP: 15, StartupCost: 30, OnlineCost: 3, ProductionCost: 8, MinUpTime: 2, MinDownTime: 1, RampLimit: 10},
		},
		Demand:       []float64{15, 20, 10},
		SheddingCost: 1000,
	}
}

// LoadTables reads count generators from tablePath and horizon demand
// values from demandPath. A count or horizon of zero reads every row or
// value present.
func LoadTables(count int, demandPath, tablePath string, horizon int, shed float64) (*model.ProblemData, error) {
	gens, err := readFile(tablePath, func(r io.Reader) ([]model.Generator, error) {
		return ReadGenerators(r, tablePath, count)
	})
	if err != nil {
		return nil, err
	}
	demand, err := readFile(demandPath, func(r io.Reader) ([]float64, error) {
		return ReadDemand(r, demandPath, horizon)
	})
	if err != nil {
		return nil, err
	}
	d := &model.ProblemData{Generators: gens, Demand: demand, SheddingCost: shed}
	return d.Normalized()
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, &model.DataError{Source: path, Msg: "cannot open", Err: err}
	}
	defer func() { _ = f.Close() }()
	return read(f)
}

type token struct {
	text string
	line int
}

// tokens skips the first skip lines and returns the remaining
// whitespace-separated fields with their line numbers.
func tokens(r io.Reader, source string, skip int) ([]token, error) {
	sc := bufio.NewScanner(r)
	var out []token
	line := 0
	for sc.Scan() {
		line++
		if line <= skip {
			continue
		}
		for _, f := range strings.Fields(sc.Text()) {
			out = append(out, token{text: f, line: line})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &model.DataError{Source: source, Line: line, Msg: "read failed", Err: err}
	}
	if line < skip {
		return nil, &model.DataError{Source: source, Line: line, Msg: fmt.Sprintf("expected %d header lines", skip)}
	}
	return out, nil
}

// ReadGenerators parses a generator table: a title line, a column-name
// line, then one row per generator.
func ReadGenerators(r io.Reader, source string, count int) ([]model.Generator, error) {
	toks, err := tokens(r, source, 2)
	if err != nil {
		return nil, err
	}
	width := len(tableColumns)
	avail := len(toks) / width
	if count <= 0 {
		if len(toks)%width != 0 {
			last := toks[len(toks)-1].line
			return nil, &model.DataError{Source: source, Line: last, Msg: fmt.Sprintf("incomplete generator row, expected %d columns", width)}
		}
		count = avail
	}
	if avail < count {
		return nil, &model.DataError{Source: source, Msg: fmt.Sprintf("table holds %d generators, %d requested", avail, count)}
	}
	gens := make([]model.Generator, count)
	for g := range gens {
		row := toks[g*width : (g+1)*width]
		p := rowParser{source: source, row: row}
		gens[g] = model.Generator{
			Name:           row[0].text,
			MinP:           p.float(1),
			MaxP:           p.float(2),
			StartupCost:    p.float(3),
			OnlineCost:     p.float(4),
			RampLimit:      p.float(5),
			MinUpTime:      p.int(6),
			MinDownTime:    p.int(7),
			ProductionCost: p.float(8),
		}
		if p.err != nil {
			return nil, p.err
		}
	}
	return gens, nil
}

type rowParser struct {
	source string
	row    []token
	err    error
}

func (p *rowParser) fail(i int, err error) {
	if p.err == nil {
		p.err = &model.DataError{Source: p.source, Line: p.row[i].line, Field: tableColumns[i], Msg: fmt.Sprintf("invalid value %q", p.row[i].text), Err: err}
	}
}

func (p *rowParser) float(i int) float64 {
	v, err := strconv.ParseFloat(p.row[i].text, 64)
	if err != nil {
		p.fail(i, err)
	}
	return v
}

func (p *rowParser) int(i int) int {
	v, err := strconv.Atoi(p.row[i].text)
	if err != nil {
		p.fail(i, err)
	}
	return v
}

// ReadDemand parses a demand file: one header line, then one value per
// period, separated by any whitespace.
func ReadDemand(r io.Reader, source string, horizon int) ([]float64, error) {
	toks, err := tokens(r, source, 1)
	if err != nil {
		return nil, err
	}
	if horizon <= 0 {
		horizon = len(toks)
	}
	if len(toks) < horizon {
		return nil, &model.DataError{Source: source, Msg: fmt.Sprintf("file holds %d periods, %d requested", len(toks), horizon)}
	}
	demand := make([]float64, horizon)
	for t := range demand {
		v, err := strconv.ParseFloat(toks[t].text, 64)
		if err != nil {
			return nil, &model.DataError{Source: source, Line: toks[t].line, Field: fmt.Sprintf("demand[%d]", t+1), Msg: fmt.Sprintf("invalid value %q", toks[t].text), Err: err}
		}
		demand[t] = v
	}
	return demand, nil
}

// LoadYAML reads a scenario document with generators, demand and
// shedding_cost keys. Unknown keys are rejected.
func LoadYAML(path string) (*model.ProblemData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.DataError{Source: path, Msg: "cannot open", Err: err}
	}
	return ParseYAML(raw, path)
}

// ParseYAML decodes and validates a scenario document.
func ParseYAML(raw []byte, source string) (*model.ProblemData, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var d model.ProblemData
	if err := dec.Decode(&d); err != nil {
		return nil, &model.DataError{Source: source, Msg: "invalid scenario document", Err: err}
	}
	out, err := d.Normalized()
	if err != nil {
		var de *model.DataError
		if errors.As(err, &de) && de.Source == "" {
			de.Source = source
		}
		return nil, err
	}
	return out, nil
}

// MarshalYAML renders d as a scenario document.
func MarshalYAML(d *model.ProblemData) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
