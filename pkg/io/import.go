package io

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matzehuels/flowtrim/pkg/network"
)

// Format names a table encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// FormatFor returns the format implied by the extension of path.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
}

// Read decodes a table from r in the given format.
func Read(r io.Reader, f Format) (*network.Table, error) {
	switch f {
	case FormatCSV:
		return ReadCSV(r)
	case FormatJSON:
		return ReadJSON(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// ReadJSON decodes a JSON table from r.
//
// ReadJSON returns an error if the JSON is malformed or if the rows fail
// [network.New] validation (duplicate or non-positive COMIDs, negative
// lengths or areas, self loops). ReadJSON does not close r.
func ReadJSON(r io.Reader) (*network.Table, error) {
	var data document
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return network.New(data.Segments)
}

// ReadCSV decodes a CSV table with a header line from r.
//
// Rows are validated with [network.New]. Parse errors name the line and
// column that failed. ReadCSV does not close r.
func ReadCSV(r io.Reader) (*network.Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty input", ErrMissingColumn)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	var rows []network.Segment
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		s, err := parseRecord(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, s)
	}
	return network.New(rows)
}

func parseRecord(rec []string, cols map[string]int) (network.Segment, error) {
	p := fieldParser{rec: rec, cols: cols}
	s := network.Segment{
		COMID:           p.id(colCOMID),
		ToCOMID:         p.id(colToCOMID),
		LengthKM:        p.float(colLength),
		TotDASqKM:       p.float(colArea),
		JoinedToCOMID:   p.id(colJoinedTo),
		JoinedFromCOMID: p.id(colJoinedFrom),
		NumUpstream:     int(p.id(colNumUpstream)),
		DSNumUpstream:   int(p.id(colDSNumUpstream)),
		DSLengthKM:      p.float(colDSLength),
		Category:        network.Category(p.str(colCategory)),
	}
	return s, p.err
}

// fieldParser reads named columns from one record and keeps the first
// error.
type fieldParser struct {
	rec  []string
	cols map[string]int
	err  error
}

func (p *fieldParser) str(name string) string {
	i, ok := p.cols[name]
	if !ok || i >= len(p.rec) {
		return ""
	}
	return strings.TrimSpace(p.rec[i])
}

func (p *fieldParser) id(name string) int64 {
	v := p.str(name)
	if isNull(v) || p.err != nil {
		return network.None
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		// Some exports write integer ids as floats ("101.0").
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil || f != float64(int64(f)) {
			p.err = fmt.Errorf("%s: invalid id %q", name, v)
			return 0
		}
		n = int64(f)
	}
	return n
}

func (p *fieldParser) float(name string) float64 {
	v := p.str(name)
	if isNull(v) || p.err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.err = fmt.Errorf("%s: invalid number %q", name, v)
		return 0
	}
	return f
}

func isNull(v string) bool {
	return v == "" || v == "NA" || v == "NaN" || v == "null"
}

// Import reads the table at path, choosing the codec from its extension.
//
// The error wraps the underlying cause with the file path for context; a
// missing file satisfies errors.Is(err, fs.ErrNotExist).
func Import(path string) (*network.Table, error) {
	f, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	t, err := Read(file, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
