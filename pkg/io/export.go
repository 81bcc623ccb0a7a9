package io

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/matzehuels/flowtrim/pkg/network"
	"github.com/matzehuels/flowtrim/pkg/network/collapse"
)

var (
	// ErrUnknownFormat is returned for a file extension or format name that
	// has no codec.
	ErrUnknownFormat = errors.New("unknown table format")

	// ErrMissingColumn is returned by [ReadCSV] when a required column is
	// absent from the header.
	ErrMissingColumn = errors.New("missing required column")
)

const (
	colCOMID         = "COMID"
	colToCOMID       = "toCOMID"
	colLength        = "LENGTHKM"
	colArea          = "TotDASqKM"
	colJoinedTo      = "joined_toCOMID"
	colJoinedFrom    = "joined_fromCOMID"
	colNumUpstream   = "num_upstream"
	colDSNumUpstream = "ds_num_upstream"
	colDSLength      = "dsLENGTHKM"
	colCategory      = "category"
)

var requiredColumns = []string{colCOMID, colToCOMID, colLength, colArea}

var csvHeader = []string{
	colCOMID, colToCOMID, colLength, colArea,
	colJoinedTo, colJoinedFrom,
	colNumUpstream, colDSNumUpstream, colDSLength,
	colCategory,
}

type document struct {
	Segments []network.Segment `json:"segments"`
}

// Write encodes t to w in the given format.
func Write(t *network.Table, w io.Writer, f Format) error {
	switch f {
	case FormatCSV:
		return WriteCSV(t, w)
	case FormatJSON:
		return WriteJSON(t, w)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// WriteJSON encodes t as indented JSON. The output can be re-imported with
// [ReadJSON].
func WriteJSON(t *network.Table, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(document{Segments: t.Rows()}); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteCSV encodes t as CSV with every column, in table order. Unset
// pointers are written as empty fields.
func WriteCSV(t *network.Table, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	for _, s := range t.Segments() {
		rec := []string{
			strconv.FormatInt(s.COMID, 10),
			formatID(s.ToCOMID),
			formatFloat(s.LengthKM),
			formatFloat(s.TotDASqKM),
			formatID(s.JoinedToCOMID),
			formatID(s.JoinedFromCOMID),
			strconv.Itoa(s.NumUpstream),
			strconv.Itoa(s.DSNumUpstream),
			formatFloat(s.DSLengthKM),
			string(s.Category),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteMembersCSV writes one survivor,member line per merged segment, the
// survivor itself included.
func WriteMembersCSV(groups []collapse.Group, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"survivor", "member"}); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	for _, g := range groups {
		sv := strconv.FormatInt(g.Survivor, 10)
		for _, id := range g.Members {
			if err := cw.Write([]string{sv, strconv.FormatInt(id, 10)}); err != nil {
				return fmt.Errorf("encode: %w", err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func formatID(id int64) string {
	if id == network.None {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Export writes t to path, choosing the codec from its extension.
func Export(t *network.Table, path string) error {
	f, err := FormatFor(path)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(t, file, f); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ExportMembers writes the members mapping to a CSV file at path.
func ExportMembers(groups []collapse.Group, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteMembersCSV(groups, file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
