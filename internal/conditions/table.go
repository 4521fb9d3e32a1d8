// Package conditions reads tabular sample files and writes the sample to
// condition annotations the differential analysis consumes.
package conditions

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported table format")
	ErrUnknownColumn     = errors.New("unknown column")
	ErrUnknownSample     = errors.New("unknown sample")
	ErrInvalidRange      = errors.New("invalid column range")
)

// DelimiterFor returns the field separator implied by a file's extension.
func DelimiterFor(filename string) (rune, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tsv", ".txt":
		return '\t', nil
	case ".csv":
		return ',', nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
}

func openTable(fs afero.Fs, path string) (*csv.Reader, io.Closer, error) {
	comma, err := DelimiterFor(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open table: %w", err)
	}
	r := csv.NewReader(f)
	r.Comma = comma
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	return r, f, nil
}

// ReadHeader returns the column names of a tabular file.
func ReadHeader(fs afero.Fs, path string) ([]string, error) {
	r, closer, err := openTable(fs, path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.TrimSpace(name)
	}
	if len(columns) > 0 {
		columns[0] = strings.TrimPrefix(columns[0], "\ufeff")
	}
	return columns, nil
}

// ColumnSummary describes the values of one column.
type ColumnSummary struct {
	Column string
	Total  int
	Unique bool
}

// SummarizeColumn counts the rows of column and reports whether its values
// are unique, which an index column must be.
func SummarizeColumn(fs afero.Fs, path, column string) (ColumnSummary, error) {
	header, err := ReadHeader(fs, path)
	if err != nil {
		return ColumnSummary{}, err
	}
	pos := -1
	for i, name := range header {
		if name == column {
			pos = i
			break
		}
	}
	if pos < 0 {
		return ColumnSummary{}, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}

	r, closer, err := openTable(fs, path)
	if err != nil {
		return ColumnSummary{}, err
	}
	defer closer.Close()
	if _, err := r.Read(); err != nil {
		return ColumnSummary{}, fmt.Errorf("read header of %s: %w", path, err)
	}

	summary := ColumnSummary{Column: column, Unique: true}
	seen := make(map[string]struct{})
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ColumnSummary{}, fmt.Errorf("read %s: %w", path, err)
		}
		value := ""
		if pos < len(row) {
			value = row[pos]
		}
		summary.Total++
		if _, dup := seen[value]; dup {
			summary.Unique = false
		}
		seen[value] = struct{}{}
	}
	return summary, nil
}

// SelectRange picks columns by a zero-based index or an inclusive range such
// as "3-7".
func SelectRange(columns []string, expr string) ([]string, error) {
	expr = strings.TrimSpace(strings.ReplaceAll(expr, `"`, ""))
	lo, hi, isRange := strings.Cut(expr, "-")
	start, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRange, expr)
	}
	end := start
	if isRange {
		if end, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRange, expr)
		}
	}
	if start < 0 || end >= len(columns) || start > end {
		return nil, fmt.Errorf("%w: %q for %d columns", ErrInvalidRange, expr, len(columns))
	}
	return append([]string(nil), columns[start:end+1]...), nil
}
