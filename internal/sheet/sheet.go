// Package sheet reads and writes the tabular files (CSV or Excel) that hold
// customer rosters and campaign definitions.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/LeventeLantos/sms-campaign/internal/model"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

const bom = "\ufeff"

type format int

const (
	formatCSV format = iota + 1
	formatExcel
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return formatCSV, nil
	case ".xlsx", ".xlsm":
		return formatExcel, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Read loads a sheet. Every cell is kept as text; blank rows are skipped.
func Read(path string) (*model.Table, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch f {
	case formatCSV:
		rows, err = readCSV(path)
	case formatExcel:
		rows, err = readExcel(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return toTable(rows), nil
}

func readCSV(path string) ([][]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readExcel(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return f.GetRows(sheets[0])
}

func toTable(rows [][]string) *model.Table {
	if len(rows) == 0 {
		return model.NewRoster(nil)
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		if i == 0 {
			h = strings.TrimPrefix(h, bom)
		}
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		header[i] = h
	}

	t := model.NewRoster(header)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		rec := make(model.Record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		t.Records = append(t.Records, rec)
	}
	return t
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Write saves t to path in the format implied by its extension, replacing
// any existing file.
func Write(path string, t *model.Table) error {
	f, err := formatOf(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	rows := fromTable(t)

	ext := filepath.Ext(path)
	tmp := filepath.Join(filepath.Dir(path), "."+strings.TrimSuffix(filepath.Base(path), ext)+".tmp"+ext)

	switch f {
	case formatCSV:
		err = writeCSV(tmp, rows)
	case formatExcel:
		err = writeExcel(tmp, rows)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

func fromTable(t *model.Table) [][]string {
	if t == nil {
		return nil
	}
	rows := make([][]string, 0, len(t.Records)+1)
	rows = append(rows, t.Columns)
	for _, rec := range t.Records {
		row := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			row[i] = rec[col]
		}
		rows = append(rows, row)
	}
	return rows
}

func writeCSV(path string, rows [][]string) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(fh)
	if err := w.WriteAll(rows); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

func writeExcel(path string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	name := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		vals := make([]interface{}, len(row))
		for j, v := range row {
			vals[j] = v
		}
		if err := f.SetSheetRow(name, cell, &vals); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func Exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// FileInfo describes a sheet on disk.
type FileInfo struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Exists   bool      `json:"exists"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Rows     int       `json:"rows"`
}

// Info reports on path. A missing file is not an error.
func Info(path string) (FileInfo, error) {
	fi := FileInfo{Name: filepath.Base(path), Path: path}

	st, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fi, nil
	}
	if err != nil {
		return fi, err
	}
	fi.Exists = true
	fi.Size = st.Size()
	fi.Modified = st.ModTime()

	t, err := Read(path)
	if err != nil {
		return fi, err
	}
	fi.Rows = t.Len()
	return fi, nil
}
