package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"fitwalk/internal/model"
)

const (
	ColumnVariants = "Variants"
	ColumnFitness  = "Fitness"
	ColumnImputed  = "Imputed fitness"
)

var ErrMissingColumn = errors.New("missing column")

// TableSpec names one tabular source of observations.
type TableSpec struct {
	Path string
	// Sheet selects a worksheet in a workbook; empty means the first sheet.
	Sheet         string
	FitnessColumn string
}

// ReadTable loads variant rows from a .xlsx workbook or a .csv file. The
// first row is the header. Blank rows are skipped.
func ReadTable(spec TableSpec, alphabet model.Alphabet, length int) ([]model.Variant, error) {
	if strings.TrimSpace(spec.Path) == "" {
		return nil, fmt.Errorf("table path is required")
	}
	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(spec.Path)); ext {
	case ".xlsx", ".xlsm":
		rows, err = readWorkbook(spec.Path, spec.Sheet)
	case ".csv":
		rows, err = readCSV(spec.Path)
	default:
		return nil, fmt.Errorf("unsupported table format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return parseRows(spec, rows, alphabet, length)
}

func readWorkbook(path, sheet string) ([][]string, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in %s", path)
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if !containsString(sheets, sheet) {
		return nil, fmt.Errorf("sheet not found in %s: %s", path, sheet)
	}
	rows, err := file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv %s row %d: %w", path, len(rows)+1, err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func parseRows(spec TableSpec, rows [][]string, alphabet model.Alphabet, length int) ([]model.Variant, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("table %s is empty", spec.Path)
	}
	fitnessColumn := spec.FitnessColumn
	if fitnessColumn == "" {
		fitnessColumn = ColumnFitness
	}
	seqIdx := columnIndex(rows[0], ColumnVariants)
	if seqIdx < 0 {
		return nil, fmt.Errorf("%w %q in %s", ErrMissingColumn, ColumnVariants, spec.Path)
	}
	fitIdx := columnIndex(rows[0], fitnessColumn)
	if fitIdx < 0 {
		return nil, fmt.Errorf("%w %q in %s", ErrMissingColumn, fitnessColumn, spec.Path)
	}

	variants := make([]model.Variant, 0, len(rows)-1)
	for i, record := range rows[1:] {
		line := i + 2
		if blankRecord(record) {
			continue
		}
		seq := model.Normalize(cell(record, seqIdx))
		if length == 0 {
			length = len(seq)
		}
		if err := alphabet.Validate(seq, length); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", spec.Path, line, err)
		}
		fitness, err := strconv.ParseFloat(strings.TrimSpace(cell(record, fitIdx)), 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: parse fitness: %w", spec.Path, line, err)
		}
		if err := model.CheckFitness(fitness); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", spec.Path, line, err)
		}
		variants = append(variants, model.Variant{Sequence: seq, Fitness: fitness})
	}
	return variants, nil
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func cell(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return record[i]
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
