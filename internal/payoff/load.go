package payoff

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/alliance/internal/models"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// DefaultWorkbook is the file name of the research payoff workbook.
const DefaultWorkbook = "11_29.xlsx"

// Workbook layout of the research spreadsheet. Row and column offsets are 0-based.
// AM sits on Sheet1 starting at row 4, column 3; MC on Sheet2 starting at row 4,
// column 4. Both sheets put AM investment on rows and MC investment on columns.
const (
	amSheet    = "Sheet1"
	mcSheet    = "Sheet2"
	firstRow   = 4
	amFirstCol = 3
	mcFirstCol = 4
)

// tableFile is the YAML/JSON on-disk form.
type tableFile struct {
	AM [][]float64 `yaml:"am" json:"am"`
	MC [][]float64 `yaml:"mc" json:"mc"`
}

// CandidatePaths returns the locations searched when no explicit path is given,
// in priority order. Empty entries are skipped.
func CandidatePaths(explicit string) []string {
	var paths []string
	for _, p := range []string{
		explicit,
		os.Getenv("PAYOFF_MATRIX_PATH"),
		DefaultWorkbook,
		filepath.Join("..", DefaultWorkbook),
		filepath.Join("data", DefaultWorkbook),
	} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// Locate returns the first candidate path that exists, or "" if none do.
func Locate(explicit string) string {
	for _, p := range CandidatePaths(explicit) {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadFile reads a table from path. The format is chosen by extension:
// .xlsx is the research workbook, .yaml/.yml/.json hold `am` and `mc` grids.
func LoadFile(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return LoadWorkbook(path)
	case ".yaml", ".yml", ".json":
		return LoadYAML(path)
	}
	return nil, models.NewIntegrityError(fmt.Sprintf("unsupported payoff table format: %s", path))
}

// LoadYAML reads a YAML (or JSON) table file.
func LoadYAML(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading payoff table: %w", err)
	}
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &models.Error{Kind: models.KindIntegrity, Reason: "parsing payoff table", Err: err}
	}
	return New(f.AM, f.MC)
}

// LoadWorkbook reads the research spreadsheet.
func LoadWorkbook(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening payoff workbook: %w", err)
	}
	defer f.Close()

	am, err := readGrid(f, amSheet, amFirstCol)
	if err != nil {
		return nil, err
	}
	mc, err := readGrid(f, mcSheet, mcFirstCol)
	if err != nil {
		return nil, err
	}
	return New(am, mc)
}

func readGrid(f *excelize.File, sheet string, firstCol int) ([][]float64, error) {
	// Raw values, so number formats such as thousands separators do not reach ParseFloat.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &models.Error{Kind: models.KindIntegrity, Reason: "reading sheet " + sheet, Err: err}
	}
	if len(rows) < firstRow+Size {
		return nil, models.NewIntegrityError(fmt.Sprintf("sheet %s has %d rows, need %d", sheet, len(rows), firstRow+Size))
	}

	grid := make([][]float64, Size)
	for i := 0; i < Size; i++ {
		row := rows[firstRow+i]
		grid[i] = make([]float64, Size)
		for j := 0; j < Size; j++ {
			col := firstCol + j
			if col >= len(row) || strings.TrimSpace(row[col]) == "" {
				return nil, models.NewIntegrityError(fmt.Sprintf("sheet %s cell (%d,%d) is empty", sheet, firstRow+i, col))
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
			if err != nil {
				return nil, &models.Error{Kind: models.KindIntegrity, Reason: fmt.Sprintf("sheet %s cell (%d,%d)", sheet, firstRow+i, col), Err: err}
			}
			grid[i][j] = v
		}
	}
	return grid, nil
}

// Default builds the built-in demonstration table used when no workbook is
// configured. Each party pays a per-engineer cost and shares a benefit that grows
// with joint investment and saturates; MC values the partnership slightly less,
// so the two grids are not transposes of each other.
func Default() *Table {
	am := make([][]float64, Size)
	mc := make([][]float64, Size)
	for a := 0; a < Size; a++ {
		am[a] = make([]float64, Size)
		mc[a] = make([]float64, Size)
		for m := 0; m < Size; m++ {
			joint := float64(a + m)
			synergy := 120 * (1 - math.Exp(-joint/18)) * (1 + float64(min(a, m))/25)
			am[a][m] = Round2(synergy*0.55 - 2.0*float64(a))
			mc[a][m] = Round2(synergy*0.50 - 1.6*float64(m))
		}
	}
	t, err := New(am, mc)
	if err != nil {
		panic(err) // generated grids are always 26x26 and finite
	}
	return t
}

// Open loads the table from the first existing candidate path, falling back to
// Default when none exists. It returns the source used ("builtin" for Default).
func Open(explicit string) (*Table, string, error) {
	path := explicit
	if path == "" {
		path = Locate("")
	}
	if path == "" {
		return Default(), "builtin", nil
	}
	t, err := LoadFile(path)
	if err != nil {
		return nil, path, err
	}
	return t, path, nil
}
