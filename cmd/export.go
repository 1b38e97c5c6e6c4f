package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/expo-cli/internal/pipeline"
)

var (
	exportDir string
	exportOut string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Bundle run artifacts into a single Excel workbook",
	Long:  "Collects whichever stage CSVs exist in the output directory into one workbook, one sheet per stage, for handoff to people who live in spreadsheets.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := exportDir
		if dir == "" {
			dir = cfg.Output.Dir
		}
		out := exportOut
		if out == "" {
			out = filepath.Join(dir, "expo_report.xlsx")
		}

		n, err := exportWorkbook(dir, out)
		if err != nil {
			return err
		}
		if n == 0 {
			return eris.Errorf("no artifacts found in %s, run the pipeline first", dir)
		}

		zap.L().Info("export: workbook written", zap.String("path", out), zap.Int("sheets", n))
		fmt.Printf("Wrote %s (%d sheet(s)).\n", out, n)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "output directory holding run artifacts (default from config)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "workbook path (default <dir>/expo_report.xlsx)")
	rootCmd.AddCommand(exportCmd)
}

// exportSheets maps run artifacts to workbook sheet names, in pipeline
// order.
var exportSheets = []struct {
	file  string
	sheet string
}{
	{pipeline.ScrapedCSV, "Scraped"},
	{pipeline.FilteredCSV, "Classified"},
	{pipeline.EnrichedCSV, "Enriched"},
}

// exportWorkbook bundles whichever stage CSVs exist under dir into one
// workbook at outPath and reports how many sheets it wrote. Missing
// artifacts are skipped; with zero sheets nothing is written.
func exportWorkbook(dir, outPath string) (int, error) {
	wb := xlsx.NewFile()
	added := 0

	for _, spec := range exportSheets {
		records, err := readCSVRecords(filepath.Join(dir, spec.file))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return 0, eris.Wrapf(err, "export: read %s", spec.file)
		}
		if len(records) == 0 {
			continue
		}
		if err := addSheet(wb, spec.sheet, records); err != nil {
			return 0, eris.Wrapf(err, "export: sheet %s", spec.sheet)
		}
		added++
	}

	if added == 0 {
		return 0, nil
	}
	if err := wb.Save(outPath); err != nil {
		return 0, eris.Wrapf(err, "export: save %s", outPath)
	}
	return added, nil
}

// readCSVRecords loads every row of the CSV at path.
func readCSVRecords(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

// addSheet writes records to a new sheet: bold header row, numeric cells
// typed as numbers so spreadsheet sorting and filtering behave.
func addSheet(wb *xlsx.File, name string, records [][]string) error {
	sheet, err := wb.AddSheet(name)
	if err != nil {
		return err
	}

	headerStyle := xlsx.NewStyle()
	headerStyle.Font.Bold = true
	headerStyle.ApplyFont = true

	header := sheet.AddRow()
	for _, col := range records[0] {
		cell := header.AddCell()
		cell.SetString(col)
		cell.SetStyle(headerStyle)
	}

	for _, rec := range records[1:] {
		row := sheet.AddRow()
		for _, val := range rec {
			cell := row.AddCell()
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				cell.SetFloat(f)
			} else {
				cell.SetString(val)
			}
		}
	}
	return nil
}
