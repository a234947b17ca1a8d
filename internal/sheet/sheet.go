// Package sheet renders a stored document as an XLSX workbook.
package sheet

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/rcliao/tally-replica/internal/model"
)

// AllSheet holds the flat rows of every category.
const AllSheet = "All"

// Build returns a workbook with one sheet per category, in contract order,
// followed by the All sheet. The caller closes the file.
func Build(doc *model.Document) (*excelize.File, error) {
	f := excelize.NewFile()

	for _, c := range model.Categories {
		if _, err := f.NewSheet(c.Name); err != nil {
			f.Close()
			return nil, fmt.Errorf("new sheet %s: %w", c.Name, err)
		}
		cols := model.Columns(c.Kind)
		rows := doc.Rows[c.Name]
		if len(rows) == 0 {
			// Empty buckets still show their columns.
			rows = []model.Row{headerRow(cols)}
		}
		if err := writeRows(f, c.Name, cols, rows); err != nil {
			f.Close()
			return nil, err
		}
	}

	idx, err := f.NewSheet(AllSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("new sheet %s: %w", AllSheet, err)
	}
	cols := flatColumns(doc.FlatRows)
	all := append([]model.Row{headerRow(cols)}, doc.FlatRows...)
	if err := writeRows(f, AllSheet, cols, all); err != nil {
		f.Close()
		return nil, err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	return f, nil
}

// Write renders doc as XLSX to w.
func Write(w io.Writer, doc *model.Document) error {
	f, err := Build(doc)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, cols []string, rows []model.Row) error {
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		vals := make([]interface{}, len(cols))
		for j, c := range cols {
			vals[j] = r[c]
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func headerRow(cols []string) model.Row {
	r := make(model.Row, len(cols))
	for _, c := range cols {
		r[c] = c
	}
	return r
}

// flatColumns is the union of every kind's columns, followed by any other
// keys present in rows (documents stored before bucketing) in sorted order.
func flatColumns(rows []model.Row) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, k := range []model.Kind{model.KindVoucher, model.KindMaster, model.KindOutstanding} {
		for _, c := range model.Columns(k) {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	var extra []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	return append(cols, extra...)
}
