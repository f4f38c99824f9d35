package storage

import (
	"math"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"devleads/models"
)

const xlsxSheetName = "DevelopmentLeads"

// WriteXLSX saves records as a single-sheet workbook. Numbers are stored as
// numeric cells so the sheet sorts correctly.
func WriteXLSX(path string, records []*models.Property) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return eris.Wrap(err, "xlsx: create output dir")
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(xlsxSheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	cols := models.Columns(records)
	header := sheet.AddRow()
	for _, c := range cols {
		header.AddCell().SetString(c)
	}

	for _, r := range records {
		row := r.Row()
		xr := sheet.AddRow()
		for _, c := range cols {
			cell := xr.AddCell()
			switch v := row[c].(type) {
			case nil:
			case float64:
				if !math.IsNaN(v) && !math.IsInf(v, 0) {
					cell.SetFloat(v)
				}
			case int:
				cell.SetInt(v)
			case bool:
				cell.SetBool(v)
			default:
				cell.SetString(truncateCell(cellString(v)))
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "xlsx: save")
	}
	return nil
}
