package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/beanatlas/coffee-cli/internal/model"
)

const sheetName = "Products"

// WriteXLSX writes the product set as a single-sheet workbook using the
// same flat schema as the CSV writer.
func WriteXLSX(w io.Writer, products []*model.Product) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	headerRow := sheet.AddRow()
	for _, col := range header {
		headerRow.AddCell().Value = col
	}
	for _, p := range products {
		r := sheet.AddRow()
		for _, cell := range row(p) {
			r.AddCell().Value = cell
		}
	}

	if err := file.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}
