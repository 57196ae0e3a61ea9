// Package report builds the contract register spreadsheet.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/alfredjeanlab/podium/internal/model"
)

// SheetName is the worksheet holding the register.
const SheetName = "Contracts"

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Headers are the register columns, in order.
var Headers = []string{
	"Contract Number",
	"Title",
	"Status",
	"Client",
	"Company",
	"Speaker",
	"Event",
	"Event Date",
	"Amount",
	"Currency",
	"Created",
	"Sent",
	"Executed",
}

// WriteContracts writes an XLSX workbook with one row per contract to w.
func WriteContracts(w io.Writer, contracts []*model.Contract) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for i, h := range Headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i, c := range contracts {
		row := []any{
			c.Number,
			c.Title,
			string(c.Status),
			c.ClientName,
			c.ClientCompany,
			c.SpeakerName,
			c.EventTitle,
			dateCell(c.EventDate),
			c.TotalAmount,
			c.Currency,
			c.CreatedAt.Format(time.RFC3339),
			dateCell(c.SentAt),
			dateCell(c.ExecutionAt),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "B", 28); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func dateCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
