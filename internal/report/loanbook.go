// Package report renders the loan book as a spreadsheet.
package report

import (
	"fmt"
	"io"

	loandomain "github.com/loanrecovery/backend/internal/domain/loan"
	"github.com/loanrecovery/backend/internal/money"
	"github.com/xuri/excelize/v2"
)

const (
	LoanBookSheet       = "Loan Book"
	LoanBookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var loanBookHeaders = []string{
	"Loan ID",
	"Borrower",
	"Email",
	"Phone",
	"Principal",
	"Outstanding",
	"Collected",
	"Status",
	"Agent",
	"Agent Code",
	"Issued",
	"Due",
}

// WriteLoanBook writes one row per loan under a header row.
func WriteLoanBook(w io.Writer, loans []loandomain.Entity) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(LoanBookSheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	for i, header := range loanBookHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(LoanBookSheet, cell, header); err != nil {
			return err
		}
	}

	for i, l := range loans {
		row := i + 2
		agentName, agentCode := "", ""
		if l.AssignedAgent != nil {
			agentName = l.AssignedAgent.Name
			agentCode = l.AssignedAgent.AgentCode
		}
		values := []any{
			l.ID,
			l.BorrowerName,
			l.BorrowerEmail,
			l.BorrowerPhone,
			money.Format(l.PrincipalMinor),
			money.Format(l.OutstandingMinor),
			money.Format(l.PrincipalMinor - l.OutstandingMinor),
			string(l.Status),
			agentName,
			agentCode,
			l.IssuedDate.Format("2006-01-02"),
			l.DueDate.Format("2006-01-02"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(LoanBookSheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	return f.Write(w)
}
