package notify

import (
	"fmt"
	"strings"

	"github.com/loanrecovery/backend/internal/money"
)

type Receipt struct {
	BorrowerName     string
	BorrowerEmail    string
	AmountMinor      int64
	Method           string
	TransactionID    string
	OutstandingMinor int64
	LoanStatus       string
}

func ReceiptMessage(r Receipt) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", r.BorrowerName)
	fmt.Fprintf(&b, "We have received your payment of Rs %s by %s.\n", money.Format(r.AmountMinor), strings.ToUpper(r.Method))
	fmt.Fprintf(&b, "Transaction ID: %s\n", r.TransactionID)
	if r.OutstandingMinor == 0 {
		b.WriteString("Your loan is now fully repaid. Thank you.\n")
	} else {
		fmt.Fprintf(&b, "Remaining balance: Rs %s\n", money.Format(r.OutstandingMinor))
	}
	b.WriteString("\nRegards,\nLoan Recovery Desk")
	return Message{
		To:      []string{r.BorrowerEmail},
		Subject: "Payment received",
		Text:    b.String(),
	}
}

type Assignment struct {
	AgentName    string
	AgentEmail   string
	LoanID       string
	BorrowerName string
}

func AssignmentMessage(a Assignment) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", a.AgentName)
	fmt.Fprintf(&b, "Loan %s for borrower %s has been assigned to you for recovery.\n", a.LoanID, a.BorrowerName)
	b.WriteString("\nRegards,\nLoan Recovery Desk")
	return Message{
		To:      []string{a.AgentEmail},
		Subject: "New loan assigned",
		Text:    b.String(),
	}
}
