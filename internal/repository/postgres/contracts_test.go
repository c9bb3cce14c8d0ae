package postgres

import (
	admindomain "github.com/loanrecovery/backend/internal/domain/admin"
	loandomain "github.com/loanrecovery/backend/internal/domain/loan"
	paymentdomain "github.com/loanrecovery/backend/internal/domain/payment"
	"github.com/loanrecovery/backend/internal/jobs"
	"github.com/loanrecovery/backend/internal/ws"
)

var (
	_ loandomain.Repository       = (*LoanRepository)(nil)
	_ loandomain.OutboxRepository = (*OutboxRepository)(nil)
	_ paymentdomain.Repository    = (*PaymentRepository)(nil)
	_ jobs.OutboxRepository       = (*OutboxRepository)(nil)
	_ admindomain.StatsRepository = (*StatsRepository)(nil)
	_ admindomain.AuditRepository = (*AdminAuditRepository)(nil)
	_ ws.PaymentEventRepository   = (*WSRepository)(nil)
)
