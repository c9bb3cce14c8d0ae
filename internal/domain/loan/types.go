package loan

import (
	"context"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusInRecovery Status = "in_recovery"
	StatusRecovered  Status = "recovered"
	StatusDefaulted  Status = "defaulted"
)

var AllStatuses = []Status{StatusPending, StatusAssigned, StatusInRecovery, StatusRecovered, StatusDefaulted}

func ParseStatus(v string) (Status, error) {
	for _, s := range AllStatuses {
		if string(s) == v {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown loan status %q", v)
}

// Terminal reports whether no operation in this service can move the loan
// further.
func (s Status) Terminal() bool {
	switch s {
	case StatusRecovered, StatusDefaulted:
		return true
	case StatusPending, StatusAssigned, StatusInRecovery:
		return false
	default:
		panic(fmt.Sprintf("loan: unhandled status %q", string(s)))
	}
}

// Event drives a Status transition.
type Event interface {
	event()
}

type EventAssign struct{}

// EventPayment carries whether the payment brought outstanding to zero.
type EventPayment struct {
	Cleared bool
}

// EventDefault is declared for the manual default override; no operation in
// this service emits it yet.
type EventDefault struct{}

func (EventAssign) event()  {}
func (EventPayment) event() {}
func (EventDefault) event() {}

// ErrTransition is returned for an event that is not allowed from a status.
type ErrTransition struct {
	From  Status
	Event string
}

func (e *ErrTransition) Error() string {
	return fmt.Sprintf("loan: %s not allowed from %s", e.Event, e.From)
}

// Next returns the status reached from s on ev.
func (s Status) Next(ev Event) (Status, error) {
	switch e := ev.(type) {
	case EventAssign:
		switch s {
		case StatusPending, StatusAssigned, StatusInRecovery:
			return StatusAssigned, nil
		case StatusRecovered, StatusDefaulted:
			return "", &ErrTransition{From: s, Event: "assign"}
		}
	case EventPayment:
		switch s {
		case StatusAssigned, StatusInRecovery:
			if e.Cleared {
				return StatusRecovered, nil
			}
			return StatusInRecovery, nil
		case StatusPending, StatusRecovered, StatusDefaulted:
			return "", &ErrTransition{From: s, Event: "payment"}
		}
	case EventDefault:
		switch s {
		case StatusPending, StatusAssigned, StatusInRecovery:
			return StatusDefaulted, nil
		case StatusRecovered, StatusDefaulted:
			return "", &ErrTransition{From: s, Event: "default"}
		}
	}
	panic(fmt.Sprintf("loan: unhandled transition %T from %q", ev, string(s)))
}

type Entity struct {
	ID               string    `json:"id"`
	BorrowerName     string    `json:"borrower_name"`
	BorrowerEmail    string    `json:"borrower_email"`
	BorrowerPhone    string    `json:"borrower_phone"`
	BorrowerAddress  string    `json:"borrower_address"`
	PrincipalMinor   int64     `json:"principal_minor"`
	OutstandingMinor int64     `json:"outstanding_minor"`
	IssuedDate       time.Time `json:"issued_date"`
	DueDate          time.Time `json:"due_date"`
	Status           Status    `json:"status"`
	AssignedAgentID  *string   `json:"assigned_agent_id,omitempty"`
	AssignedAgent    *AgentRef `json:"assigned_agent,omitempty"`
	CreatedBy        string    `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// AgentRef is the agent summary joined onto loans for bank views.
type AgentRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AgentCode string `json:"agent_code"`
}

// AssignedTo reports whether the loan is currently assigned to agentID.
func (e *Entity) AssignedTo(agentID string) bool {
	return e.AssignedAgentID != nil && *e.AssignedAgentID == agentID
}

type CreateInput struct {
	BorrowerName    string
	BorrowerEmail   string
	BorrowerPhone   string
	BorrowerAddress string
	PrincipalMinor  int64
	IssuedDate      time.Time
	DueDate         time.Time
	CreatedBy       string
}

type ListFilter struct {
	AssignedAgentID string
}

type Repository interface {
	Create(ctx context.Context, in CreateInput) (*Entity, error)
	GetByID(ctx context.Context, id string) (*Entity, error)
	List(ctx context.Context, f ListFilter) ([]Entity, error)
	Assign(ctx context.Context, loanID, agentID string, status Status) (*Entity, error)
}
