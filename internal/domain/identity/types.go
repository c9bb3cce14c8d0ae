package identity

import (
	"context"
	"time"
)

type Role string

const (
	RoleBank  Role = "bank"
	RoleAgent Role = "agent"
)

func ParseRole(v string) (Role, bool) {
	switch Role(v) {
	case RoleBank:
		return RoleBank, true
	case RoleAgent:
		return RoleAgent, true
	default:
		return "", false
	}
}

type Identity struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	DisplayName string    `json:"name"`
	Email       string    `json:"email"`
	AgentCode   string    `json:"agent_code,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Directory is the read side of the user store the core depends on.
type Directory interface {
	FindByID(ctx context.Context, id string) (*Identity, error)
	FindByRole(ctx context.Context, role Role) ([]Identity, error)
}

// Viewer is a caller whose visibility over loans has already been decided at
// the API boundary. Only Bank and Agent implement it.
type Viewer interface {
	ViewerID() string
	sealedViewer()
}

// Bank is proof that the caller holds the bank role.
type Bank struct {
	ID string
}

// Agent is proof that the caller holds the agent role.
type Agent struct {
	ID string
}

func (b Bank) ViewerID() string  { return b.ID }
func (a Agent) ViewerID() string { return a.ID }

func (Bank) sealedViewer()  {}
func (Agent) sealedViewer() {}

// ViewerFor narrows an authenticated identity to its capability value.
func ViewerFor(id string, role Role) (Viewer, bool) {
	switch role {
	case RoleBank:
		return Bank{ID: id}, true
	case RoleAgent:
		return Agent{ID: id}, true
	default:
		return nil, false
	}
}
