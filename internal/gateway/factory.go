package gateway

import (
	"fmt"
	"strings"

	"github.com/loanrecovery/backend/internal/config"
)

func NewChargerFromConfig(cfg config.Config) (Charger, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.GatewayMode))
	switch mode {
	case "", "simulated":
		return NewSimulator(cfg.GatewayLatency, cfg.GatewaySuccessRate), nil
	case "always_succeed":
		return NewSimulator(cfg.GatewayLatency, 1), nil
	case "always_fail":
		return NewSimulator(cfg.GatewayLatency, 0), nil
	default:
		return nil, fmt.Errorf("invalid GATEWAY_MODE: %s", cfg.GatewayMode)
	}
}
