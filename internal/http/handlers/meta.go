package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	loandomain "github.com/loanrecovery/backend/internal/domain/loan"
	paymentdomain "github.com/loanrecovery/backend/internal/domain/payment"
)

// Meta tells clients which build they talk to and which vocabulary it speaks.
type Meta struct {
	Name           string                 `json:"name"`
	Version        string                 `json:"version"`
	Env            string                 `json:"env"`
	GatewayMode    string                 `json:"gateway_mode"`
	Currency       string                 `json:"currency"`
	MinorUnits     int                    `json:"minor_units"`
	PaymentMethods []paymentdomain.Method `json:"payment_methods"`
	LoanStatuses   []loandomain.Status    `json:"loan_statuses"`
}

type MetaHandler struct {
	meta Meta
}

func NewMetaHandler(env, version, gatewayMode string) *MetaHandler {
	return &MetaHandler{meta: Meta{
		Name:           "Loan Recovery Backend",
		Version:        version,
		Env:            env,
		GatewayMode:    gatewayMode,
		Currency:       "INR",
		MinorUnits:     2,
		PaymentMethods: []paymentdomain.Method{paymentdomain.MethodCash, paymentdomain.MethodUPI},
		LoanStatuses:   loandomain.AllStatuses,
	}}
}

func (h *MetaHandler) GetMeta(c *gin.Context) {
	c.JSON(http.StatusOK, h.meta)
}
