package handlers

import (
	"html/template"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/m-kus/testex/internal/services"
	"github.com/m-kus/testex/internal/validators"
	"github.com/shopspring/decimal"
)

var documentationTemplate = template.Must(template.New("documentation").Parse(`<!DOCTYPE html>
<html>
<head><title>TestEx</title></head>
<body>
<h1>TestEx</h1>
<pre>{{.Readme}}</pre>
</body>
</html>`))

var depositTemplate = template.Must(template.New("deposit").Parse(`<!DOCTYPE html>
<html>
<head><title>TestEx faucet</title></head>
<body>
<h1>Deposit test funds</h1>
{{if .Message}}<p>{{.Message}}</p>{{end}}
<form method="POST" action="/deposit">
  <label>API Key <input name="api_key" value="qwerty"></label>
  <label>Amount <input name="amount" value="1"></label>
  <label>Currency <input name="currency" value="BTC"></label>
  <button type="submit">Deposit</button>
</form>
</body>
</html>`))

// DepositRequest is the faucet form payload.
type DepositRequest struct {
	APIKey   string `json:"api_key" validate:"required"`
	Amount   string `json:"amount" validate:"required"`
	Currency string `json:"currency" validate:"required,uppercase"`
}

// PagesHandler serves the auxiliary surface: rendered documentation and
// the deposit faucet.
type PagesHandler struct {
	executor  *services.Executor
	validator *validators.Validator
	logger    *log.Logger
}

// NewPagesHandler creates the auxiliary pages handler.
func NewPagesHandler(executor *services.Executor, validator *validators.Validator) *PagesHandler {
	return &PagesHandler{
		executor:  executor,
		validator: validator,
		logger:    log.WithPrefix("pages"),
	}
}

// Documentation renders the README at the root path.
func (h *PagesHandler) Documentation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readme, err := os.ReadFile("README.md")
		if err != nil {
			readme = []byte("TestEx: a mock exchange backend for integration-testing trading bots.")
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		documentationTemplate.Execute(w, map[string]string{"Readme": string(readme)})
	}
}

// DepositForm serves the faucet form.
func (h *PagesHandler) DepositForm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		depositTemplate.Execute(w, map[string]string{})
	}
}

// Deposit credits test funds to an api key and re-renders the form with a
// confirmation.
func (h *PagesHandler) Deposit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed form"})
			return
		}

		request := DepositRequest{
			APIKey:   r.PostFormValue("api_key"),
			Amount:   r.PostFormValue("amount"),
			Currency: r.PostFormValue("currency"),
		}
		if err := h.validator.Validate(&request); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":   "validation failed",
				"details": h.validator.FormatErrors(err),
			})
			return
		}
		amount, err := decimal.NewFromString(request.Amount)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
			return
		}

		if err := h.executor.Deposit(r.Context(), request.APIKey, request.Currency, amount); err != nil {
			h.logger.Error("deposit failed", "err", err)
			internalError(w)
			return
		}

		message := amount.String() + " " + request.Currency + " deposited on " + request.APIKey
		h.logger.Info("faucet deposit", "api_key", request.APIKey,
			"currency", request.Currency, "amount", amount)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		depositTemplate.Execute(w, map[string]string{"Message": message})
	}
}

// HealthCheck reports liveness.
func HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
