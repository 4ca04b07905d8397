package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"bookpay-be/internal/apperr"
	"bookpay-be/internal/payment"

	"github.com/gorilla/mux"
)

// PaymentService is the slice of the payment service the HTTP layer uses.
type PaymentService interface {
	Initiate(ctx context.Context, in payment.InitiateInput) (*payment.InitiateResult, error)
	HandleCallback(ctx context.Context, encoded, receivedTag string) error
	CheckStatus(ctx context.Context, transactionID string) (map[string]interface{}, error)
}

type PaymentHandler struct {
	svc PaymentService
}

func NewPaymentHandler(svc PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

type initiateRequest struct {
	AppointmentID      string          `json:"appointmentId"`
	Amount             int64           `json:"amount"`
	UserDetails        json.RawMessage `json:"userDetails"`
	AppointmentDetails json.RawMessage `json:"appointmentDetails"`
}

func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.Validation, "Missing required fields"))
		return
	}

	out, err := h.svc.Initiate(r.Context(), payment.InitiateInput{
		AppointmentID:      req.AppointmentID,
		AmountMinorUnits:   req.Amount,
		UserDetails:        req.UserDetails,
		AppointmentDetails: req.AppointmentDetails,
		CallbackBaseURL:    requestBaseURL(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, out)
}

func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Response string `json:"response"`
	}
	// An unreadable body is treated the same as a missing payload; the
	// service rejects the empty string with an auth error.
	_ = json.NewDecoder(r.Body).Decode(&body)

	if err := h.svc.HandleCallback(r.Context(), body.Response, r.Header.Get("X-VERIFY")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true})
}

func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	transactionID := mux.Vars(r)["transactionId"]

	view, err := h.svc.CheckStatus(r.Context(), transactionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, view)
}

// HealthHandler reports liveness. Unlike the other endpoints this answers
// with a flat shape, not the success envelope.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "OK",
		"message":   "PhonePe backend server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// requestBaseURL rebuilds the externally visible base URL the gateway should
// call back on, honoring the proxy protocol header.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
