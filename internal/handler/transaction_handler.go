package handler

import (
	"context"
	"net/http"

	"bookpay-be/internal/payment"

	"github.com/gorilla/mux"
)

// TransactionReader is the read-only store view the diagnostics endpoints use.
type TransactionReader interface {
	ListTransactions(ctx context.Context) ([]*payment.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*payment.Transaction, error)
}

type TransactionHandler struct {
	svc TransactionReader
}

func NewTransactionHandler(svc TransactionReader) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListTransactions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	count := len(list)
	writeJSON(w, http.StatusOK, Response{Success: true, Count: &count, Data: list})
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.svc.GetTransaction(r.Context(), mux.Vars(r)["transactionId"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, tx)
}
