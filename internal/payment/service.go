package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"bookpay-be/internal/apperr"
	"bookpay-be/internal/checksum"
	"bookpay-be/internal/gateway"
	"bookpay-be/internal/logger"
	"bookpay-be/internal/txid"

	"go.uber.org/zap"
)

const (
	successCode          = "PAYMENT_SUCCESS"
	defaultMobileNumber  = "9999999999"
	instrumentPayPage    = "PAY_PAGE"
	callbackPath         = "/api/phonepe/callback"
	maxIDAttempts        = 5
	upstreamStateSuccess = "COMPLETED"
	upstreamStateFailed  = "FAILED"
)

// Gateway is the slice of the PhonePe client the workflows need.
type Gateway interface {
	Pay(ctx context.Context, req gateway.PayRequest) (*gateway.PayResult, error)
	QueryStatus(ctx context.Context, transactionID string) (*gateway.StatusResult, error)
}

type ServiceConfig struct {
	MerchantID  string
	FrontendURL string
}

// Service implements the transaction lifecycle: initiation, callback
// application, and on-demand reconciliation against the gateway.
type Service struct {
	store  Store
	gate   Gateway
	signer *checksum.Signer
	cfg    ServiceConfig

	// newID is swappable so collision handling is testable.
	newID func() string
}

func NewService(store Store, gate Gateway, signer *checksum.Signer, cfg ServiceConfig) *Service {
	return &Service{
		store:  store,
		gate:   gate,
		signer: signer,
		cfg:    cfg,
		newID:  txid.Next,
	}
}

type InitiateInput struct {
	AppointmentID      string
	AmountMinorUnits   int64
	UserDetails        json.RawMessage
	AppointmentDetails json.RawMessage

	// CallbackBaseURL is derived from the serving host by the HTTP layer.
	CallbackBaseURL string
}

type InitiateResult struct {
	TransactionID string `json:"transactionId"`
	RedirectURL   string `json:"redirectUrl"`
}

// Initiate validates the request, reserves a fresh transaction id, calls the
// gateway and records the PENDING transaction. No record is created when the
// gateway rejects the payment.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	log := logger.FromCtx(ctx).With(zap.String("appointment_id", in.AppointmentID))

	if in.AppointmentID == "" || in.AmountMinorUnits <= 0 || isAbsent(in.UserDetails) {
		return nil, apperr.New(apperr.Validation, "Missing required fields")
	}

	id, err := s.freshID(ctx)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("transaction_id", id))

	var user struct {
		UserID string `json:"userId"`
		Mobile string `json:"mobile"`
	}
	_ = json.Unmarshal(in.UserDetails, &user)
	if user.UserID == "" {
		user.UserID = "USER_" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	if user.Mobile == "" {
		user.Mobile = defaultMobileNumber
	}

	res, err := s.gate.Pay(ctx, gateway.PayRequest{
		MerchantID:            s.cfg.MerchantID,
		MerchantTransactionID: id,
		MerchantUserID:        user.UserID,
		Amount:                in.AmountMinorUnits,
		RedirectURL:           fmt.Sprintf("%s/payment-success?transactionId=%s", s.cfg.FrontendURL, id),
		RedirectMode:          "POST",
		CallbackURL:           in.CallbackBaseURL + callbackPath,
		MobileNumber:          user.Mobile,
		PaymentInstrument:     gateway.PaymentInstrument{Type: instrumentPayPage},
	})
	if err != nil {
		log.Error("Payment initiation rejected by gateway", zap.Error(err))
		return nil, apperr.New(apperr.Gateway, gatewayMessage(err))
	}

	tx := &Transaction{
		TransactionID:      id,
		AppointmentID:      in.AppointmentID,
		AmountMinorUnits:   in.AmountMinorUnits,
		Status:             StatusPending,
		UserDetails:        in.UserDetails,
		AppointmentDetails: in.AppointmentDetails,
		CreateResponse:     res.Raw,
	}
	if err := s.store.Create(ctx, tx); err != nil {
		log.Error("Failed to record transaction", zap.Error(err))
		return nil, apperr.New(apperr.Internal, "failed to record transaction")
	}

	log.Info("Payment initiated", zap.String("redirect_url", res.RedirectURL))

	return &InitiateResult{TransactionID: id, RedirectURL: res.RedirectURL}, nil
}

// freshID reserves an id the store does not know yet, regenerating on
// collision up to a fixed number of attempts.
func (s *Service) freshID(ctx context.Context) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := s.newID()
		if _, err := s.store.Get(ctx, id); errors.Is(err, ErrNotFound) {
			return id, nil
		} else if err != nil {
			return "", apperr.New(apperr.Internal, "transaction lookup failed")
		}
	}
	return "", apperr.New(apperr.IdentifierExhausted, "could not generate a unique transaction id")
}

// HandleCallback authenticates an asynchronous gateway notification and
// applies it to the local record. The checksum is recomputed over the raw
// still-encoded payload; nothing is mutated when it does not match.
func (s *Service) HandleCallback(ctx context.Context, encoded, receivedTag string) error {
	log := logger.FromCtx(ctx)

	if encoded == "" {
		return apperr.New(apperr.Auth, "No callback data received")
	}

	if !s.signer.Verify([]byte(encoded), gateway.StatusEndpoint, receivedTag) {
		log.Error("Callback checksum mismatch", zap.String("received", receivedTag))
		return apperr.New(apperr.Auth, "Invalid checksum")
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return apperr.New(apperr.Validation, "invalid callback payload")
	}

	var payload struct {
		MerchantTransactionID string `json:"merchantTransactionId"`
		Code                  string `json:"code"`
	}
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return apperr.New(apperr.Validation, "invalid callback payload")
	}

	log = log.With(
		zap.String("transaction_id", payload.MerchantTransactionID),
		zap.String("code", payload.Code),
	)

	next := StatusFailed
	if payload.Code == successCode {
		next = StatusSuccess
	}

	_, err = s.store.UpdateStatus(ctx, payload.MerchantTransactionID, next, decoded, SnapshotCallback)
	switch {
	case errors.Is(err, ErrNotFound):
		// The gateway should not retry forever for an id we never issued;
		// acknowledge and move on.
		log.Warn("Callback for unknown transaction")
		return nil
	case errors.Is(err, ErrInvalidTransition):
		log.Warn("Callback conflicts with terminal status, ignoring")
		return nil
	case err != nil:
		log.Error("Failed to apply callback", zap.Error(err))
		return apperr.New(apperr.Internal, "failed to apply callback")
	}

	log.Info("Transaction updated from callback", zap.String("status", string(next)))
	return nil
}

// CheckStatus polls the gateway for the authoritative state and merges it
// into the local record. A poll never originates a transaction: an unknown
// local id fails before the gateway is contacted.
func (s *Service) CheckStatus(ctx context.Context, transactionID string) (map[string]interface{}, error) {
	log := logger.FromCtx(ctx).With(zap.String("transaction_id", transactionID))

	local, err := s.store.Get(ctx, transactionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "Transaction not found")
		}
		return nil, apperr.New(apperr.Internal, "transaction lookup failed")
	}

	res, err := s.gate.QueryStatus(ctx, transactionID)
	if err != nil {
		log.Warn("Status check failed upstream", zap.Error(err))
		return nil, apperr.New(apperr.Gateway, gatewayMessage(err))
	}

	// Unrecognized upstream states keep the local status; the poll still
	// refreshes the audit snapshot.
	target := local.Status
	switch res.State {
	case upstreamStateSuccess:
		target = StatusSuccess
	case upstreamStateFailed:
		target = StatusFailed
	}

	updated, err := s.store.UpdateStatus(ctx, transactionID, target, res.Raw, SnapshotStatusPoll)
	switch {
	case errors.Is(err, ErrInvalidTransition):
		log.Warn("Upstream state conflicts with terminal status, keeping local record",
			zap.String("upstream_state", res.State),
			zap.String("local_status", string(local.Status)),
		)
		updated = local
	case err != nil:
		log.Error("Failed to merge status", zap.Error(err))
		return nil, apperr.New(apperr.Internal, "failed to merge status")
	}

	view := map[string]interface{}{}
	if len(res.Raw) > 0 {
		_ = json.Unmarshal(res.Raw, &view)
	}
	view["localTransaction"] = updated

	return view, nil
}

// ListTransactions exposes the store for the diagnostics endpoints.
func (s *Service) ListTransactions(ctx context.Context) ([]*Transaction, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, apperr.New(apperr.Internal, "failed to list transactions")
	}
	return list, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	tx, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "Transaction not found")
		}
		return nil, apperr.New(apperr.Internal, "transaction lookup failed")
	}
	return tx, nil
}

func gatewayMessage(err error) string {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return gwErr.Message
	}
	return err.Error()
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
