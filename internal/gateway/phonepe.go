package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"bookpay-be/internal/checksum"
	"bookpay-be/internal/logger"
	"bookpay-be/internal/metrics"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Endpoint paths of the PhonePe payment API. The status path is also the one
// callbacks are signed against.
const (
	PayEndpoint    = "/pg/v1/pay"
	StatusEndpoint = "/pg/v1/status"
)

const (
	callTimeout  = 15 * time.Second
	retryCount   = 2
	retryWait    = 500 * time.Millisecond
	retryMaxWait = 3 * time.Second
)

// Error carries the upstream failure message through to the caller.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// PayRequest is the payload signed and base64-encoded into the pay envelope.
type PayRequest struct {
	MerchantID            string            `json:"merchantId"`
	MerchantTransactionID string            `json:"merchantTransactionId"`
	MerchantUserID        string            `json:"merchantUserId"`
	Amount                int64             `json:"amount"`
	RedirectURL           string            `json:"redirectUrl"`
	RedirectMode          string            `json:"redirectMode"`
	CallbackURL           string            `json:"callbackUrl"`
	MobileNumber          string            `json:"mobileNumber"`
	PaymentInstrument     PaymentInstrument `json:"paymentInstrument"`
}

type PaymentInstrument struct {
	Type string `json:"type"`
}

type PayResult struct {
	RedirectURL string
	Raw         json.RawMessage
}

type StatusResult struct {
	State string
	Raw   json.RawMessage
}

// envelope is the response shape shared by both PhonePe operations.
type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Client struct {
	http       *resty.Client
	signer     *checksum.Signer
	merchantID string
	breaker    *gobreaker.CircuitBreaker
}

func NewClient(baseURL, merchantID string, signer *checksum.Signer) *Client {
	if baseURL == "" {
		logger.L().Warn("PhonePe base URL is empty")
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(callTimeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(retryMaxWait)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "phonepe",
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			state := float64(0)
			switch to {
			case gobreaker.StateOpen:
				state = 1
			case gobreaker.StateHalfOpen:
				state = 2
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(state)
			logger.L().Info("circuit breaker state changed",
				zap.String("circuit", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		http:       httpClient,
		signer:     signer,
		merchantID: merchantID,
		breaker:    breaker,
	}
}

// Pay initiates a payment. The request is serialized to JSON, base64-encoded
// into a {"request": ...} envelope, and authenticated with an X-VERIFY tag
// signed against the pay endpoint.
func (c *Client) Pay(ctx context.Context, req PayRequest) (*PayResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("transaction_id", req.MerchantTransactionID),
		zap.Int64("amount", req.Amount),
	)

	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	encoded := base64.StdEncoding.EncodeToString(jsonBody)
	tag := c.signer.Sign([]byte(encoded), PayEndpoint)

	log.Info("Sending payment request to PhonePe")

	env, err := c.call(ctx, "pay", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeader("accept", "application/json").
			SetHeader("X-VERIFY", tag).
			SetBody(map[string]string{"request": encoded}).
			Post(PayEndpoint)
	})
	if err != nil {
		log.Error("PhonePe pay request failed", zap.Error(err))
		return nil, err
	}

	if !env.Success {
		log.Error("PhonePe rejected payment", zap.String("code", env.Code), zap.String("message", env.Message))
		msg := env.Message
		if msg == "" {
			msg = "Payment initialization failed"
		}
		return nil, &Error{Message: msg}
	}

	var data struct {
		InstrumentResponse struct {
			RedirectInfo struct {
				URL string `json:"url"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		log.Error("Failed decoding PhonePe pay response", zap.Error(err))
		return nil, &Error{Message: "invalid gateway response"}
	}
	if data.InstrumentResponse.RedirectInfo.URL == "" {
		return nil, &Error{Message: "gateway response missing redirect url"}
	}

	log.Info("PhonePe payment created", zap.String("redirect_url", data.InstrumentResponse.RedirectInfo.URL))

	return &PayResult{
		RedirectURL: data.InstrumentResponse.RedirectInfo.URL,
		Raw:         env.Data,
	}, nil
}

// QueryStatus asks PhonePe for the authoritative state of a transaction. An
// empty payload is signed against the parameterized status path.
func (c *Client) QueryStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	log := logger.FromCtx(ctx).With(zap.String("transaction_id", transactionID))

	endpoint := fmt.Sprintf("%s/%s/%s", StatusEndpoint, c.merchantID, transactionID)
	tag := c.signer.Sign(nil, endpoint)

	env, err := c.call(ctx, "status", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeader("accept", "application/json").
			SetHeader("X-VERIFY", tag).
			SetHeader("X-MERCHANT-ID", c.merchantID).
			Get(endpoint)
	})
	if err != nil {
		log.Error("PhonePe status request failed", zap.Error(err))
		return nil, err
	}

	if !env.Success {
		log.Warn("PhonePe status check unsuccessful", zap.String("code", env.Code), zap.String("message", env.Message))
		msg := env.Message
		if msg == "" {
			msg = "Status check failed"
		}
		return nil, &Error{Message: msg}
	}

	var data struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		log.Error("Failed decoding PhonePe status response", zap.Error(err))
		return nil, &Error{Message: "invalid gateway response"}
	}

	return &StatusResult{State: data.State, Raw: env.Data}, nil
}

// call runs one gateway operation through the circuit breaker and decodes the
// shared response envelope. Transport failures, timeouts and an open circuit
// all surface as *Error.
func (c *Client) call(ctx context.Context, operation string, do func() (*resty.Response, error)) (*envelope, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := do()
		if err != nil {
			return nil, err
		}

		var env envelope
		if err := json.Unmarshal(resp.Body(), &env); err != nil {
			return nil, fmt.Errorf("decoding gateway response: %w", err)
		}
		return &env, nil
	})
	if err != nil {
		metrics.GatewayCallsTotal.WithLabelValues(operation, "error").Inc()
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, &Error{Message: "payment gateway unavailable"}
		}
		return nil, &Error{Message: err.Error()}
	}

	metrics.GatewayCallsTotal.WithLabelValues(operation, "ok").Inc()
	return result.(*envelope), nil
}
