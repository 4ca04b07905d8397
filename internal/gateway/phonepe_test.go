package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"bookpay-be/internal/checksum"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner() *checksum.Signer {
	return checksum.NewSigner("salt-secret", "1")
}

func payReq() PayRequest {
	return PayRequest{
		MerchantID:            "MERCHANTUAT",
		MerchantTransactionID: "TXN1",
		MerchantUserID:        "U1",
		Amount:                50000,
		RedirectURL:           "http://localhost:3000/payment-success?transactionId=TXN1",
		RedirectMode:          "POST",
		CallbackURL:           "http://localhost:3001/api/phonepe/callback",
		MobileNumber:          "9876543210",
		PaymentInstrument:     PaymentInstrument{Type: "PAY_PAGE"},
	}
}

func TestClient_Pay(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		signer := testSigner()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "POST", r.Method)
			assert.Equal(t, PayEndpoint, r.URL.Path)

			var body struct {
				Request string `json:"request"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

			// The X-VERIFY tag must be signed over the still-encoded payload.
			assert.True(t, signer.Verify([]byte(body.Request), PayEndpoint, r.Header.Get("X-VERIFY")))

			// The encoded payload must round-trip to the original request.
			decoded, err := base64.StdEncoding.DecodeString(body.Request)
			require.NoError(t, err)
			var sent PayRequest
			require.NoError(t, json.Unmarshal(decoded, &sent))
			assert.Equal(t, "TXN1", sent.MerchantTransactionID)
			assert.Equal(t, "PAY_PAGE", sent.PaymentInstrument.Type)

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"success": true,
				"code": "PAYMENT_INITIATED",
				"data": {
					"merchantTransactionId": "TXN1",
					"instrumentResponse": {
						"redirectInfo": {"url": "https://pay.phonepe.com/redirect/abc"}
					}
				}
			}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "MERCHANTUAT", signer)
		res, err := c.Pay(context.Background(), payReq())
		require.NoError(t, err)
		assert.Equal(t, "https://pay.phonepe.com/redirect/abc", res.RedirectURL)
		assert.Contains(t, string(res.Raw), "instrumentResponse")
	})

	t.Run("UpstreamRejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"success": false, "code": "BAD_REQUEST", "message": "Key not found"}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "MERCHANTUAT", testSigner())
		_, err := c.Pay(context.Background(), payReq())

		var gwErr *Error
		require.ErrorAs(t, err, &gwErr)
		assert.Equal(t, "Key not found", gwErr.Message)
	})

	t.Run("RejectionWithoutMessage", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success": false}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "MERCHANTUAT", testSigner())
		_, err := c.Pay(context.Background(), payReq())

		var gwErr *Error
		require.ErrorAs(t, err, &gwErr)
		assert.Equal(t, "Payment initialization failed", gwErr.Message)
	})

	t.Run("InvalidJSONResponse", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{invalid-json`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "MERCHANTUAT", testSigner())
		_, err := c.Pay(context.Background(), payReq())
		assert.Error(t, err)
	})

	t.Run("MissingRedirectURL", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success": true, "data": {"instrumentResponse": {}}}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "MERCHANTUAT", testSigner())
		_, err := c.Pay(context.Background(), payReq())

		var gwErr *Error
		require.ErrorAs(t, err, &gwErr)
		assert.Equal(t, "gateway response missing redirect url", gwErr.Message)
	})

	t.Run("NetworkError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // connection refused

		c := NewClient(srv.URL, "MERCHANTUAT", testSigner())
		_, err := c.Pay(context.Background(), payReq())

		var gwErr *Error
		assert.ErrorAs(t, err, &gwErr)
	})
}

func TestClient_QueryStatus(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		signer := testSigner()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "GET", r.Method)
			assert.Equal(t, StatusEndpoint+"/MERCHANTUAT/TXN1", r.URL.Path)
			assert.Equal(t, "MERCHANTUAT", r.Header.Get("X-MERCHANT-ID"))
			// Status checks sign an empty payload against the full path.
			assert.True(t, signer.Verify(nil, StatusEndpoint+"/MERCHANTUAT/TXN1", r.Header.Get("X-VERIFY")))

			w.Write([]byte(`{
				"success": true,
				"code": "PAYMENT_SUCCESS",
				"data": {"merchantTransactionId": "TXN1", "state": "COMPLETED", "responseCode": "SUCCESS"}
			}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "MERCHANTUAT", signer)
		res, err := c.QueryStatus(context.Background(), "TXN1")
		require.NoError(t, err)
		assert.Equal(t, "COMPLETED", res.State)
		assert.Contains(t, string(res.Raw), "responseCode")
	})

	t.Run("UpstreamFailure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success": false, "message": "transaction not found upstream"}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "MERCHANTUAT", testSigner())
		_, err := c.QueryStatus(context.Background(), "TXN1")

		var gwErr *Error
		require.ErrorAs(t, err, &gwErr)
		assert.Equal(t, "transaction not found upstream", gwErr.Message)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "MERCHANTUAT", testSigner())
		_, err := c.QueryStatus(context.Background(), "TXN1")
		assert.Error(t, err)
	})
}
