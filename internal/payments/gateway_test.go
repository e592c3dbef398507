package payments

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/showtixhq/showtix-backend/pkg/config"
	pkgerrors "github.com/showtixhq/showtix-backend/pkg/errors"
	"github.com/showtixhq/showtix-backend/pkg/logger"
)

func testWeChatConfig(url string) config.WeChatConfig {
	return config.WeChatConfig{
		AppID:           "wx123",
		MchID:           "m456",
		MchKey:          "sekrit",
		UnifiedOrderURL: url,
		Timeout:         2 * time.Second,
	}
}

func newTestGateway(t *testing.T, url string) *Gateway {
	t.Helper()
	gw, err := NewGateway(testWeChatConfig(url), logger.New(logger.Options{ServiceName: "payments-test", Level: zerolog.ErrorLevel}))
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return gw
}

func unifiedOrderRequest() UnifiedOrderRequest {
	return UnifiedOrderRequest{
		OutTradeNo: "20260501100000123456",
		Body:       "Jazz Night - GA",
		TotalFee:   12000,
		OpenID:     "openid-1",
		ClientIP:   "203.0.113.5",
		NotifyURL:  "https://tickets.example.com/api/v1/payments/wechat/notify",
	}
}

func TestUnifiedOrderSuccess(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request: %v", err)
		}
		fields, err := decodeXML(body)
		if err != nil {
			t.Errorf("decode request: %v", err)
		}
		received = fields
		w.Write([]byte(encodeXML(map[string]string{
			"return_code": "SUCCESS",
			"result_code": "SUCCESS",
			"prepay_id":   "prepay-abc",
		})))
	}))
	defer server.Close()

	gw := newTestGateway(t, server.URL)
	prepayID, err := gw.UnifiedOrder(context.Background(), unifiedOrderRequest())
	if err != nil {
		t.Fatalf("unified order: %v", err)
	}
	if prepayID != "prepay-abc" {
		t.Fatalf("expected prepay-abc, got %s", prepayID)
	}

	// The outbound request carries the trade fields and a valid signature.
	if received["out_trade_no"] != "20260501100000123456" {
		t.Fatalf("expected trade number forwarded, got %q", received["out_trade_no"])
	}
	if received["total_fee"] != "12000" {
		t.Fatalf("expected fee in fen, got %q", received["total_fee"])
	}
	if received["trade_type"] != "JSAPI" {
		t.Fatalf("expected JSAPI trade type, got %q", received["trade_type"])
	}
	if !verifySign(received, "sekrit") {
		t.Fatal("expected outbound request to be validly signed")
	}
}

func TestUnifiedOrderProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(encodeXML(map[string]string{
			"return_code": "FAIL",
			"return_msg":  "invalid merchant",
		})))
	}))
	defer server.Close()

	gw := newTestGateway(t, server.URL)
	_, err := gw.UnifiedOrder(context.Background(), unifiedOrderRequest())
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestUnifiedOrderTradeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(encodeXML(map[string]string{
			"return_code":  "SUCCESS",
			"result_code":  "FAIL",
			"err_code":     "ORDERPAID",
			"err_code_des": "order already paid",
		})))
	}))
	defer server.Close()

	gw := newTestGateway(t, server.URL)
	_, err := gw.UnifiedOrder(context.Background(), unifiedOrderRequest())
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestUnifiedOrderTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	gw := newTestGateway(t, server.URL)
	_, err := gw.UnifiedOrder(context.Background(), unifiedOrderRequest())
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestUnifiedOrderRequiresConfiguration(t *testing.T) {
	gw := newTestGateway(t, "http://localhost:0")
	gw.cfg.MchKey = ""

	_, err := gw.UnifiedOrder(context.Background(), unifiedOrderRequest())
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestPayParamsAreSigned(t *testing.T) {
	gw := newTestGateway(t, "http://localhost:0")
	gw.now = func() time.Time { return time.Unix(1767225600, 0) }
	gw.nonce = func() string { return "feedfacefeedface" }

	params := gw.PayParams("prepay-abc")
	if params.AppID != "wx123" || params.SignType != "MD5" {
		t.Fatalf("unexpected params: %+v", params)
	}
	if params.Package != "prepay_id=prepay-abc" {
		t.Fatalf("unexpected package: %s", params.Package)
	}
	if params.TimeStamp != "1767225600" {
		t.Fatalf("unexpected timestamp: %s", params.TimeStamp)
	}

	expected := signParams(map[string]string{
		"appId":     params.AppID,
		"timeStamp": params.TimeStamp,
		"nonceStr":  params.NonceStr,
		"package":   params.Package,
		"signType":  params.SignType,
	}, "sekrit")
	if params.PaySign != expected {
		t.Fatalf("expected paySign %s, got %s", expected, params.PaySign)
	}
}

func TestVerifyNotifyRejectsBadSignature(t *testing.T) {
	gw := newTestGateway(t, "http://localhost:0")
	err := gw.VerifyNotify(map[string]string{
		"out_trade_no": "x",
		"sign":         "BOGUS",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeSignatureInvalid) {
		t.Fatalf("expected signature invalid, got %v", err)
	}
}
