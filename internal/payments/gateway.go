package payments

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/showtixhq/showtix-backend/pkg/config"
	pkgerrors "github.com/showtixhq/showtix-backend/pkg/errors"
	"github.com/showtixhq/showtix-backend/pkg/logger"
)

const tradeTypeJSAPI = "JSAPI"

// UnifiedOrderRequest describes one outbound prepay request.
type UnifiedOrderRequest struct {
	OutTradeNo string
	// Body is the human-readable order description shown in the wallet.
	Body      string
	TotalFee  int64
	OpenID    string
	ClientIP  string
	NotifyURL string
}

// PayParams is the signed bundle a mini-program client feeds to the wallet.
type PayParams struct {
	AppID     string `json:"appId"`
	TimeStamp string `json:"timeStamp"`
	NonceStr  string `json:"nonceStr"`
	Package   string `json:"package"`
	SignType  string `json:"signType"`
	PaySign   string `json:"paySign"`
}

// Gateway speaks the provider's XML-over-HTTPS prepay protocol and owns the
// MD5 signing of both directions.
type Gateway struct {
	cfg        config.WeChatConfig
	httpClient *http.Client
	logg       *logger.Logger
	now        func() time.Time
	nonce      func() string
}

func NewGateway(cfg config.WeChatConfig, logg *logger.Logger) (*Gateway, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logg:       logg,
		now:        time.Now,
		nonce:      newNonce,
	}, nil
}

// UnifiedOrder registers the trade with the provider and returns the prepay
// session id. A transport or provider-side failure surfaces as a dependency
// error; the caller does not retry within the request.
func (g *Gateway) UnifiedOrder(ctx context.Context, req UnifiedOrderRequest) (string, error) {
	if !g.cfg.Configured() {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "payment provider is not configured")
	}
	if req.OutTradeNo == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "trade number required")
	}
	if req.TotalFee <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "total fee must be positive")
	}

	params := map[string]string{
		"appid":            g.cfg.AppID,
		"mch_id":           g.cfg.MchID,
		"nonce_str":        g.nonce(),
		"body":             req.Body,
		"out_trade_no":     req.OutTradeNo,
		"total_fee":        strconv.FormatInt(req.TotalFee, 10),
		"spbill_create_ip": req.ClientIP,
		"notify_url":       req.NotifyURL,
		"trade_type":       tradeTypeJSAPI,
		"openid":           req.OpenID,
	}
	params["sign"] = signParams(params, g.cfg.MchKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.UnifiedOrderURL, bytes.NewBufferString(encodeXML(params)))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building unified order request")
	}
	httpReq.Header.Set("Content-Type", "application/xml")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling payment provider")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading provider response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "payment provider rejected the request").
			WithDetails(map[string]any{"httpStatus": resp.StatusCode})
	}

	fields, err := decodeXML(body)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding provider response")
	}
	if fields["return_code"] != "SUCCESS" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "provider returned failure").
			WithDetails(map[string]any{"returnMsg": fields["return_msg"]})
	}
	if fields["result_code"] != "SUCCESS" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "provider rejected the trade").
			WithDetails(map[string]any{
				"errCode":    fields["err_code"],
				"errCodeDes": fields["err_code_des"],
			})
	}
	prepayID := fields["prepay_id"]
	if prepayID == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "provider response missing prepay id")
	}

	g.logg.Info(g.logg.WithField(ctx, "out_trade_no", req.OutTradeNo), "unified order created")
	return prepayID, nil
}

// PayParams signs the client-side payment bundle over the prepay session.
func (g *Gateway) PayParams(prepayID string) PayParams {
	fields := map[string]string{
		"appId":     g.cfg.AppID,
		"timeStamp": strconv.FormatInt(g.now().Unix(), 10),
		"nonceStr":  g.nonce(),
		"package":   "prepay_id=" + prepayID,
		"signType":  "MD5",
	}
	return PayParams{
		AppID:     fields["appId"],
		TimeStamp: fields["timeStamp"],
		NonceStr:  fields["nonceStr"],
		Package:   fields["package"],
		SignType:  fields["signType"],
		PaySign:   signParams(fields, g.cfg.MchKey),
	}
}

// VerifyNotify checks the signature on an inbound notification payload.
func (g *Gateway) VerifyNotify(fields map[string]string) error {
	if !verifySign(fields, g.cfg.MchKey) {
		return pkgerrors.New(pkgerrors.CodeSignatureInvalid, "notification signature mismatch")
	}
	return nil
}

// FenAmount converts a yuan decimal into the provider's integer fen.
func FenAmount(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// YuanAmount converts the provider's integer fen back to a yuan decimal.
func YuanAmount(fen int64) decimal.Decimal {
	return decimal.NewFromInt(fen).Div(decimal.NewFromInt(100))
}

func newNonce() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(buf[:])
}
