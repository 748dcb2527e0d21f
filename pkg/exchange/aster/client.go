package aster

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Relic999/aester-dex/pkg/exchange/common"
)

// Config holds Aster perpetual-futures credentials.
type Config struct {
	APIKey     string
	APISecret  string
	BaseURL    string // override for testing; default mainnet
	RecvWindow int64  // ms
}

// Client talks to the Aster USDT-margined perpetuals REST API.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	timeSync   *common.TimeSync
	limiter    *common.UsedWeightLimiter
}

// NewClient creates a new perpetuals REST client.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = "https://fapi.asterdex.com"
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5000
	}
	c := &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	c.timeSync = common.NewTimeSync(func() (int64, error) {
		return c.GetServerTime()
	})
	c.limiter = common.NewUsedWeightLimiter(2400, time.Minute)
	return c
}

// StartTimeSync begins periodic clock synchronization with the exchange.
func (c *Client) StartTimeSync(ctx context.Context) {
	c.timeSync.Start(ctx)
}

// now returns a signing timestamp adjusted by the server clock offset.
func (c *Client) now() int64 {
	if c.timeSync != nil && c.timeSync.Offset() != 0 {
		return c.timeSync.Now()
	}
	return time.Now().UnixMilli()
}

// GetServerTime fetches the exchange server time.
func (c *Client) GetServerTime() (int64, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/fapi/v1/time")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("server time status %d: %s", resp.StatusCode, string(b))
	}
	var res struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return 0, err
	}
	return res.ServerTime, nil
}

// GetPositionRisk returns the position snapshot for a symbol. The exchange
// reports a zero-amount row even when no position is open.
func (c *Client) GetPositionRisk(ctx context.Context, symbol string) ([]PositionRisk, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return nil, errors.New("aster: API key/secret required")
	}
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	body, err := c.doSigned(ctx, http.MethodGet, c.baseURL+"/fapi/v2/positionRisk", params)
	if err != nil {
		return nil, err
	}
	var pos []PositionRisk
	if err := json.Unmarshal(body, &pos); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	return pos, nil
}

// GetBalances returns futures wallet balances.
func (c *Client) GetBalances(ctx context.Context) ([]Balance, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return nil, errors.New("aster: API key/secret required")
	}
	params := url.Values{}
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	body, err := c.doSigned(ctx, http.MethodGet, c.baseURL+"/fapi/v2/balance", params)
	if err != nil {
		return nil, err
	}
	var bal []Balance
	if err := json.Unmarshal(body, &bal); err != nil {
		return nil, fmt.Errorf("decode balance: %w", err)
	}
	return bal, nil
}

// SetLeverage sets leverage for a symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	_, err := c.doSigned(ctx, http.MethodPost, c.baseURL+"/fapi/v1/leverage", params)
	return err
}

// SubmitMarketOrder places a market order. Set reduceOnly for closes so a
// stale size can never flip the position on the exchange side.
func (c *Client) SubmitMarketOrder(ctx context.Context, symbol, side string, qty float64, clientID string, reduceOnly bool) (OrderAck, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return OrderAck{}, errors.New("aster: API key/secret required")
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", strings.ToUpper(side))
	params.Set("type", "MARKET")
	params.Set("quantity", formatFloat(qty))
	if clientID != "" {
		params.Set("newClientOrderId", clientID)
	}
	if reduceOnly {
		params.Set("reduceOnly", "true")
	}
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))

	body, err := c.doSigned(ctx, http.MethodPost, c.baseURL+"/fapi/v1/order", params)
	if err != nil {
		return OrderAck{}, err
	}
	var ack OrderAck
	if err := json.Unmarshal(body, &ack); err != nil {
		return OrderAck{}, fmt.Errorf("decode order: %w", err)
	}
	return ack, nil
}

// doSigned handles signing and sending authenticated requests. It waits out
// the weight window first when the previous responses showed it nearly spent.
func (c *Client) doSigned(ctx context.Context, method, endpoint string, params url.Values) ([]byte, error) {
	c.limiter.Throttle(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sig := sign(params.Encode(), c.cfg.APISecret)
	params.Set("signature", sig)

	var (
		req *http.Request
		err error
	)
	encoded := params.Encode()
	switch method {
	case http.MethodGet, http.MethodDelete:
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+encoded, nil)
	default:
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(encoded))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	c.limiter.Observe(res.Header.Get("X-MBX-USED-WEIGHT-1M"))

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return nil, parseAPIError(res.StatusCode, body)
	}
	return body, nil
}

func sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
