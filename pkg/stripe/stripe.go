// Package stripe Stripe Checkout 客户端
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config Stripe 配置
type Config struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	MockMode      bool
	Timeout       time.Duration
}

// Client Stripe 客户端
type Client struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	successURL    string
	cancelURL     string
	mockMode      bool
	httpClient    *http.Client
}

// NewClient 创建 Stripe 客户端
func NewClient(cfg *Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		mockMode:      cfg.MockMode,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

// CheckoutRequest 创建结账会话请求
type CheckoutRequest struct {
	Amount      float64           // 主单位金额
	Currency    string            // gbp / brl
	Description string
	Metadata    map[string]string
}

// CheckoutSession 结账会话
type CheckoutSession struct {
	SessionID     string            `json:"session_id"`
	URL           string            `json:"url"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   float64           `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// CreateCheckout 创建结账会话
func (c *Client) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	if c.mockMode {
		sessionID := fmt.Sprintf("cs_mock_%d", time.Now().UnixNano())
		return &CheckoutSession{
			SessionID:     sessionID,
			URL:           fmt.Sprintf("https://checkout.stripe.com/mock/%s", sessionID),
			Status:        "open",
			PaymentStatus: "unpaid",
			AmountTotal:   req.Amount,
			Currency:      strings.ToLower(req.Currency),
			Metadata:      req.Metadata,
		}, nil
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", c.successURL)
	form.Set("cancel_url", c.cancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(toMinorUnits(req.Amount), 10))
	form.Set("line_items[0][price_data][product_data][name]", req.Description)
	for k, v := range req.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var resp struct {
		ID            string            `json:"id"`
		URL           string            `json:"url"`
		Status        string            `json:"status"`
		PaymentStatus string            `json:"payment_status"`
		AmountTotal   int64             `json:"amount_total"`
		Currency      string            `json:"currency"`
		Metadata      map[string]string `json:"metadata"`
	}
	if err := c.post(ctx, "/v1/checkout/sessions", form, &resp); err != nil {
		return nil, err
	}

	return &CheckoutSession{
		SessionID:     resp.ID,
		URL:           resp.URL,
		Status:        resp.Status,
		PaymentStatus: resp.PaymentStatus,
		AmountTotal:   fromMinorUnits(resp.AmountTotal),
		Currency:      resp.Currency,
		Metadata:      resp.Metadata,
	}, nil
}

// GetSession 查询结账会话状态
func (c *Client) GetSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if c.mockMode {
		// 模拟模式下会话总是视为已支付，便于本地走通支付闭环
		return &CheckoutSession{
			SessionID:     sessionID,
			Status:        "complete",
			PaymentStatus: "paid",
		}, nil
	}

	var resp struct {
		ID            string            `json:"id"`
		Status        string            `json:"status"`
		PaymentStatus string            `json:"payment_status"`
		AmountTotal   int64             `json:"amount_total"`
		Currency      string            `json:"currency"`
		Metadata      map[string]string `json:"metadata"`
	}
	if err := c.get(ctx, "/v1/checkout/sessions/"+url.PathEscape(sessionID), &resp); err != nil {
		return nil, err
	}

	return &CheckoutSession{
		SessionID:     resp.ID,
		Status:        resp.Status,
		PaymentStatus: resp.PaymentStatus,
		AmountTotal:   fromMinorUnits(resp.AmountTotal),
		Currency:      resp.Currency,
		Metadata:      resp.Metadata,
	}, nil
}

// WebhookEvent 回调事件
type WebhookEvent struct {
	Type          string
	SessionID     string
	PaymentStatus string
	Metadata      map[string]string
}

// VerifyWebhook 校验回调签名并解析事件
/// 签名头格式: t=<unix>,v1=<hex(hmac-sha256(secret, "<t>.<payload>"))>
func (c *Client) VerifyWebhook(payload []byte, sigHeader string) (*WebhookEvent, error) {
	timestamp, signature, err := parseSigHeader(sigHeader)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, fmt.Errorf("webhook 签名不匹配")
	}

	var event struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID            string            `json:"id"`
				PaymentStatus string            `json:"payment_status"`
				Metadata      map[string]string `json:"metadata"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("解析回调载荷失败: %w", err)
	}

	return &WebhookEvent{
		Type:          event.Type,
		SessionID:     event.Data.Object.ID,
		PaymentStatus: event.Data.Object.PaymentStatus,
		Metadata:      event.Data.Object.Metadata,
	}, nil
}

// SignPayload 生成回调签名头（测试与模拟回调用）
func (c *Client) SignPayload(payload []byte, timestamp time.Time) string {
	ts := strconv.FormatInt(timestamp.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func parseSigHeader(header string) (timestamp, signature string, err error) {
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signature = kv[1]
		}
	}
	if timestamp == "" || signature == "" {
		return "", "", fmt.Errorf("webhook 签名头格式错误")
	}
	return timestamp, signature, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stripe 请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		if apiErr.Error.Message == "" {
			apiErr.Error.Message = resp.Status
		}
		return fmt.Errorf("stripe 接口错误: %s", apiErr.Error.Message)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

// toMinorUnits 主单位转最小货币单位
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// fromMinorUnits 最小货币单位转主单位
func fromMinorUnits(minor int64) float64 {
	return float64(minor) / 100
}
