// Package sms 短信服务
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Provider 短信发送器接口
type Provider interface {
	Send(ctx context.Context, phone, message string) error
}

// Config 短信配置
type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	Endpoint   string // 默认 Twilio API
	Timeout    time.Duration
}

// TwilioProvider Twilio 短信发送器
type TwilioProvider struct {
	accountSID string
	authToken  string
	fromNumber string
	endpoint   string
	httpClient *http.Client
}

// NewTwilioProvider 创建 Twilio 短信发送器
func NewTwilioProvider(cfg *Config) *TwilioProvider {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.twilio.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TwilioProvider{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send 发送短信
func (p *TwilioProvider) Send(ctx context.Context, phone, message string) error {
	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", p.fromNumber)
	form.Set("Body", message)

	apiURL := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.endpoint, p.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("构造短信请求失败: %w", err)
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("发送短信失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		return fmt.Errorf("发送短信失败: %s", apiErr.Message)
	}
	return nil
}

// MockProvider 模拟短信发送器（用于开发/测试）
type MockProvider struct {
	SentMessages []MockMessage
}

// MockMessage 模拟消息
type MockMessage struct {
	Phone   string
	Message string
	SentAt  time.Time
}

// NewMockProvider 创建模拟发送器
func NewMockProvider() *MockProvider {
	return &MockProvider{
		SentMessages: make([]MockMessage, 0),
	}
}

// Send 模拟发送
func (p *MockProvider) Send(ctx context.Context, phone, message string) error {
	p.SentMessages = append(p.SentMessages, MockMessage{
		Phone:   phone,
		Message: message,
		SentAt:  time.Now(),
	})
	return nil
}

// GetLastMessage 获取最后发送的消息
func (p *MockProvider) GetLastMessage() *MockMessage {
	if len(p.SentMessages) == 0 {
		return nil
	}
	return &p.SentMessages[len(p.SentMessages)-1]
}

// Clear 清空消息记录
func (p *MockProvider) Clear() {
	p.SentMessages = make([]MockMessage, 0)
}
