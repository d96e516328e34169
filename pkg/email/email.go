// Package email 邮件服务
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"time"
)

// Sender 邮件发送器接口
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Config SMTP 配置
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPSender SMTP 邮件发送器
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTPSender 创建 SMTP 邮件发送器
func NewSMTPSender(cfg *Config) *SMTPSender {
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth: auth,
		from: cfg.From,
	}
}

// Send 发送邮件
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("发送邮件失败: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MockSender 模拟邮件发送器（用于开发/测试）
type MockSender struct {
	SentMails []MockMail
}

// MockMail 模拟邮件
type MockMail struct {
	To      string
	Subject string
	Body    string
	SentAt  time.Time
}

// NewMockSender 创建模拟发送器
func NewMockSender() *MockSender {
	return &MockSender{SentMails: make([]MockMail, 0)}
}

// Send 模拟发送
func (s *MockSender) Send(ctx context.Context, to, subject, body string) error {
	s.SentMails = append(s.SentMails, MockMail{
		To:      to,
		Subject: subject,
		Body:    body,
		SentAt:  time.Now(),
	})
	return nil
}
