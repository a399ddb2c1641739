// Package email, uygulama genelinde email gönderimi için soyutlama katmanı sağlar.
//
// EmailSender interface'i ile email gönderim detayları soyutlanır (Dependency Inversion).
// Şu anki implementasyon Resend API kullanır. İleride farklı bir sağlayıcıya
// geçmek için sadece yeni bir implementasyon yazıp constructor'da değiştirmek yeterli.
//
// Bu paket dışarıya iki şey sunar:
// 1. EmailSender interface — service'ler buna bağımlı olur
// 2. NewResendSender constructor — main.go'da wire-up için
package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"
)

// EmailSender, email gönderimi için interface.
// Service katmanı bu interface'e bağımlıdır, concrete Resend implementasyonuna değil.
type EmailSender interface {
	// SendIncomingCall, offline kullanıcıya gelen arama bildirimi gönderir.
	// callerName: arayan kişinin görünen adı, chatName: aramanın yapıldığı sohbet.
	SendIncomingCall(ctx context.Context, toEmail, callerName, chatName string) error

	// SendMissedCall, ring timeout sonrası cevapsız arama bildirimi gönderir.
	SendMissedCall(ctx context.Context, toEmail, callerName, chatName string) error
}

// resendSender, Resend API ile email gönderen EmailSender implementasyonu.
type resendSender struct {
	client    *resend.Client
	fromEmail string // Gönderici adresi (ör: noreply@konvo.app)
	appURL    string // Uygulamanın public URL'i (ör: https://app.konvo.app)
}

// NewResendSender, Resend API client'ı ile yeni bir EmailSender oluşturur.
//
// apiKey: Resend dashboard'dan alınan API key (re_xxxxxxxx formatında).
// fromEmail: Gönderici email adresi — Resend'de doğrulanmış domain altında olmalı.
// appURL: Uygulamanın public URL'i — email'deki "aç" link'lerinde kullanılır.
func NewResendSender(apiKey, fromEmail, appURL string) EmailSender {
	return &resendSender{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		appURL:    appURL,
	}
}

func (s *resendSender) SendIncomingCall(ctx context.Context, toEmail, callerName, chatName string) error {
	subject := fmt.Sprintf("%s is calling you — konvo", callerName)
	heading := "Incoming Call"
	body := fmt.Sprintf("%s started a call in <strong>%s</strong>. Open konvo to join while the call is still ringing.", callerName, chatName)

	if err := s.send(ctx, toEmail, subject, heading, body); err != nil {
		return fmt.Errorf("failed to send incoming call email: %w", err)
	}
	return nil
}

func (s *resendSender) SendMissedCall(ctx context.Context, toEmail, callerName, chatName string) error {
	subject := fmt.Sprintf("Missed call from %s — konvo", callerName)
	heading := "Missed Call"
	body := fmt.Sprintf("You missed a call from %s in <strong>%s</strong>. Open konvo to call back.", callerName, chatName)

	if err := s.send(ctx, toEmail, subject, heading, body); err != nil {
		return fmt.Errorf("failed to send missed call email: %w", err)
	}
	return nil
}

// send, ortak HTML şablonuyla email gönderir.
func (s *resendSender) send(ctx context.Context, toEmail, subject, heading, bodyHTML string) error {
	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;padding:0;background-color:#1a1a2e;font-family:Arial,Helvetica,sans-serif;">
  <table width="100%%" cellpadding="0" cellspacing="0" style="background-color:#1a1a2e;padding:40px 0;">
    <tr>
      <td align="center">
        <table width="480" cellpadding="0" cellspacing="0" style="background-color:#16213e;border-radius:8px;padding:40px;">
          <tr>
            <td>
              <h1 style="color:#e2e8f0;font-size:24px;margin:0 0 8px 0;">konvo</h1>
              <h2 style="color:#e2e8f0;font-size:18px;margin:0 0 24px 0;">%s</h2>
              <p style="color:#94a3b8;font-size:15px;line-height:1.6;margin:0 0 24px 0;">
                %s
              </p>
              <table cellpadding="0" cellspacing="0" style="margin:0;">
                <tr>
                  <td style="background-color:#6366f1;border-radius:6px;padding:12px 32px;">
                    <a href="%s" style="color:#ffffff;text-decoration:none;font-size:15px;font-weight:600;">
                      Open konvo
                    </a>
                  </td>
                </tr>
              </table>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`, heading, bodyHTML, s.appURL)

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("konvo <%s>", s.fromEmail),
		To:      []string{toEmail},
		Subject: subject,
		Html:    html,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	return err
}
