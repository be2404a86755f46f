// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package notify emails the shop owner when an order is placed.
//
// SMTP settings come from the AppConfig document so they can be changed from
// the admin panel. Delivery is best effort: failures are logged and never
// affect the order.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/wneessen/go-mail"
)

// Settings provides the current configuration documents. store.Settings
// satisfies it.
type Settings interface {
	AppConfig(ctx context.Context) (*datatypes.AppConfig, error)
	SiteSettings(ctx context.Context) (*datatypes.SiteSettings, error)
}

// sendFunc delivers a message with the given SMTP account.
type sendFunc func(ctx context.Context, cfg datatypes.SMTPConfig, msg *mail.Msg) error

// OrderNotifier sends order emails in the background.
type OrderNotifier struct {
	settings Settings
	logger   *slog.Logger
	timeout  time.Duration
	send     sendFunc
	wg       sync.WaitGroup
}

// NewOrderNotifier creates a notifier. A nil logger uses slog.Default().
func NewOrderNotifier(settings Settings, logger *slog.Logger) *OrderNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderNotifier{
		settings: settings,
		logger:   logger,
		timeout:  30 * time.Second,
		send:     sendSMTP,
	}
}

// OrderPlaced schedules an email about o and returns immediately.
func (n *OrderNotifier) OrderPlaced(o datatypes.Order) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		sent, err := n.notify(ctx, &o)
		switch {
		case err != nil:
			n.logger.Warn("order notification failed", "order_id", o.ID.Hex(), "error", err)
		case sent:
			n.logger.Info("order notification sent", "order_id", o.ID.Hex())
		}
	}()
}

// Wait blocks until every scheduled notification has finished.
func (n *OrderNotifier) Wait() {
	n.wg.Wait()
}

// notify reports whether a message was sent. Disabled SMTP is not an error.
func (n *OrderNotifier) notify(ctx context.Context, o *datatypes.Order) (bool, error) {
	cfg, err := n.settings.AppConfig(ctx)
	if err != nil {
		return false, fmt.Errorf("load app config: %w", err)
	}
	if !cfg.SMTP.Enabled {
		return false, nil
	}
	if !cfg.SMTP.Complete() {
		return false, fmt.Errorf("smtp enabled but incomplete")
	}

	site, err := n.settings.SiteSettings(ctx)
	if err != nil {
		return false, fmt.Errorf("load site settings: %w", err)
	}
	msg, err := buildOrderMessage(cfg.SMTP, site, o)
	if err != nil {
		return false, err
	}
	if err := n.send(ctx, cfg.SMTP, msg); err != nil {
		return false, err
	}
	return true, nil
}

// buildOrderMessage addresses the shop contact email, falling back to the
// SMTP account itself.
func buildOrderMessage(smtp datatypes.SMTPConfig, site *datatypes.SiteSettings, o *datatypes.Order) (*mail.Msg, error) {
	to := smtp.User
	shop := "Koholi"
	if site != nil {
		if site.Email != "" {
			to = site.Email
		}
		if site.SiteName != "" {
			shop = site.SiteName
		}
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(shop, smtp.User); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(fmt.Sprintf("[%s] New order: %s", shop, o.ProductName))
	msg.SetBodyString(mail.TypeTextPlain, orderBody(o))
	return msg, nil
}

func orderBody(o *datatypes.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A new order was placed.\n\n")
	fmt.Fprintf(&b, "Order:    %s\n", o.ID.Hex())
	fmt.Fprintf(&b, "Product:  %s\n", o.ProductName)
	fmt.Fprintf(&b, "Price:    ৳%.2f\n", o.Price)
	fmt.Fprintf(&b, "Customer: %s\n", o.CustomerName)
	fmt.Fprintf(&b, "Phone:    %s\n", o.Phone)
	fmt.Fprintf(&b, "Address:  %s\n", o.Address)
	fmt.Fprintf(&b, "Placed:   %s\n", o.CreatedAt.Format(time.RFC1123))
	return b.String()
}

// implicitTLSPort is the SMTPS port. Servers there expect a TLS handshake
// on connect rather than a STARTTLS upgrade.
const implicitTLSPort = 465

func implicitTLS(cfg datatypes.SMTPConfig) bool {
	return cfg.Port == implicitTLSPort
}

func clientOptions(cfg datatypes.SMTPConfig) []mail.Option {
	opts := []mail.Option{
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.User),
		mail.WithPassword(cfg.Password),
		mail.WithTimeout(20 * time.Second),
	}
	if implicitTLS(cfg) {
		return append(opts, mail.WithSSLPort(false))
	}
	return append(opts, mail.WithPort(cfg.Port), mail.WithTLSPolicy(mail.TLSMandatory))
}

func sendSMTP(ctx context.Context, cfg datatypes.SMTPConfig, msg *mail.Msg) error {
	client, err := mail.NewClient(cfg.Host, clientOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send order email: %w", err)
	}
	return nil
}
