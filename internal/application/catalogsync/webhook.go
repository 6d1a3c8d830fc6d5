package catalogsync

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"go.uber.org/zap"
)

// EnsureWebhook registers a delivery callback for targetURL unless one
// already exists. Matching ignores a trailing slash.
func (s *Service) EnsureWebhook(ctx context.Context, targetURL string) (*catalogsync.WebhookRegistration, error) {
	ctx, span := s.tracer.Start(ctx, "catalogsync.EnsureWebhook")
	defer span.End()

	target, err := normalizeDeliveryURL(targetURL)
	if err != nil {
		return nil, err
	}
	if s.config.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: shared secret not configured", catalogsync.ErrWebhookInvalid)
	}
	if err := s.gate(ctx, "ensure_webhook"); err != nil {
		span.RecordError(err)
		return nil, err
	}

	existing, err := s.platform.ListWebhooks(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	for _, w := range existing {
		if sameDeliveryURL(w.DeliveryURL, target) {
			s.logger.Debug("webhook already registered",
				zap.Int64("webhook_id", w.ID),
				zap.String("delivery_url", target),
			)
			return &catalogsync.WebhookRegistration{Registered: true, WebhookID: w.ID}, nil
		}
	}

	created, err := s.platform.CreateWebhook(ctx, catalogsync.Webhook{
		Name:        s.config.WebhookName,
		Status:      "active",
		Topic:       s.config.WebhookTopic,
		DeliveryURL: target,
		Secret:      s.config.WebhookSecret,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create webhook: %w", err)
	}
	s.logger.Info("webhook registered",
		zap.Int64("webhook_id", created.ID),
		zap.String("topic", s.config.WebhookTopic),
		zap.String("delivery_url", target),
	)
	return &catalogsync.WebhookRegistration{Registered: true, WebhookID: created.ID, Created: true}, nil
}

func normalizeDeliveryURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: delivery url %q", catalogsync.ErrWebhookInvalid, raw)
	}
	return raw, nil
}

func sameDeliveryURL(a, b string) bool {
	return strings.TrimRight(strings.TrimSpace(a), "/") == strings.TrimRight(strings.TrimSpace(b), "/")
}
