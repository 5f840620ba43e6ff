package workflow

import (
	"context"
	"fmt"
	"strings"

	"clipdraft/internal/logging"
	"clipdraft/internal/services"
	"clipdraft/internal/services/gateway"
)

func gatewaySettingKey(name string) string {
	return "gateway." + name + ".base_url"
}

// GatewayURLs returns the base URL each gateway will use on its next call.
func (m *Manager) GatewayURLs() map[string]string {
	return m.endpoints.Snapshot()
}

// SetGatewayURL changes a gateway's base URL at runtime and persists it. An
// empty value removes the override and restores the configured default.
func (m *Manager) SetGatewayURL(ctx context.Context, name, value string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if !gateway.Known(name) {
		return fmt.Errorf("%w: unknown gateway %q", services.ErrNotFound, name)
	}
	value = strings.TrimSpace(value)
	if value != "" {
		normalized, err := gateway.ValidateURL(value)
		if err != nil {
			return err
		}
		value = strings.TrimRight(normalized, "/")
	}
	if err := m.store.SetSetting(ctx, gatewaySettingKey(name), value); err != nil {
		return err
	}
	effective := value
	if effective == "" {
		effective = m.configuredGatewayURL(name)
	}
	if err := m.endpoints.Set(name, effective); err != nil {
		return err
	}
	m.logger.Info("gateway url updated",
		logging.String("gateway", name),
		logging.String("base_url", effective),
		logging.Bool("override", value != ""),
		logging.String(logging.FieldEventType, "gateway_url_updated"),
	)
	return nil
}

func (m *Manager) configuredGatewayURL(name string) string {
	switch name {
	case gateway.Transcription:
		return m.cfg.Transcription.BaseURL
	case gateway.Research:
		return m.cfg.Research.BaseURL
	default:
		return ""
	}
}

// loadGatewaySettings applies URLs persisted by earlier SetGatewayURL calls.
func (m *Manager) loadGatewaySettings(ctx context.Context) error {
	for _, name := range gateway.Names() {
		value, ok, err := m.store.Setting(ctx, gatewaySettingKey(name))
		if err != nil {
			return err
		}
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if err := m.endpoints.Set(name, value); err != nil {
			return err
		}
		m.logger.Debug("gateway url restored", logging.String("gateway", name), logging.String("base_url", value))
	}
	return nil
}
