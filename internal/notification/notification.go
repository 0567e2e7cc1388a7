// Package notification fans scanner alerts out to chat providers.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifySetup       NotificationType = "setup"
	NotifySetupUpdate NotificationType = "setup_update"
	NotifyScanDone    NotificationType = "scan_done"
	NotifyError       NotificationType = "error"
)

// Notification represents a notification message
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Symbol    string
	Price     float64
	Timestamp time.Time
	Extra     map[string]interface{}
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager manages multiple notification providers
type Manager struct {
	notifiers []Notifier
	enabled   bool
}

// NewManager creates a new notification manager
func NewManager() *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   true,
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(notification *Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(notification); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendSetup announces a freshly detected setup with its level set
func (m *Manager) SendSetup(symbol, strategyName, direction, timeframe string, entry, stop, tp1, rr float64) error {
	emoji := "🟢"
	if direction == "short" {
		emoji = "🔴"
	}

	return m.Send(&Notification{
		Type:  NotifySetup,
		Title: fmt.Sprintf("%s Setup: %s", emoji, symbol),
		Message: fmt.Sprintf("%s %s (%s, %s)\nEntry: %.6f\nSL: %.6f | TP1: %.6f\nR:R %.2f",
			strategyName, symbol, strings.ToUpper(direction), timeframe, entry, stop, tp1, rr),
		Symbol:    symbol,
		Price:     entry,
		Timestamp: time.Now(),
		Extra: map[string]interface{}{
			"strategy":  strategyName,
			"direction": direction,
			"timeframe": timeframe,
		},
	})
}

// SendSetupUpdate reports a lifecycle transition on an existing setup
func (m *Manager) SendSetupUpdate(symbol, strategyName, event string, price float64) error {
	return m.Send(&Notification{
		Type:      NotifySetupUpdate,
		Title:     fmt.Sprintf("📊 %s: %s", event, symbol),
		Message:   fmt.Sprintf("%s %s at %.6f", strategyName, event, price),
		Symbol:    symbol,
		Price:     price,
		Timestamp: time.Now(),
	})
}

// SendScanSummary reports a finished scan run
func (m *Manager) SendScanSummary(status string, assetsScanned, setupsFound, errCount int) error {
	return m.Send(&Notification{
		Type:  NotifyScanDone,
		Title: fmt.Sprintf("🔎 Scan %s", status),
		Message: fmt.Sprintf("Assets scanned: %d\nSetups found: %d\nErrors: %d",
			assetsScanned, setupsFound, errCount),
		Timestamp: time.Now(),
	})
}

// SendError sends an error notification
func (m *Manager) SendError(title, message string) error {
	return m.Send(&Notification{
		Type:      NotifyError,
		Title:     fmt.Sprintf("⚠️ %s", title),
		Message:   message,
		Timestamp: time.Now(),
	})
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
	Enabled  bool   `json:"enabled"`
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(notification *Notification) error {
	if !t.enabled {
		return nil
	}

	message := fmt.Sprintf("*%s*\n\n%s", notification.Title, notification.Message)

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}
