package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type newIPAlert struct {
	UserID     int64  `json:"user_id"`
	NewIP      string `json:"new_ip"`
	PreviousIP string `json:"previous_ip"`
	DetectedAt string `json:"detected_at"`
}

// NotifyWebhook отправляет POST-запрос о попытке обновления токенов
// с нового IP-адреса
func NotifyWebhook(webhookURL string, userID int64, newIP, previousIP string) error {
	payload := newIPAlert{
		UserID:     userID,
		NewIP:      newIP,
		PreviousIP: previousIP,
		DetectedAt: time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации уведомления: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ошибка отправки webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook ответил статусом %d", resp.StatusCode)
	}
	return nil
}
