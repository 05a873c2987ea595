// Package telegram sends operation notifications to a Telegram channel.
package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ety001/steem-account-watcher/internal/models"
)

// Client represents a Telegram bot client
type Client struct {
	botToken   string
	channelID  string
	httpClient *http.Client
	apiURL     string
}

// NewClient creates a new Telegram bot client
func NewClient(botToken, channelID string) *Client {
	return &Client{
		botToken:  botToken,
		channelID: channelID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		apiURL: "https://api.telegram.org",
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// NotifyOperation formats and sends a message for a freshly recorded
// operation.
func (c *Client) NotifyOperation(op *models.AccountOperation) error {
	return c.SendMessage(formatOperation(op))
}

// SendMessage sends a message to the configured Telegram channel
func (c *Client) SendMessage(text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiURL, c.botToken)

	req := sendMessageRequest{
		ChatID:    c.channelID,
		Text:      text,
		ParseMode: "HTML",
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var tgResp apiResponse
	if err := json.Unmarshal(body, &tgResp); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !tgResp.OK {
		return fmt.Errorf("telegram API error: %s", tgResp.Description)
	}

	return nil
}

func formatOperation(op *models.AccountOperation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<b>🔔 New Operation</b>\n\n")
	fmt.Fprintf(&b, "<b>Account:</b> <code>%s</code>\n", op.Account)
	fmt.Fprintf(&b, "<b>Type:</b> <code>%s</code>\n", op.OpType)
	fmt.Fprintf(&b, "<b>Block:</b> <code>%d</code>\n", op.BlockNum)
	fmt.Fprintf(&b, "<b>Time:</b> <code>%s</code>\n\n", op.Timestamp.Format("2006-01-02 15:04:05 UTC"))

	b.WriteString("<b>Details:</b>\n")
	for key, value := range op.OpData {
		if key == "memo" || key == "json_metadata" {
			continue
		}
		valueStr := fmt.Sprintf("%v", value)
		if len(valueStr) > 100 {
			valueStr = valueStr[:100] + "..."
		}
		fmt.Fprintf(&b, "  • <b>%s:</b> <code>%s</code>\n", key, escapeHTML(valueStr))
	}

	return b.String()
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
