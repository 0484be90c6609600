// Package chat предоставляет клиент для внешнего генеративного текстового API.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FallbackReply возвращается гостю при любой ошибке внешнего сервиса.
// Сбой чата не фатален и не ретраится.
const FallbackReply = "I apologize, but I'm having trouble connecting right now. " +
	"Please try again later or contact our support team."

const promptTemplate = `You are a helpful assistant for Kuriftu Hotel. A guest has asked: %q. ` +
	`Please provide a helpful response focusing on hotel services, bookings, amenities, and local attractions. ` +
	`Keep your response concise and limit it to about 100 words maximum.`

// Client инкапсулирует HTTP-взаимодействие с генеративным API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт клиент генеративного API по указанному адресу.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Reply отправляет вопрос гостя и возвращает ответ ассистента.
// Запрос привязан к контексту вызывающего: уход гостя со страницы отменяет его.
func (c *Client) Reply(ctx context.Context, question string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("chat client not configured")
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{
			Parts: []part{{Text: fmt.Sprintf(promptTemplate, question)}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/v1beta/models/gemini-2.0-flash:generateContent"
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response")
	}

	return result.Candidates[0].Content.Parts[0].Text, nil
}
