// Пакет engine — HTTP-клиент диалогового движка.
// Поддерживает TLS с кастомным CA (TP_ENGINE_CA_CERT_PATH).
// Операция: Ask (POST /api/v1/chat) — передать сообщение и получить ответ.
package engine

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// ChatRequest — тело запроса POST /api/v1/chat.
type ChatRequest struct {
	UserID int64  `json:"user_id"`
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// ChatResponse — ответ движка.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// Client — HTTP-клиент диалогового движка.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// New создаёт клиент движка.
// caCertPath — путь к CA-сертификату для TLS (пустая строка — стандартный пул).
func New(baseURL string, timeout time.Duration, caCertPath string, logger *slog.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: timeout}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата движка: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
		logger.Info("CA-сертификат движка добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.With(slog.String("component", "engine_client")),
	}, nil
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{
		RootCAs: caCertPool,
	}, nil
}

// Ask передаёт сообщение движку и возвращает текст ответа.
// POST /api/v1/chat.
func (c *Client) Ask(ctx context.Context, userID, chatID int64, text string) (string, error) {
	body, err := json.Marshal(ChatRequest{
		UserID: userID,
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return "", fmt.Errorf("сериализация запроса к движку: %w", err)
	}

	reqURL := c.baseURL + "/api/v1/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("создание запроса к движку: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("запрос к движку %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("движок вернул статус %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("декодирование ответа движка: %w", err)
	}

	return chatResp.Reply, nil
}
