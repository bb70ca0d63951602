// Package summarizer は投稿本文から構造化サマリーとタグを生成するAI連携を提供する。
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

const (
	// DefaultEndpoint はGemini APIのベースURL。
	DefaultEndpoint = "https://generativelanguage.googleapis.com"
	// DefaultModel は使用するGeminiモデル名。
	DefaultModel = "gemini-2.5-flash"
	// maxResponseBytes はプロバイダー応答の最大読み取りサイズ。
	maxResponseBytes = 2 << 20
)

// ErrEmptyResponse はプロバイダーの応答に生成テキストが含まれないことを示す。
var ErrEmptyResponse = errors.New("provider returned no text")

// generateRequest はgenerateContentのリクエストボディ。
type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

// generateResponse はgenerateContentのレスポンスのうち使用する部分。
type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Client はGemini generateContent REST APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	model      string
	apiKey     string
}

// NewClient はClientの新しいインスタンスを生成する。
// endpointとmodelが空の場合はデフォルト値を使用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint, model, apiKey string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		model:      model,
		apiKey:     apiKey,
	}
}

// Configured はAPIキーが設定されているかを返す。
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Generate はプロンプトを送信し、最初の候補の生成テキストを返す。
// 1回のリクエストのみを行い、再試行はしない。
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	reqURL, err := url.JoinPath(c.endpoint, "v1beta", "models", c.model+":generateContent")
	if err != nil {
		return "", fmt.Errorf("エンドポイントURLの構築に失敗しました: %w", err)
	}

	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
	})
	if err != nil {
		return "", fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("AIプロバイダーの呼び出しに失敗しました",
			slog.String("model", c.model),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result generateResponse
	decodeErr := json.Unmarshal(raw, &result)

	if resp.StatusCode != http.StatusOK {
		msg := ""
		if decodeErr == nil && result.Error != nil {
			msg = result.Error.Message
		}
		c.logger.Error("AIプロバイダーがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("model", c.model),
			slog.String("provider_message", msg),
		)
		return "", fmt.Errorf("AIプロバイダーがステータス %d を返しました", resp.StatusCode)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", decodeErr)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var text string
	for _, p := range result.Candidates[0].Content.Parts {
		text += p.Text
	}
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
