package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// TokenizerClient exposes the llama.cpp server's /tokenize and /detokenize
// endpoints. They encode and decode against the embedding model's own
// vocabulary, so chunk windows align with what the model actually embeds.
// For a fixed model version the pair is deterministic and inverse-consistent,
// which the chunker relies on for stable chunk text and dedup hashing.
type TokenizerClient struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

// NewTokenizerClient creates a tokenizer client against the embedding
// server's base URL.
func NewTokenizerClient(baseURL, apiKey string) *TokenizerClient {
	return &TokenizerClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		client:  http.DefaultClient,
	}
}

// TokenizeRequest represents the request payload for /tokenize.
type TokenizeRequest struct {
	Content string `json:"content"`
	// AddSpecial controls BOS/EOS insertion; always false here so windowing
	// over the raw token stream stays exact.
	AddSpecial bool `json:"add_special"`
}

// TokenizeResponse represents the response from /tokenize.
type TokenizeResponse struct {
	Tokens []int32 `json:"tokens"`
}

// DetokenizeRequest represents the request payload for /detokenize.
type DetokenizeRequest struct {
	Tokens []int32 `json:"tokens"`
}

// DetokenizeResponse represents the response from /detokenize.
type DetokenizeResponse struct {
	Content string `json:"content"`
}

// Tokenize encodes text into the model's token-id sequence. There is no
// length cap: long files come back whole, never silently truncated.
func (c *TokenizerClient) Tokenize(ctx context.Context, text string) ([]int32, error) {
	var resp TokenizeResponse
	if err := c.post(ctx, "/tokenize", TokenizeRequest{Content: text}, &resp); err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

// Detokenize decodes a token-id sequence back to text.
func (c *TokenizerClient) Detokenize(ctx context.Context, tokens []int32) (string, error) {
	if len(tokens) == 0 {
		return "", nil
	}
	var resp DetokenizeResponse
	if err := c.post(ctx, "/detokenize", DetokenizeRequest{Tokens: tokens}, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

// post sends a JSON request to the given endpoint and decodes the response.
func (c *TokenizerClient) post(ctx context.Context, path string, payload any, out any) error {
	url := c.BaseURL + path

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
