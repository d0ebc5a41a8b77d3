package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"team-engagement-system/utils"
)

// PushResult is the provider's per-call outcome. InvalidTokens carries
// provider-reported dead registrations so the caller can prune them.
type PushResult struct {
	SuccessCount  int      `json:"success_count"`
	FailureCount  int      `json:"failure_count"`
	InvalidTokens []string `json:"invalid_tokens"`
}

// PushSender is the outbound push contract the dispatcher depends on.
type PushSender interface {
	SendPush(tokens []string, title, body string, data map[string]string, link string) (*PushResult, error)
}

// PushGatewayClient delivers pushes through the platform's push gateway.
type PushGatewayClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewPushGatewayClient(baseURL, token string) *PushGatewayClient {
	return &PushGatewayClient{
		BaseURL: baseURL,
		Token:   token,
		Client:  utils.HTTPClient,
	}
}

// SendPush calls /push/send on the gateway with every registered token. The
// call counts as successful when at least one token accepted.
func (c *PushGatewayClient) SendPush(tokens []string, title, body string, data map[string]string, link string) (*PushResult, error) {
	url := fmt.Sprintf("%s/push/send", c.BaseURL)

	reqBody := map[string]interface{}{
		"tokens": tokens,
		"title":  title,
		"body":   body,
		"data":   data,
		"link":   link,
	}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Printf("PushGateway /push/send returned %d: %s", resp.StatusCode, string(respBody))
		return nil, fmt.Errorf("push gateway returned %d", resp.StatusCode)
	}

	var out PushResult
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
