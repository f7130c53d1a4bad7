package lima

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rickgao/cognitive-hub/internal/session"
)

// TransactionRequest is the body of POST /transaction.
type TransactionRequest struct {
	ClientID    string         `json:"clientId"`
	SessionID   string         `json:"sessionId"`
	Input       string         `json:"input"`
	InputData   map[string]any `json:"inputData"`
	Type        string         `json:"type"`
	ServiceType string         `json:"serviceType"`
	AppName     string         `json:"appName"`
	UserID      string         `json:"userId"`
	Environment string         `json:"environment"`
}

type transactionResponse struct {
	Response struct {
		SessionID string `json:"sessionId"`
	} `json:"response"`
}

// Transaction authenticates and posts one transaction, returning the raw
// response body.
func (c *Client) Transaction(ctx context.Context, req TransactionRequest) (json.RawMessage, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.doWithRetry(ctx, c.baseURL+"/transaction", req, token)
	if err != nil {
		return nil, fmt.Errorf("lima transaction: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("lima transaction: invalid json response")
	}
	return body, nil
}

// Understand implements session.NLUProvider.
func (c *Client) Understand(ctx context.Context, req session.NLURequest) (session.NLUResponse, error) {
	raw, err := c.Transaction(ctx, TransactionRequest{
		ClientID:    c.clientID,
		SessionID:   req.SessionID,
		Input:       req.Input,
		InputData:   map[string]any{},
		Type:        "device",
		ServiceType: c.serviceType,
		AppName:     c.appName,
		UserID:      req.UserID,
		Environment: c.environment,
	})
	if err != nil {
		return session.NLUResponse{}, err
	}

	var parsed transactionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return session.NLUResponse{}, fmt.Errorf("unmarshal transaction response: %w", err)
	}

	return session.NLUResponse{
		SessionID: parsed.Response.SessionID,
		Raw:       raw,
	}, nil
}

var _ session.NLUProvider = (*Client)(nil)
