package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/xelth-com/parcprepgo/internal/sync"
)

// JSONSink posts sync bodies to an Odoo type='json' controller
type JSONSink struct {
	URL        string
	HttpClient *http.Client
}

// NewJSONSink creates a sink for url; a nil client gets a default one
func NewJSONSink(url string, client *http.Client) *JSONSink {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &JSONSink{URL: url, HttpClient: client}
}

type jsonRPCRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  *sync.SyncBody `json:"params"`
	ID      string         `json:"id"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *jsonRPCError   `json:"error"`
}

// Name implements sync.Sink
func (s *JSONSink) Name() string { return "odoo-jsonrpc" }

// Push implements sync.Sink
func (s *JSONSink) Push(ctx context.Context, body *sync.SyncBody) (*sync.Ack, error) {
	payload, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  body,
		ID:      uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sync body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", sync.ErrSyncTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sync.ErrSyncTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", sync.ErrSyncTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d, response: %s", sync.ErrSyncTransport, resp.StatusCode, truncate(raw))
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, fmt.Errorf("%w: not a JSON-RPC response: %v", sync.ErrSyncProtocol, err)
	}
	if rpcResp.Error != nil {
		msg := rpcResp.Error.Data.Message
		if msg == "" {
			msg = rpcResp.Error.Message
		}
		return nil, fmt.Errorf("%w: odoo error %d: %s", sync.ErrSyncProtocol, rpcResp.Error.Code, msg)
	}

	return decodeJSONAck(rpcResp.Result)
}

// decodeJSONAck accepts a result dict or a bare boolean
func decodeJSONAck(result json.RawMessage) (*sync.Ack, error) {
	if len(result) == 0 || string(result) == "null" {
		return nil, fmt.Errorf("%w: missing result", sync.ErrSyncProtocol)
	}

	var ok bool
	if err := json.Unmarshal(result, &ok); err == nil {
		return &sync.Ack{Success: ok}, nil
	}

	var ack sync.Ack
	if err := json.Unmarshal(result, &ack); err != nil {
		return nil, fmt.Errorf("%w: malformed acknowledgment: %v", sync.ErrSyncProtocol, err)
	}
	return &ack, nil
}

func truncate(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
