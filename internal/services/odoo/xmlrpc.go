package odoo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/url"
	"strings"
	stdsync "sync"

	"github.com/kolo/xmlrpc"
	"github.com/xelth-com/parcprepgo/internal/models"
	"github.com/xelth-com/parcprepgo/internal/sync"
)

// XMLRPCSink calls model.method(body) through execute_kw
type XMLRPCSink struct {
	client *Client
	model  string
	method string

	mu stdsync.Mutex
}

// NewXMLRPCSink creates a sink; authentication happens on first push
func NewXMLRPCSink(client *Client, model, method string) *XMLRPCSink {
	return &XMLRPCSink{client: client, model: model, method: method}
}

// Name implements sync.Sink
func (s *XMLRPCSink) Name() string { return "odoo-xmlrpc" }

// Push implements sync.Sink
func (s *XMLRPCSink) Push(ctx context.Context, body *sync.SyncBody) (*sync.Ack, error) {
	if err := s.ensureAuth(ctx); err != nil {
		return nil, err
	}

	var result interface{}
	if err := s.client.ExecuteKw(ctx, s.model, s.method, []interface{}{*body}, nil, &result); err != nil {
		return nil, classifyXMLRPC(ctx, err)
	}
	return decodeXMLRPCAck(result)
}

func (s *XMLRPCSink) ensureAuth(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client.Uid != 0 {
		return nil
	}
	if _, err := s.client.Authenticate(ctx); err != nil {
		return classifyXMLRPC(ctx, err)
	}
	return nil
}

// classifyXMLRPC separates unreachable endpoints from answers we cannot use
func classifyXMLRPC(ctx context.Context, err error) error {
	var urlErr *url.Error
	var netErr net.Error
	var fault xmlrpc.FaultError
	var serverErr rpc.ServerError

	switch {
	case ctx.Err() != nil, errors.As(err, &urlErr), errors.As(err, &netErr):
		return fmt.Errorf("%w: %v", sync.ErrSyncTransport, err)
	case errors.As(err, &fault), errors.As(err, &serverErr):
		return fmt.Errorf("%w: %v", sync.ErrSyncProtocol, err)
	case strings.Contains(err.Error(), "bad status code"):
		return fmt.Errorf("%w: %v", sync.ErrSyncTransport, err)
	}
	return fmt.Errorf("%w: %v", sync.ErrSyncProtocol, err)
}

// decodeXMLRPCAck reads a result struct or a bare boolean
func decodeXMLRPCAck(result interface{}) (*sync.Ack, error) {
	switch v := result.(type) {
	case bool:
		return &sync.Ack{Success: v}, nil
	case map[string]interface{}:
		ack := &sync.Ack{}
		success, ok := v["success"].(bool)
		if !ok {
			return nil, fmt.Errorf("%w: acknowledgment without success flag", sync.ErrSyncProtocol)
		}
		ack.Success = success
		if d, ok := models.OdooStringFromXMLRPC(v["sync_date"]); ok {
			ack.SyncDate = d
		}
		if m, ok := models.OdooStringFromXMLRPC(v["message"]); ok {
			ack.Message = m
		}
		if id, ok := toInt64(v["id"]); ok {
			ack.RemoteID = id
		}
		return ack, nil
	}
	return nil, fmt.Errorf("%w: unexpected acknowledgment %T", sync.ErrSyncProtocol, result)
}
