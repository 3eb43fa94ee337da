package odoo

import (
	"context"
	"fmt"
	"net/http"
	"reflect"

	"github.com/kolo/xmlrpc"
)

// Client represents an Odoo XML-RPC client
type Client struct {
	URL       string
	Database  string
	Username  string
	Password  string
	Uid       int
	CommonURL string
	ObjectURL string
	Transport http.RoundTripper
}

// NewClient creates a new Odoo client
func NewClient(url, db, username, password string) *Client {
	return &Client{
		URL:       url,
		Database:  db,
		Username:  username,
		Password:  password,
		CommonURL: fmt.Sprintf("%s/xmlrpc/2/common", url),
		ObjectURL: fmt.Sprintf("%s/xmlrpc/2/object", url),
		Transport: http.DefaultTransport,
	}
}

// ctxTransport binds every request of one call to ctx
type ctxTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

func (c *Client) call(ctx context.Context, url, method string, args []interface{}, reply interface{}) error {
	client, err := xmlrpc.NewClient(url, ctxTransport{ctx: ctx, base: c.Transport})
	if err != nil {
		return fmt.Errorf("failed to create XML-RPC client: %w", err)
	}
	defer client.Close()

	return client.Call(method, args, reply)
}

// Authenticate authenticates with Odoo and returns the user ID
func (c *Client) Authenticate(ctx context.Context) (int, error) {
	args := []interface{}{c.Database, c.Username, c.Password, make(map[string]interface{})}

	var raw interface{}
	if err := c.call(ctx, c.CommonURL, "authenticate", args, &raw); err != nil {
		return 0, fmt.Errorf("authentication failed: %w", err)
	}

	// Odoo answers false for bad credentials
	uid, ok := toInt64(raw)
	if !ok || uid == 0 {
		return 0, fmt.Errorf("authentication failed: invalid credentials for %s", c.Username)
	}

	c.Uid = int(uid)
	return c.Uid, nil
}

// ExecuteKw calls a model method through /xmlrpc/2/object
func (c *Client) ExecuteKw(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}, reply interface{}) error {
	params := []interface{}{
		c.Database,
		c.Uid,
		c.Password,
		model,
		method,
		args,
	}
	if kwargs != nil {
		params = append(params, kwargs)
	}

	if err := c.call(ctx, c.ObjectURL, "execute_kw", params, reply); err != nil {
		return fmt.Errorf("failed to call %s.%s: %w", model, method, err)
	}
	return nil
}

// Helper function to convert interface{} to specific types safely
func toInt64(v interface{}) (int64, bool) {
	if v == nil {
		return 0, false
	}
	val := reflect.ValueOf(v)
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return val.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(val.Uint()), true
	case reflect.Float32, reflect.Float64:
		return int64(val.Float()), true
	}
	return 0, false
}
