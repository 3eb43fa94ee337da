package odoo

import (
	"fmt"
	"log"

	"github.com/xelth-com/parcprepgo/internal/config"
	"github.com/xelth-com/parcprepgo/internal/sync"
)

// NewSink builds the push transport selected by ODOO_SYNC_TRANSPORT
func NewSink(cfg config.OdooConfig) (sync.Sink, error) {
	switch cfg.Transport {
	case config.TransportXMLRPC:
		if cfg.URL == "" {
			return nil, fmt.Errorf("xmlrpc sink: ODOO_URL is required")
		}
		log.Printf("📡 Odoo sink: XML-RPC %s.%s on %s", cfg.Model, cfg.Method, cfg.URL)
		return NewXMLRPCSink(NewClient(cfg.URL, cfg.Database, cfg.Username, cfg.Password), cfg.Model, cfg.Method), nil
	default:
		if cfg.SyncURL == "" {
			return nil, fmt.Errorf("jsonrpc sink: ODOO_SYNC_URL is required")
		}
		log.Printf("📡 Odoo sink: JSON-RPC %s", cfg.SyncURL)
		return NewJSONSink(cfg.SyncURL, nil), nil
	}
}
