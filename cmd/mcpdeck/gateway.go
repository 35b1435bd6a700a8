package main

import (
	"context"
	"fmt"

	"mcpdeck/internal/config"
	"mcpdeck/internal/mcp"
)

// gatewaySession is an initialized connection to one gateway.
type gatewaySession struct {
	name   string
	client *mcp.Client
}

// connectGateway picks the named gateway (or the first configured one) and
// performs the MCP handshake.
func connectGateway(ctx context.Context, cfg *config.Config, name string) (*gatewaySession, error) {
	var gw *mcp.GatewayConfig
	var err error

	switch {
	case name != "":
		gw, err = cfg.Gateway(name)
		if err != nil {
			return nil, err
		}
	case len(cfg.Gateways) > 0:
		gw = cfg.Gateways[0]
	default:
		return nil, fmt.Errorf("no gateways configured: add one to %s", config.ConfigPath())
	}

	client, err := mcp.NewClient(gw)
	if err != nil {
		return nil, err
	}
	if err := client.Initialize(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to gateway %s: %w", gw.Name, err)
	}

	return &gatewaySession{name: gw.Name, client: client}, nil
}

// Close shuts down the session.
func (s *gatewaySession) Close() {
	s.client.Close()
}
