// Package consul registers the emochat services with HashiCorp Consul so they
// can be discovered and health checked.
package consul

import (
	consulapi "github.com/hashicorp/consul/api"

	"emochat/internal/config"
)

// Client wraps the Consul API client
type Client struct {
	api *consulapi.Client
}

// Config holds agent connection settings
type Config struct {
	Enabled bool
	Address string
	Token   string
}

// LoadConfig reads CONSUL_ENABLED, CONSUL_HTTP_ADDR and CONSUL_HTTP_TOKEN
func LoadConfig() *Config {
	return &Config{
		Enabled: config.GetEnvBool("CONSUL_ENABLED", true),
		Address: config.GetEnvOrDefault("CONSUL_HTTP_ADDR", "localhost:8500"),
		Token:   config.GetEnvOrDefault("CONSUL_HTTP_TOKEN", ""),
	}
}

// NewClientWithToken creates a new Consul client with ACL token authentication
func NewClientWithToken(addr, token string) (*Client, error) {
	cfg := consulapi.DefaultConfig()
	cfg.Address = addr

	if token != "" {
		cfg.Token = token
	}

	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{api: client}, nil
}

// API returns the underlying Consul API client
func (c *Client) API() *consulapi.Client {
	return c.api
}
