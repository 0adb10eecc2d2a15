package consul

import (
	"fmt"
	"log/slog"

	consulapi "github.com/hashicorp/consul/api"
)

// ServiceConfig contains configuration for service registration
type ServiceConfig struct {
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string
	Check   *HealthCheck
}

// HealthCheck defines health check configuration
type HealthCheck struct {
	HTTP     string
	Interval string
	Timeout  string
	// DeregisterAfter removes a service whose check stays critical this long
	DeregisterAfter string
}

// ServiceRegistrar defines the interface for service registration
type ServiceRegistrar interface {
	Register(cfg *ServiceConfig) error
	Deregister(serviceID string) error
}

// NewServiceConfig describes an HTTP service checked through /health
func NewServiceConfig(name, host string, port int, tags ...string) *ServiceConfig {
	return &ServiceConfig{
		// static id so restarts replace the previous registration
		ID:      fmt.Sprintf("%s-%s", name, host),
		Name:    name,
		Address: host,
		Port:    port,
		Tags:    tags,
		Check: &HealthCheck{
			HTTP:            fmt.Sprintf("http://%s:%d/health", host, port),
			Interval:        "10s",
			Timeout:         "3s",
			DeregisterAfter: "1m",
		},
	}
}

func (cfg *ServiceConfig) registration() *consulapi.AgentServiceRegistration {
	reg := &consulapi.AgentServiceRegistration{
		ID:      cfg.ID,
		Name:    cfg.Name,
		Address: cfg.Address,
		Port:    cfg.Port,
		Tags:    cfg.Tags,
	}

	if cfg.Check != nil {
		reg.Check = &consulapi.AgentServiceCheck{
			HTTP:                           cfg.Check.HTTP,
			Interval:                       cfg.Check.Interval,
			Timeout:                        cfg.Check.Timeout,
			DeregisterCriticalServiceAfter: cfg.Check.DeregisterAfter,
		}
	}
	return reg
}

// Register registers a service with Consul
func (c *Client) Register(cfg *ServiceConfig) error {
	if err := c.api.Agent().ServiceRegister(cfg.registration()); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}
	return nil
}

// Deregister removes a service from Consul
func (c *Client) Deregister(serviceID string) error {
	if err := c.api.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}

// Announce registers svc and returns the function that deregisters it. A
// failed registration is logged and the service keeps running undiscovered.
func Announce(registrar ServiceRegistrar, svc *ServiceConfig, logger *slog.Logger) (deregister func()) {
	// clean up a registration left behind by a crash
	_ = registrar.Deregister(svc.ID)

	if err := registrar.Register(svc); err != nil {
		logger.Error("Failed to register with Consul", "serviceID", svc.ID, "error", err)
		return func() {}
	}
	logger.Info("Registered with Consul", "serviceID", svc.ID)

	return func() {
		if err := registrar.Deregister(svc.ID); err != nil {
			logger.Error("Failed to deregister from Consul", "serviceID", svc.ID, "error", err)
			return
		}
		logger.Info("Deregistered from Consul", "serviceID", svc.ID)
	}
}

// AnnounceFromEnv connects to the agent configured in the environment and
// announces svc. It is a no-op when CONSUL_ENABLED is false.
func AnnounceFromEnv(svc *ServiceConfig, logger *slog.Logger) (deregister func()) {
	cfg := LoadConfig()
	if !cfg.Enabled {
		logger.Info("Consul registration disabled")
		return func() {}
	}

	client, err := NewClientWithToken(cfg.Address, cfg.Token)
	if err != nil {
		logger.Error("Failed to create Consul client", "error", err)
		return func() {}
	}
	return Announce(client, svc, logger)
}
