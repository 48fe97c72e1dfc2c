package consul

import (
	"fmt"
	"os"

	consulapi "github.com/hashicorp/consul/api"
)

// NewClient connects to the consul agent named by CONSUL_HTTP_ADDR,
// falling back to the client default (localhost:8500).
func NewClient() (*consulapi.Client, error) {
	config := consulapi.DefaultConfig()
	if addr := os.Getenv("CONSUL_HTTP_ADDR"); addr != "" {
		config.Address = addr
	}
	client, err := consulapi.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return client, nil
}

// GetServiceAddress resolves a healthy instance of the named service.
func GetServiceAddress(client *consulapi.Client, serviceName string) (string, int, error) {
	if client == nil {
		return "", 0, fmt.Errorf("consul client is nil")
	}

	services, _, err := client.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to query service %q: %w", serviceName, err)
	}
	if len(services) == 0 {
		return "", 0, fmt.Errorf("no healthy instances of service %q", serviceName)
	}

	svc := services[0].Service
	address := svc.Address
	if address == "" {
		address = services[0].Node.Address
	}
	return address, svc.Port, nil
}
