package sandboxgw

import (
	"context"
	"fmt"
)

// Driver selects which Gateway implementation New builds.
type Driver string

const (
	// DriverHTTP is the default: a remote sandbox gateway reached over
	// HTTP/JSON-RPC. The sandbox runtime itself lives outside this process
	// (spec §1 non-goal).
	DriverHTTP Driver = "http"
	// DriverFirecracker drives a single Firecracker microVM directly via
	// vsock, for the reference deployment described in spec §4.13.
	DriverFirecracker Driver = "firecracker"
)

// Config selects a driver and carries both drivers' settings; only the
// selected driver's fields are read.
type Config struct {
	Driver      Driver
	HTTP        HTTPConfig
	Firecracker FirecrackerConfig
}

// New builds the Gateway named by cfg.Driver, defaulting to DriverHTTP when
// unset.
func New(ctx context.Context, cfg Config) (Gateway, error) {
	switch cfg.Driver {
	case "", DriverHTTP:
		return NewHTTPGateway(cfg.HTTP)
	case DriverFirecracker:
		return NewFirecrackerGateway(ctx, cfg.Firecracker)
	default:
		return nil, fmt.Errorf("sandboxgw: unknown driver %q", cfg.Driver)
	}
}
