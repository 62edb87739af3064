//go:build !linux

package sandboxgw

import (
	"context"
	"errors"
)

// ErrFirecrackerUnsupported is returned on non-Linux platforms, mirroring
// internal/tools/sandbox/firecracker/stub_other.go's ErrNotSupported.
var ErrFirecrackerUnsupported = errors.New("sandboxgw: firecracker driver is only supported on linux")

// FirecrackerConfig is declared here too so callers can reference it from
// config files that build on every platform.
type FirecrackerConfig struct {
	KernelPath string
	RootFSPath string
	VCPUs      int64
	MemSizeMB  int64
	VsockCID   uint32
	SocketPath string
}

// DefaultFirecrackerConfig mirrors the linux build's defaults.
func DefaultFirecrackerConfig() FirecrackerConfig {
	return FirecrackerConfig{VCPUs: 1, MemSizeMB: 512, VsockCID: 3}
}

// NewFirecrackerGateway always fails on non-Linux platforms.
func NewFirecrackerGateway(ctx context.Context, cfg FirecrackerConfig) (Gateway, error) {
	return nil, ErrFirecrackerUnsupported
}
