// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/OCAP2/arena/internal/config"
	"github.com/OCAP2/arena/internal/storage/memory"
)

// NewBackend creates the storage backends that need nothing beyond their
// configuration. Backends with connections are built by the command that owns them.
func NewBackend(cfg config.StorageConfig) (Backend, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(cfg.Memory), nil
	case "", "none":
		return Nop{}, nil
	case "sqlite", "postgres", "influx", "websocket":
		return nil, fmt.Errorf("storage type %q needs a connection, build it with its own package", cfg.Type)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
