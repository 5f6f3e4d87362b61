// Package tlmt defines the product telemetry events emitted for integration
// connects and media ingest runs.
package tlmt

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/google/uuid"
)

var (
	once       sync.Once
	identifier machineIdentifier
)

type Event struct {
	AnonymousID string
	Name        string
	Properties  map[string]any
}

func NewEvent(name string, props map[string]any) Event {
	id := instanceID()

	// Each event gets its own properties map so caller props never leak
	// into the shared machine metadata.
	properties := make(map[string]any, len(id.meta)+len(props))
	for k, v := range id.meta {
		properties[k] = v
	}

	for k, v := range props {
		properties[k] = v
	}

	return Event{
		AnonymousID: id.id,
		Name:        name,
		Properties:  properties,
	}
}

type Telemetry interface {
	Send(ctx context.Context, event Event) error
	Close() error
}

type machineIdentifier struct {
	id   string
	meta map[string]any
}

// instanceID derives a stable anonymous id for this server instance from the
// hostname and runtime. No network calls are made.
func instanceID() machineIdentifier {
	once.Do(func() {
		hostname, err := os.Hostname()
		if err != nil || hostname == "" {
			hostname = uuid.New().String()
		}

		hash := sha256.New()
		hash.Write([]byte(hostname))
		hash.Write([]byte(runtime.GOARCH))
		hash.Write([]byte(runtime.GOOS))
		hash.Write([]byte(runtime.Version()))

		identifier.id = fmt.Sprintf("%x", hash.Sum(nil))
		identifier.meta = map[string]any{
			"os":   runtime.GOOS,
			"arch": runtime.GOARCH,
		}
	})

	return identifier
}
