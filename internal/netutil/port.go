package netutil

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"sync"
	"time"
)

// Local port range for port-forward tunnels. The Linux ephemeral port range
// starts at 32768; staying below it avoids colliding with ports the kernel
// hands out to outgoing connections, while the 5000 floor keeps clear of
// well-known service ports.
const (
	PortRangeMin = 5000
	PortRangeMax = 30000
)

// maxPickRetries is the maximum number of attempts to find a port not already
// in the registry. This guards against pathological cases.
const maxPickRetries = 20

// PortRegistry tracks local ports currently reserved by this process so that
// two concurrent port-forward sessions never pick the same port. Reservation
// is in-process only; the kernel-level availability of a picked port is
// verified by the session's connect probe after the forwarder starts.
type PortRegistry struct {
	mu    sync.Mutex
	ports map[int]struct{}
	log   *slog.Logger
}

// NewPortRegistry creates a new PortRegistry ready for use.
// If logger is nil, slog.Default() is used as a fallback.
func NewPortRegistry(logger *slog.Logger) *PortRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortRegistry{
		ports: make(map[int]struct{}),
		log:   logger,
	}
}

// reserve attempts to register a port in the registry.
// Returns true if the port was successfully reserved, false if already taken.
func (r *PortRegistry) reserve(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ports[port]; ok {
		return false
	}
	r.ports[port] = struct{}{}
	return true
}

// Release removes a port from the registry, allowing it to be reused.
func (r *PortRegistry) Release(port int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ports, port)
}

// Reserve registers a caller-chosen fixed port. Returns an error if the port
// is already reserved by another session in this process.
func (r *PortRegistry) Reserve(port int) error {
	if !r.reserve(port) {
		return fmt.Errorf("port %d already reserved in this process", port)
	}
	return nil
}

// PickRandom reserves and returns a pseudo-random port in
// [PortRangeMin, PortRangeMax). Callers must call Release when the port is no
// longer needed. Returns an error only when maxPickRetries consecutive picks
// collide with existing reservations, which indicates the registry is
// pathologically full.
func (r *PortRegistry) PickRandom() (int, error) {
	for range maxPickRetries {
		port := PortRangeMin + rand.IntN(PortRangeMax-PortRangeMin)
		if r.reserve(port) {
			return port, nil
		}
		r.log.Debug("port already reserved, retrying", "port", port)
	}
	return 0, fmt.Errorf("pick unique port: exhausted %d attempts", maxPickRetries)
}

// Probe performs a raw TCP connect to 127.0.0.1:port with the given timeout,
// returning nil when the port accepts connections. The connection is closed
// immediately; no data is exchanged.
func Probe(port int, timeout time.Duration) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	_ = conn.Close() // best-effort close of probe connection
	return nil
}
