package netutil

import (
	"net"
	"sync"
	"testing"
	"time"
)

func TestNewPortRegistry(t *testing.T) {
	t.Parallel()

	t.Run("nil logger uses default", func(t *testing.T) {
		r := NewPortRegistry(nil)
		if r == nil {
			t.Fatal("expected non-nil registry")
		}
		if !r.reserve(8080) {
			t.Fatal("expected reserve to succeed on new registry")
		}
		r.Release(8080)
	})
}

func TestPortRegistry_PickRandom(t *testing.T) {
	t.Parallel()

	r := NewPortRegistry(nil)

	seen := make(map[int]bool)
	const picks = 50
	for i := range picks {
		port, err := r.PickRandom()
		if err != nil {
			t.Fatalf("pick %d: PickRandom() error: %v", i, err)
		}
		if port < PortRangeMin || port >= PortRangeMax {
			t.Errorf("pick %d: port %d outside [%d, %d)", i, port, PortRangeMin, PortRangeMax)
		}
		if seen[port] {
			t.Errorf("pick %d: port %d already picked", i, port)
		}
		seen[port] = true
	}

	for port := range seen {
		r.Release(port)
	}
}

func TestPortRegistry_Reserve(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		setup   func(r *PortRegistry)
		port    int
		wantErr bool
	}{
		"reserve new port": {
			setup:   func(_ *PortRegistry) {},
			port:    8080,
			wantErr: false,
		},
		"reserve duplicate port": {
			setup: func(r *PortRegistry) {
				if err := r.Reserve(9090); err != nil {
					panic(err)
				}
			},
			port:    9090,
			wantErr: true,
		},
		"reserve after release": {
			setup: func(r *PortRegistry) {
				if err := r.Reserve(7070); err != nil {
					panic(err)
				}
				r.Release(7070)
			},
			port:    7070,
			wantErr: false,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := NewPortRegistry(nil)
			tc.setup(r)

			err := r.Reserve(tc.port)
			if tc.wantErr && err == nil {
				t.Errorf("Reserve(%d) = nil, want error", tc.port)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Reserve(%d) error: %v", tc.port, err)
			}
		})
	}
}

func TestPortRegistry_ConcurrentPickRandom(t *testing.T) {
	t.Parallel()

	r := NewPortRegistry(nil)
	const goroutines = 50

	var wg sync.WaitGroup
	picked := make(chan int, goroutines)
	for range goroutines {
		wg.Go(func() {
			port, err := r.PickRandom()
			if err == nil {
				picked <- port
			}
		})
	}
	wg.Wait()
	close(picked)

	seen := make(map[int]bool)
	for port := range picked {
		if seen[port] {
			t.Errorf("port %d picked by two goroutines", port)
		}
		seen[port] = true
	}
	if len(seen) != goroutines {
		t.Errorf("expected %d distinct ports, got %d", goroutines, len(seen))
	}
}

func TestProbe(t *testing.T) {
	t.Parallel()

	t.Run("connectable port", func(t *testing.T) {
		t.Parallel()

		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		defer l.Close() //nolint:errcheck // test listener

		port := l.Addr().(*net.TCPAddr).Port
		if err := Probe(port, time.Second); err != nil {
			t.Errorf("Probe(%d) error: %v", port, err)
		}
	})

	t.Run("closed port", func(t *testing.T) {
		t.Parallel()

		// Grab a port from the kernel and close it so nothing listens there.
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		port := l.Addr().(*net.TCPAddr).Port
		if err := l.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}

		if err := Probe(port, 250*time.Millisecond); err == nil {
			t.Errorf("Probe(%d) = nil, want connect error", port)
		}
	})
}
