package download

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"

	"github.com/giantswarm/kindenv/internal/fileutil"
	"github.com/giantswarm/kindenv/internal/sentinel"
)

// ErrDownload is returned when fetching a binary fails, either because the
// server answered with a non-2xx status or because the transfer itself
// failed. Downloads are never retried automatically.
const ErrDownload = sentinel.Error("binary download failed")

// binaryMode is the permission set applied to cached binaries. Downloads are
// executables, so the executable bits are set before the file is renamed
// into place.
const binaryMode = os.FileMode(0o755)

// fileLockRetryInterval is the interval between consecutive attempts to
// acquire the download file lock. 50ms balances responsiveness (low wait
// after the holder releases) against CPU overhead from busy-polling.
const fileLockRetryInterval = 50 * time.Millisecond

// Ref identifies one external tool binary: a (tool, version, platform, arch)
// tuple mapping to a download URL and a local cache path.
type Ref struct {
	Tool     string // e.g., "kind", "kubectl"
	Version  string // e.g., "v0.23.0"
	Platform string // GOOS-style, e.g., "linux"
	Arch     string // GOARCH-style, e.g., "amd64"

	// ExeSuffix appends ".exe" to the cache filename. Set for CLI binaries
	// that Windows refuses to execute without the suffix.
	ExeSuffix bool
}

// Filename returns the versioned cache file name for the binary.
func (r Ref) Filename() string {
	name := r.Tool + "-" + r.Version
	if r.ExeSuffix {
		name += ".exe"
	}
	return name
}

// validate checks that the identifying fields of a Ref are set. Platform and
// Arch do not appear in the cache filename but are part of the key contract,
// so they are required too: a Ref with an empty platform is a caller bug.
func (r Ref) validate() error {
	if r.Tool == "" {
		return fmt.Errorf("tool must not be empty")
	}
	if r.Version == "" {
		return fmt.Errorf("version must not be empty")
	}
	if r.Platform == "" {
		return fmt.Errorf("platform must not be empty")
	}
	if r.Arch == "" {
		return fmt.Errorf("arch must not be empty")
	}
	return nil
}

// Store caches downloaded binaries under a directory. The zero value is not
// usable; construct with NewStore.
type Store struct {
	dir    string
	client *http.Client
	log    *slog.Logger
	group  singleflight.Group
}

// NewStore creates a Store rooted at dir. If client is nil, http.DefaultClient
// is used. If logger is nil, slog.Default() is used. Panics if dir is empty,
// since a store without a directory is a programmer error.
func NewStore(dir string, client *http.Client, logger *slog.Logger) *Store {
	if dir == "" {
		panic("kindenv: download store directory must not be empty")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, client: client, log: logger}
}

// Path returns the cache path for ref without performing any I/O.
func (s *Store) Path(ref Ref) string {
	return filepath.Join(s.dir, ref.Filename())
}

// Ensure returns the cache path for ref, downloading the binary from url
// first if it is not already present. A cache hit returns immediately with
// no I/O beyond a stat. Concurrent Ensure calls for the same path are
// deduplicated within the process and serialized across processes via a
// file lock; a caller that loses the race finds the binary already present
// after acquiring the lock and skips the download.
//
// Returns an error wrapping ErrDownload on non-2xx status or transfer
// failure. A failed download never leaves a file at the cache path.
func (s *Store) Ensure(ctx context.Context, ref Ref, url string) (string, error) {
	if err := ref.validate(); err != nil {
		return "", fmt.Errorf("invalid binary ref: %w", err)
	}
	if url == "" {
		return "", fmt.Errorf("download url for %s must not be empty", ref.Filename())
	}

	path := s.Path(ref)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	// singleflight keyed by cache path: concurrent callers for the same
	// binary share one download instead of racing on temp files.
	_, err, _ := s.group.Do(path, func() (any, error) {
		return nil, s.fetchLocked(ctx, path, url)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// fetchLocked downloads url to path under a cross-process file lock,
// re-checking for a cache hit after the lock is acquired.
func (s *Store) fetchLocked(ctx context.Context, path, url string) error {
	if err := fileutil.EnsureDirForFile(path); err != nil {
		return fmt.Errorf("prepare cache dir: %w", err)
	}

	// The lock file is left on disk after release: removing it would race
	// with another process acquiring a lock on the same inode.
	fl := flock.New(path + ".lock")
	locked, err := fl.TryLockContext(ctx, fileLockRetryInterval)
	if err != nil {
		return fmt.Errorf("acquire download lock for %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("acquire download lock for %s: lock not acquired", path)
	}
	defer func() {
		if closeErr := fl.Close(); closeErr != nil {
			s.log.Debug("release download lock", "path", fl.Path(), "error", closeErr)
		}
	}()

	// Another process may have completed the download while we waited.
	if _, statErr := os.Stat(path); statErr == nil {
		return nil
	}

	return s.fetch(ctx, path, url)
}

// fetch streams url to path. The write is atomic: a failed transfer leaves
// the cache path absent (or a previously valid file untouched).
func (s *Store) fetch(ctx context.Context, path, url string) error {
	s.log.Info("downloading binary", "url", url, "path", path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", url, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: get %s: %w", ErrDownload, url, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.log.Debug("close download response body", "url", url, "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: get %s: unexpected status %s", ErrDownload, url, resp.Status)
	}

	if err := fileutil.WriteStreamAtomic(path, resp.Body, binaryMode); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrDownload, path, err)
	}
	return nil
}
