package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"podscript/internal/config"
	"podscript/internal/profiles"
	"podscript/internal/services/llm"
	"podscript/internal/store"
)

const (
	llmCheckTimeout   = 30 * time.Second
	storeCheckTimeout = 5 * time.Second
	// Episodes are small; anything under this is almost certainly a full disk.
	minFreeBytes = 16 << 20
)

// CheckLLM sends one health probe to backend with a 30-second timeout and
// no retries.
func CheckLLM(ctx context.Context, name string, backend llm.Backend) Result {
	if backend == nil {
		return Result{Name: name, Detail: "backend not configured"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
	defer cancel()

	if err := llm.HealthCheck(checkCtx, backend); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: describeBackend(backend) + " reachable"}
}

// CheckDirectoryAccess verifies that path is a directory podscript can read,
// write, and traverse, with some free space left. A missing directory passes
// when its parent is writable because EnsureDirectories creates it later.
func CheckDirectoryAccess(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return checkCreatable(name, path)
	case err != nil:
		return Result{Name: name, Detail: fmt.Sprintf("%s (stat: %v)", path, err)}
	case !info.IsDir():
		return Result{Name: name, Detail: fmt.Sprintf("%s (not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (insufficient permissions: %v)", path, err)}
	}
	if free, ok := freeBytes(path); ok && free < minFreeBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (only %d MiB free)", path, free>>20)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func checkCreatable(name, path string) Result {
	parent := filepath.Dir(path)
	for {
		if _, err := os.Stat(parent); err == nil {
			break
		}
		next := filepath.Dir(parent)
		if next == parent {
			break
		}
		parent = next
	}
	if err := unix.Access(parent, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (missing, parent %s not writable)", path, parent)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
}

func freeBytes(path string) (uint64, bool) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, false
	}
	return st.Bavail * uint64(st.Bsize), true
}

// CheckStore opens the episode history database and pings it.
func CheckStore(ctx context.Context, cfg *config.Config) Result {
	const name = "Episode store"
	if err := cfg.EnsureDirectories(); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("create directories: %v", err)}
	}
	st, err := store.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer st.Close()

	pingCtx, cancel := context.WithTimeout(ctx, storeCheckTimeout)
	defer cancel()
	if err := st.Ping(pingCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (ping: %v)", st.Path(), err)}
	}
	return Result{Name: name, Passed: true, Detail: st.Path()}
}

// CheckProfiles loads the builtin and user profile catalogs.
func CheckProfiles(dir string) Result {
	const name = "Profiles"
	catalog, err := profiles.Load(dir)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%d speaker, %d episode", len(catalog.SpeakerNames()), len(catalog.EpisodeNames())),
	}
}

func describeBackend(backend llm.Backend) string {
	return backend.Name() + "/" + backend.Model()
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (model API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (model API unreachable)"
	}
	var backendErr *llm.BackendError
	if errors.As(err, &backendErr) && (backendErr.StatusCode == 401 || backendErr.StatusCode == 403) {
		return fmt.Sprintf("%s rejected the api key (http %d)", backendErr.Provider, backendErr.StatusCode)
	}
	return err.Error()
}
