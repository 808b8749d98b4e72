package host

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fernlang/fernhost/hostfn"
)

// HostOption configures the Host at creation time.
type HostOption func(*hostConfig)

type hostConfig struct {
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32 // Max memory pages (each page = 64KB), 0 = wazero default
	log              *zap.Logger
}

func defaultHostConfig() hostConfig {
	return hostConfig{}
}

// WithDiskCache enables persistent compilation cache for faster startup.
// Optionally provide a custom directory; otherwise uses ~/.cache/fernhost
// or XDG_CACHE_HOME/fernhost.
func WithDiskCache(dir ...string) HostOption {
	return func(c *hostConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimit sets the maximum memory available to a guest, in 64KB
// pages. 0 means the wazero default.
func WithMemoryLimit(pages uint32) HostOption {
	return func(c *hostConfig) {
		c.memoryLimitPages = pages
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16    // 1 MB
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)

// WithLogger sets the structured logger. The default is a nop logger.
func WithLogger(log *zap.Logger) HostOption {
	return func(c *hostConfig) {
		c.log = log
	}
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "fernhost")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "fernhost")
	}
	return filepath.Join(os.TempDir(), "fernhost-cache")
}

// RunOption configures a single program run.
type RunOption func(*runConfig)

type runConfig struct {
	timeout      time.Duration
	storageDir   string
	allowedHosts []string
	httpTimeout  time.Duration
	httpMaxBody  int64
	sandboxed    bool

	stdin   hostfn.LineReader
	stdout  io.Writer
	stderr  io.Writer
	environ func() []string
	store   hostfn.Store
	getter  hostfn.Getter

	hashSeed    uint64
	hashSeedSet bool
}

func defaultRunConfig() runConfig {
	return runConfig{}
}

// WithTimeout bounds the wall-clock time of the run. The guest is torn
// down when the deadline passes.
func WithTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// WithStorageDir sets the directory behind the Storage effects. The
// default is .fernhost/storage under the working directory.
func WithStorageDir(dir string) RunOption {
	return func(c *runConfig) {
		c.storageDir = dir
	}
}

// WithAllowedHosts sets the hosts Http.get may reach. Without it every
// request degrades to the empty response.
func WithAllowedHosts(hosts []string) RunOption {
	return func(c *runConfig) {
		c.allowedHosts = hosts
	}
}

// WithHTTPTimeout sets the per-request timeout for Http.get.
func WithHTTPTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		c.httpTimeout = d
	}
}

// WithHTTPMaxBodySize caps the response body size for Http.get.
func WithHTTPMaxBodySize(size int64) RunOption {
	return func(c *runConfig) {
		c.httpMaxBody = size
	}
}

// WithSandbox substitutes in-memory storage and a stub HTTP client while
// keeping the exact effect indices and signatures.
func WithSandbox() RunOption {
	return func(c *runConfig) {
		c.sandboxed = true
	}
}

// WithStdin supplies the reader behind Stdin.line, line-buffered with the
// default length cap.
func WithStdin(r io.Reader) RunOption {
	return func(c *runConfig) {
		c.stdin = hostfn.ScanLines(r, 0)
	}
}

// WithLineReader supplies the Stdin.line source directly, for callers
// with their own buffering, such as an interactive prompt.
func WithLineReader(r hostfn.LineReader) RunOption {
	return func(c *runConfig) {
		c.stdin = r
	}
}

// WithStdout redirects Stdout.line. The default is os.Stdout.
func WithStdout(w io.Writer) RunOption {
	return func(c *runConfig) {
		c.stdout = w
	}
}

// WithStderr redirects crash and debug-hook output. The default is
// os.Stderr.
func WithStderr(w io.Writer) RunOption {
	return func(c *runConfig) {
		c.stderr = w
	}
}

// WithEnviron supplies the variables behind Env.dict. The default is the
// process environment.
func WithEnviron(environ func() []string) RunOption {
	return func(c *runConfig) {
		c.environ = environ
	}
}

// WithStore overrides the storage backend regardless of sandbox mode.
func WithStore(s hostfn.Store) RunOption {
	return func(c *runConfig) {
		c.store = s
	}
}

// WithHTTPGetter overrides the Http.get client regardless of sandbox mode.
func WithHTTPGetter(g hostfn.Getter) RunOption {
	return func(c *runConfig) {
		c.getter = g
	}
}

// WithHashSeed fixes the dictionary hash seed for the run, making every
// dictionary image the host builds reproducible. The default is a fresh
// random seed per run.
func WithHashSeed(seed uint64) RunOption {
	return func(c *runConfig) {
		c.hashSeed = seed
		c.hashSeedSet = true
	}
}
