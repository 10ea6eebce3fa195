// Package daemon implements the wgd bootstrap sequence (§4.7): service
// directory layout, PID-file locking, Unix socket bind, state.json
// persistence, signal handling, and the coalesced event pipeline that
// feeds the coordinator's tick loop.
package daemon

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"github.com/workgraph/workgraph/internal/ipc"
	"github.com/workgraph/workgraph/internal/wglog"
)

// ServiceDir describes the on-disk layout rooted at a single directory,
// mirroring the teacher's process/manager.go service-directory convention.
type ServiceDir struct {
	Root string
}

func (s ServiceDir) PIDFile() string    { return filepath.Join(s.Root, "wgd.pid") }
func (s ServiceDir) SocketFile() string { return filepath.Join(s.Root, "wgd.sock") }
func (s ServiceDir) StateFile() string  { return filepath.Join(s.Root, "state.json") }
func (s ServiceDir) LogFile() string    { return filepath.Join(s.Root, "daemon.log") }
func (s ServiceDir) RegistryFile() string { return filepath.Join(s.Root, "registry.json") }
func (s ServiceDir) AgentsDir() string  { return filepath.Join(s.Root, "agents") }

// EnsureDirs creates the service directory tree.
func (s ServiceDir) EnsureDirs() error {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(s.AgentsDir(), 0o755)
}

// State is the contents of state.json, a point-in-time snapshot written
// once at startup, so external tooling can introspect the daemon without
// going through the IPC socket. It is not rewritten on reload or shutdown.
type State struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	SocketPath string   `json:"socket_path"`
	GraphPath string    `json:"graph_path"`
	Paused    bool      `json:"paused"`
}

func (s State) writeTo(path string) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadState loads a previously written state.json.
func ReadState(path string) (State, error) {
	var st State
	data, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	err = json.Unmarshal(data, &st)
	return st, err
}

// Daemon owns the running process's exclusive resources: the PID-file
// lock, the listening socket, and the coalesced tick-trigger channel
// consumed by the coordinator.
type Daemon struct {
	Dir GraphAndLog

	dir      ServiceDir
	log      *wglog.Logger
	pidLock  *flock.Flock
	listener net.Listener
	server   *ipc.Server

	triggers chan struct{}
	pauseMu  sync.Mutex
	paused   bool

	reloadCh chan struct{}
}

// GraphAndLog carries the paths a Daemon needs but does not itself own.
type GraphAndLog struct {
	ServiceDir ServiceDir
	GraphPath  string
}

// New acquires the PID-file lock and binds the socket. The caller supplies
// the IPC Handler once the coordinator/store are wired up via SetHandler.
func New(dir ServiceDir, log *wglog.Logger) (*Daemon, error) {
	if err := dir.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("ensure service dir: %w", err)
	}

	lock := flock.New(dir.PIDFile())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire pid lock: %w", err)
	}
	if !locked {
		existing, rerr := staleOwner(dir.PIDFile())
		if rerr == nil && existing > 0 {
			return nil, fmt.Errorf("pid file is locked but its recorded pid %d is not alive (stale state)", existing)
		}
		return nil, fmt.Errorf("daemon already running (pid file locked)")
	}

	if err := os.WriteFile(dir.PIDFile(), []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("write pid file: %w", err)
	}

	l, err := ipc.Listen(dir.SocketFile())
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	return &Daemon{
		dir:      dir,
		log:      log,
		pidLock:  lock,
		listener: l,
		triggers: make(chan struct{}, 1),
		reloadCh: make(chan struct{}, 1),
	}, nil
}

// staleOwner reads a pid file and returns the pid if the process is no
// longer alive (a crash-recovery signal for the caller), or an error if it
// is still live. Liveness uses syscall.Kill(pid, 0), the same
// zero-signal-probe pattern the teacher's process manager uses.
func staleOwner(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, err
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid pid in pid file")
	}
	if err := syscall.Kill(pid, 0); err != nil {
		// process not running: stale pid file, safe to report for takeover.
		return pid, nil
	}
	return 0, fmt.Errorf("process %d is still alive", pid)
}

// SetHandler attaches the IPC request handler and starts serving.
func (d *Daemon) SetHandler(h ipc.Handler, rateLimit int) {
	d.server = &ipc.Server{Handler: h, AddTaskRateLimit: rateLimit, Log: d.log}
	go func() {
		if err := d.server.Serve(d.listener); err != nil {
			d.log.Errorf("daemon", "ipc server exited: %v", err)
		}
	}()
}

// WriteState persists the current snapshot to state.json.
func (d *Daemon) WriteState(startedAt time.Time) error {
	return State{
		PID:        os.Getpid(),
		StartedAt:  startedAt,
		SocketPath: d.dir.SocketFile(),
		GraphPath:  d.Dir.GraphPath,
		Paused:     d.Paused(),
	}.writeTo(d.dir.StateFile())
}

// Paused reports the current pause flag.
func (d *Daemon) Paused() bool {
	d.pauseMu.Lock()
	defer d.pauseMu.Unlock()
	return d.paused
}

// SetPaused updates the pause flag (IPC pause/resume requests, §4.7).
func (d *Daemon) SetPaused(p bool) {
	d.pauseMu.Lock()
	d.paused = p
	d.pauseMu.Unlock()
}

// Trigger enqueues a tick. Multiple triggers arriving before the
// coordinator drains the channel collapse into a single pending tick
// (§4.7/§8 S8 — IPC coalescing): the channel has capacity 1 and the send
// is non-blocking.
func (d *Daemon) Trigger() {
	select {
	case d.triggers <- struct{}{}:
	default:
	}
}

// Triggers exposes the coalesced tick-request channel for the coordinator
// to select on, alongside its own interval timer.
func (d *Daemon) Triggers() <-chan struct{} {
	return d.triggers
}

// RequestReload enqueues a reload, coalescing the same way as Trigger.
func (d *Daemon) RequestReload() {
	select {
	case d.reloadCh <- struct{}{}:
	default:
	}
}

// Reloads exposes the coalesced reload-request channel.
func (d *Daemon) Reloads() <-chan struct{} {
	return d.reloadCh
}

// Signals returns a channel delivering SIGTERM/SIGINT (graceful shutdown)
// and SIGHUP (reload) as os.Signal values for the caller's select loop.
func Signals() (shutdown <-chan os.Signal, reload <-chan os.Signal) {
	sd := make(chan os.Signal, 1)
	rl := make(chan os.Signal, 1)
	signal.Notify(sd, syscall.SIGTERM, syscall.SIGINT)
	signal.Notify(rl, syscall.SIGHUP)
	return sd, rl
}

// Shutdown releases the socket and PID-file lock and removes both files,
// the reverse of New.
func (d *Daemon) Shutdown() error {
	if d.server != nil {
		_ = d.server.Close()
	}
	_ = d.listener.Close()
	_ = os.Remove(d.dir.SocketFile())

	if err := d.pidLock.Unlock(); err != nil {
		return err
	}
	return os.Remove(d.dir.PIDFile())
}
