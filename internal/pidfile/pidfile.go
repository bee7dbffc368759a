// Package pidfile guards a notificationd daemon against a second instance
// sharing the same pid file.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrRunning is returned by Acquire when the pid file names a live process
var ErrRunning = errors.New("daemon already running")

// File is a pid file owned by the current process once acquired
type File struct {
	path string
	held bool
}

// New returns a handle for the pid file at path; nothing is written yet
func New(path string) *File {
	return &File{path: path}
}

// Acquire writes the current pid unless another live process holds the file.
// Stale files left behind by a crashed daemon are replaced.
func (f *File) Acquire() error {
	if pid, err := f.Read(); err == nil && pid != os.Getpid() && alive(pid) {
		return fmt.Errorf("%w (pid %d, %s)", ErrRunning, pid, f.path)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create pidfile directory: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write pidfile: %w", err)
	}
	f.held = true
	return nil
}

// Read returns the pid stored in the file
func (f *File) Read() (int, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read pidfile: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in pidfile %s", f.path)
	}
	return pid, nil
}

// Release removes the file if this process acquired it
func (f *File) Release() error {
	if !f.held {
		return nil
	}
	f.held = false
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pidfile: %w", err)
	}
	return nil
}

// Path returns the pid file path
func (f *File) Path() string {
	return f.path
}

func alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// signal 0 only probes for existence; EPERM still means the process exists
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
