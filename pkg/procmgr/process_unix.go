//go:build !windows

package procmgr

import (
	"os"
	"syscall"
)

// processAlive probes whether pid still refers to a live process by
// sending the zero signal, which performs existence and permission checks
// without actually signaling the process.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// killByPID terminates a process this Manager did not itself spawn (an
// adopted child with no local *exec.Cmd to call Kill on).
func killByPID(pid int) error {
	if pid <= 0 {
		return nil
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
