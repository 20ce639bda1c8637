//go:build windows

package procmgr

import "os"

// processAlive on Windows opens a handle to the process; FindProcess
// itself fails once the PID no longer exists, and a signal-0 probe (as on
// Unix) has no Windows equivalent.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
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
