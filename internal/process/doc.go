// Package process provides generic subprocess lifecycle management.
//
// It manages the telescope server executables Skybridge spawns for
// locally connected devices: one child per slot, started on demand and
// terminated when the slot disconnects.
//
// Features:
//   - Start/stop subprocess in its own process group
//   - SIGTERM with bounded grace period, SIGKILL escalation
//   - Bounded kill confirmation (ErrUnconfirmed on a child that will not die)
//   - stdout/stderr capture into a per-device log sink
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:   "slot-3-lx200",
//	    Binary: "/usr/libexec/skybridge/server-lx200",
//	    Args:   []string{"--port=10003", "--serial=/dev/ttyUSB0"},
//	    Output: logFile,
//	})
//
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package process
