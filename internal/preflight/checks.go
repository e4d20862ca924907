package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"courier/internal/mailer"
	"courier/internal/warehouse"
)

// Access selects the permissions CheckDirectoryAccess requires.
type Access uint32

const (
	// AccessRead requires listing the directory.
	AccessRead Access = unix.R_OK | unix.X_OK
	// AccessReadWrite additionally requires creating files.
	AccessReadWrite Access = unix.R_OK | unix.W_OK | unix.X_OK
)

// CheckDirectoryAccess verifies that the directory exists and grants access.
func CheckDirectoryAccess(name, path string, access Access) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "(error: path not configured)"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, uint32(access)); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	if access == AccessRead {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read ok)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckWarehouseConfig loads the warehouse file and summarizes it.
func CheckWarehouseConfig(path string) (Result, warehouse.Snapshot) {
	const name = "Warehouse config"

	snapshot, err := warehouse.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (missing, built-in defaults in use)", path)}, snapshot
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}, snapshot
	}
	active := len(snapshot.Active())
	if active == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (no warehouse has a recipient)", path)}, snapshot
	}
	detail := fmt.Sprintf("%s (%d of %d warehouses active)", path, active, len(snapshot.Rules()))
	if n := len(snapshot.Warnings); n > 0 {
		detail = fmt.Sprintf("%s, %d entries ignored", detail, n)
	}
	return Result{Name: name, Passed: true, Detail: detail}, snapshot
}

// CheckSMTP opens and closes one mail session. A single attempt is made.
func CheckSMTP(ctx context.Context, transport mailer.Transport, timeout time.Duration) Result {
	const name = "Mail server"

	if transport == nil {
		return Result{Name: name, Detail: "not configured"}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	session, err := transport.Connect(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeSMTPError(err)}
	}
	_ = session.Close()
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

func summarizeSMTPError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "connect timed out (mail server unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "connect timed out (mail server unreachable)"
	}
	return err.Error()
}
