package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const defaultCheckTimeout = 5 * time.Second

// CheckServer verifies the generation server answers HTTP on its base URL.
func CheckServer(ctx context.Context, baseURL string, timeout time.Duration) Result {
	const name = "Generation server"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	resp, err := get(ctx, base+"/", timeout)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(base, err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: status %d)", base, resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", base)}
}

// CheckSocketEndpoint verifies the Engine.IO endpoint opens a session. It
// uses the polling transport so no websocket upgrade is needed.
func CheckSocketEndpoint(ctx context.Context, baseURL, socketPath string, timeout time.Duration) Result {
	const name = "Realtime channel"

	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || base.Host == "" {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url %q", baseURL)}
	}
	if socketPath == "" {
		socketPath = "/socket.io/"
	}
	probe := base.ResolveReference(&url.URL{Path: socketPath, RawQuery: "EIO=4&transport=polling"})

	resp, err := get(ctx, probe.String(), timeout)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(probe.Path, err)}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: read: %v)", probe.Path, err)}
	}
	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: status %d)", probe.Path, resp.StatusCode)}
	}
	if !strings.HasPrefix(string(body), "0{") {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not an Engine.IO v4 endpoint)", probe.Path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (handshake ok)", probe.Path)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
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
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func get(ctx context.Context, target string, timeout time.Duration) (*http.Response, error) {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, target, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// summarizeError produces a human-readable summary for connection failures.
func summarizeError(target string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("%s (error: timed out)", target)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("%s (error: timed out)", target)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Sprintf("%s (error: connection refused)", target)
	}
	return fmt.Sprintf("%s (error: %v)", target, err)
}
