package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"memeflow/internal/config"
	"memeflow/internal/flowconfig"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckReadableDirectory verifies that an input directory exists and can be
// listed. Input directories are never written.
func CheckReadableDirectory(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "readable")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "path is not configured"}
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
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// CheckAPIKey verifies that a collaborator credential is present. The key
// itself is never echoed.
func CheckAPIKey(name, key string) Result {
	if strings.TrimSpace(key) == "" {
		return Result{Name: name, Detail: "API key missing (set llm.api_key or LLM_API_KEY)"}
	}
	return Result{Name: name, Passed: true, Detail: "API key configured"}
}

// CheckServiceURL verifies that a collaborator base URL is absolute http(s).
func CheckServiceURL(name, raw string) Result {
	base := strings.TrimSpace(raw)
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not an http(s) url)", base)}
	}
	return Result{Name: name, Passed: true, Detail: base}
}

// CheckPlatforms verifies the resolved platforms option.
func CheckPlatforms(opts *flowconfig.Config) Result {
	const name = "Platforms"

	requested := config.SupportedPlatforms
	if opts != nil {
		requested = opts.Strings(flowconfig.KeyPlatforms, config.SupportedPlatforms)
	}
	var selected []string
	for _, platform := range requested {
		platform = strings.ToLower(strings.TrimSpace(platform))
		if platform == "" {
			continue
		}
		if !slices.Contains(config.SupportedPlatforms, platform) {
			return Result{Name: name, Detail: fmt.Sprintf("unsupported platform %q (expected one of %s)",
				platform, strings.Join(config.SupportedPlatforms, ", "))}
		}
		selected = append(selected, platform)
	}
	if len(selected) == 0 {
		return Result{Name: name, Detail: "no platforms selected"}
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(selected, ", ")}
}

// CheckImageService verifies image service connectivity and authentication.
func CheckImageService(ctx context.Context, baseURL, apiKey string) Result {
	const name = "Image service"

	if check := CheckServiceURL(name, baseURL); !check.Passed {
		return check
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/health", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	if key := strings.TrimSpace(apiKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeProbeError(err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%d)", resp.StatusCode)}
	}
}

// summarizeProbeError produces a human-readable summary for probe failures.
func summarizeProbeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (service unreachable)"
	}
	return fmt.Sprintf("health check failed (%v)", err)
}
