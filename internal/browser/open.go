package browser

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Browser hands URLs to the user's default browser.
type Browser struct {
	goos string
	run  func(name string, args ...string) error
}

// New returns a Browser for the current OS.
func New() *Browser {
	return &Browser{goos: runtime.GOOS, run: start}
}

func start(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// Navigate opens rawURL in the user's default browser. Only absolute
// http and https URLs are accepted.
func (b *Browser) Navigate(_ context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("browser: parse url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("browser: refusing to open %q", rawURL)
	}
	name, args, err := command(b.goos, u.String())
	if err != nil {
		return err
	}
	if err := b.run(name, args...); err != nil {
		return fmt.Errorf("browser: %s: %w", name, err)
	}
	return nil
}

func command(goos, target string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{target}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{target}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}, nil
	default:
		return "", nil, fmt.Errorf("unsupported OS: %s", goos)
	}
}
