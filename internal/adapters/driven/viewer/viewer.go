// Package viewer displays query hits, either by printing their paths or by
// handing them to the operating system's default image viewer.
package viewer

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
)

var (
	_ driven.ImageViewer = (*PrintViewer)(nil)
	_ driven.ImageViewer = (*SystemViewer)(nil)
)

// New returns the viewer for mode. Printed paths go to w.
func New(mode domain.ViewerMode, w io.Writer) (driven.ImageViewer, error) {
	switch mode {
	case domain.ViewerPrint:
		return NewPrintViewer(w), nil
	case domain.ViewerOpen:
		return NewSystemViewer(), nil
	default:
		return nil, fmt.Errorf("%w: unknown viewer %q", domain.ErrInvalidInput, mode)
	}
}

// PrintViewer writes one path per line.
type PrintViewer struct {
	w io.Writer
}

// NewPrintViewer creates a viewer printing to w.
func NewPrintViewer(w io.Writer) *PrintViewer {
	return &PrintViewer{w: w}
}

// Show prints path.
func (v *PrintViewer) Show(_ context.Context, path string) error {
	_, err := fmt.Fprintln(v.w, path)
	return err
}

// SystemViewer opens files with the platform's default handler.
type SystemViewer struct {
	goos  string
	start func(name string, args ...string) error
}

// NewSystemViewer creates a viewer for the running platform.
func NewSystemViewer() *SystemViewer {
	return &SystemViewer{
		goos: runtime.GOOS,
		start: func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		},
	}
}

// Show launches the default viewer for path without waiting for it to exit.
func (v *SystemViewer) Show(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}

	name, args, err := openCommand(v.goos, path)
	if err != nil {
		return err
	}
	if err := v.start(name, args...); err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	return nil
}

// openCommand returns the command that opens path on goos.
func openCommand(goos, path string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{path}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{path}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", path}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}
