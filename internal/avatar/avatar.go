// Package avatar picks profile images from a media library directory or a
// camera capture command.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/shlex"
	"github.com/google/uuid"
)

// Source records where a draft came from.
type Source string

const (
	SourceLibrary Source = "library"
	SourceCamera  Source = "camera"
)

// Draft is a picked image that has not been saved to the profile.
type Draft struct {
	URI    string
	Source Source
}

// Result is the outcome of a pick. Canceled results carry no URI.
type Result struct {
	Canceled bool
	URI      string
}

// Picker is the device image-picker surface used by the profile screen.
type Picker interface {
	RequestCameraPermission(ctx context.Context) (bool, error)
	RequestMediaLibraryPermission(ctx context.Context) (bool, error)
	PickFromLibrary(ctx context.Context) (Result, error)
	CaptureFromCamera(ctx context.Context) (Result, error)
}

var (
	// ErrNotImage is returned for files that are not png, jpeg or gif.
	ErrNotImage = errors.New("avatar: not a supported image")
	// ErrOutsideLibrary is returned for picks outside the library directory.
	ErrOutsideLibrary = errors.New("avatar: file is outside the media library")
	// ErrNoChooser is returned by PickFromLibrary without a Chooser.
	ErrNoChooser = errors.New("avatar: no library chooser configured")
	// ErrNoCamera is returned when no capture command is configured.
	ErrNoCamera = errors.New("avatar: no camera command configured")
)

// OutputPlaceholder in a camera command is replaced by the capture path.
// Commands without it get the path appended.
const OutputPlaceholder = "{output}"

var supportedMIME = []string{"image/png", "image/jpeg", "image/gif"}

// Chooser asks the user for a file under dir. An empty path means canceled.
type Chooser func(ctx context.Context, dir string) (string, error)

// Config configures a System picker.
type Config struct {
	LibraryDir    string
	CameraCommand string
	CacheDir      string
	Chooser       Chooser
	Logger        *slog.Logger
}

// System implements Picker on the local filesystem.
type System struct {
	cfg    Config
	logger *slog.Logger
}

var _ Picker = (*System)(nil)

// NewSystem creates a System picker.
func NewSystem(cfg Config) *System {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &System{cfg: cfg, logger: logger}
}

// RequestMediaLibraryPermission is granted when the library directory is a
// readable directory.
func (s *System) RequestMediaLibraryPermission(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s.cfg.LibraryDir == "" {
		return false, nil
	}
	info, err := os.Stat(s.cfg.LibraryDir)
	if err != nil || !info.IsDir() {
		return false, nil
	}
	f, err := os.Open(s.cfg.LibraryDir)
	if err != nil {
		return false, nil
	}
	f.Close()
	return true, nil
}

// RequestCameraPermission is granted when the capture command is configured
// and its program is on PATH.
func (s *System) RequestCameraPermission(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	args, err := cameraArgs(s.cfg.CameraCommand)
	if err != nil {
		s.logger.Warn("invalid camera command", "error", err)
		return false, nil
	}
	if len(args) == 0 {
		return false, nil
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		s.logger.Debug("camera command not found", "command", args[0], "error", err)
		return false, nil
	}
	return true, nil
}

// PickFromLibrary runs the configured Chooser and accepts its pick.
func (s *System) PickFromLibrary(ctx context.Context) (Result, error) {
	if s.cfg.Chooser == nil {
		return Result{}, ErrNoChooser
	}
	path, err := s.cfg.Chooser(ctx, s.cfg.LibraryDir)
	if err != nil {
		return Result{}, err
	}
	if path == "" {
		return Result{Canceled: true}, nil
	}
	return s.Accept(path)
}

// Accept validates a file chosen from the library.
func (s *System) Accept(path string) (Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	if s.cfg.LibraryDir != "" {
		lib, err := filepath.Abs(s.cfg.LibraryDir)
		if err != nil {
			return Result{}, fmt.Errorf("resolve library dir: %w", err)
		}
		rel, err := filepath.Rel(lib, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return Result{}, ErrOutsideLibrary
		}
	}
	if err := CheckImage(abs); err != nil {
		return Result{}, err
	}
	return Result{URI: FileURI(abs)}, nil
}

// CaptureFromCamera runs the capture command into a new file in the cache
// directory. A command that exits cleanly without writing the file counts as
// canceled.
func (s *System) CaptureFromCamera(ctx context.Context) (Result, error) {
	args, err := cameraArgs(s.cfg.CameraCommand)
	if err != nil {
		return Result{}, err
	}
	if len(args) == 0 {
		return Result{}, ErrNoCamera
	}
	if s.cfg.CacheDir == "" {
		return Result{}, errors.New("avatar: no cache directory configured")
	}
	if err := os.MkdirAll(s.cfg.CacheDir, 0700); err != nil {
		return Result{}, fmt.Errorf("create cache dir: %w", err)
	}

	out := filepath.Join(s.cfg.CacheDir, "capture-"+uuid.NewString()+".jpg")
	substituted := false
	for i, a := range args {
		if strings.Contains(a, OutputPlaceholder) {
			args[i] = strings.ReplaceAll(a, OutputPlaceholder, out)
			substituted = true
		}
	}
	if !substituted {
		args = append(args, out)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		s.logger.Warn("camera command failed", "command", args[0], "error", err, "output", strings.TrimSpace(string(output)))
		return Result{}, fmt.Errorf("camera command %s: %w", args[0], err)
	}

	if _, err := os.Stat(out); errors.Is(err, os.ErrNotExist) {
		return Result{Canceled: true}, nil
	}
	if err := CheckImage(out); err != nil {
		_ = os.Remove(out)
		return Result{}, err
	}
	s.logger.Debug("captured image", "path", out)
	return Result{URI: FileURI(out)}, nil
}

// cameraArgs splits a capture command with shell quoting rules, so quoted
// arguments and paths with spaces stay whole.
func cameraArgs(command string) ([]string, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse camera command: %w", err)
	}
	return args, nil
}

// CheckImage returns ErrNotImage unless path holds a png, jpeg or gif.
func CheckImage(path string) error {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("read image %s: %w", path, err)
	}
	for _, m := range supportedMIME {
		if mt.Is(m) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is %s", ErrNotImage, filepath.Base(path), mt.String())
}

// FileURI returns the file:// URI for an absolute path.
func FileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// PathFromURI returns the local path of a file:// URI, or uri unchanged when
// it has no file scheme.
func PathFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	return filepath.FromSlash(u.Path)
}
