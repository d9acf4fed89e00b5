package preview

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"sensitive-scanner/internal/logging"
	"sensitive-scanner/internal/metrics"

	"github.com/disintegration/imaging"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const (
	thumbWidth  = 200
	thumbHeight = 200
	jpegQuality = 80
)

// Generator produces small JPEG previews of scan results. Image results
// are resized from the frame already decoded during the scan; video
// results get a frame extracted with ffmpeg. Previews are cached on disk
// keyed by result identifier, and the cache is wiped on scan reset.
type Generator struct {
	cacheDir string
	enabled  bool
	mu       sync.Mutex
}

// NewGenerator creates a Generator caching under cacheDir.
func NewGenerator(cacheDir string, enabled bool) *Generator {
	if enabled {
		logging.Debug("Preview generator enabled, cache dir: %s", cacheDir)
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			logging.Warn("Failed to create preview cache dir: %v", err)
		}
	} else {
		logging.Debug("Preview generator disabled")
	}
	return &Generator{cacheDir: cacheDir, enabled: enabled}
}

// IsEnabled reports whether preview generation is switched on.
func (g *Generator) IsEnabled() bool {
	return g.enabled
}

// ForImage returns a JPEG preview of an already-decoded result frame.
func (g *Generator) ForImage(id string, frame image.Image) ([]byte, error) {
	if !g.enabled {
		return nil, fmt.Errorf("previews disabled")
	}
	if frame == nil {
		return nil, fmt.Errorf("no decoded frame for %s", id)
	}
	return g.cached(id, func() (image.Image, error) {
		return frame, nil
	})
}

// ForVideo returns a JPEG preview of a video result, extracting a frame
// from the file at location.
func (g *Generator) ForVideo(id, location string) ([]byte, error) {
	if !g.enabled {
		return nil, fmt.Errorf("previews disabled")
	}
	if _, err := os.Stat(location); err != nil {
		return nil, fmt.Errorf("video not accessible: %w", err)
	}
	return g.cached(id, func() (image.Image, error) {
		return extractVideoFrame(location)
	})
}

// FromFile returns a JPEG preview of an on-disk image, using vips
// decode-time shrinking when available.
func (g *Generator) FromFile(id, path string) ([]byte, error) {
	if !g.enabled {
		return nil, fmt.Errorf("previews disabled")
	}
	return g.cached(id, func() (image.Image, error) {
		if img, err := loadFileWithVips(path, thumbWidth, thumbHeight); err == nil {
			return img, nil
		}
		return imaging.Open(path, imaging.AutoOrientation(true))
	})
}

// Reset drops all cached previews.
func (g *Generator) Reset() {
	if !g.enabled {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	entries, err := os.ReadDir(g.cacheDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".jpg" {
			if err := os.Remove(filepath.Join(g.cacheDir, entry.Name())); err != nil {
				logging.Warn("Failed to remove cached preview %s: %v", entry.Name(), err)
			}
		}
	}
}

// cached serves a preview from the disk cache, generating and storing it
// on a miss. Generation is serialized to bound memory use.
func (g *Generator) cached(id string, load func() (image.Image, error)) ([]byte, error) {
	cachePath := g.cachePath(id)

	if data, err := os.ReadFile(cachePath); err == nil {
		logging.Debug("Preview cache hit: %s", id)
		return data, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if data, err := os.ReadFile(cachePath); err == nil {
		return data, nil
	}

	start := time.Now()
	img, err := load()
	if err != nil {
		metrics.PreviewGenerationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("preview generation failed for %s: %w", id, err)
	}

	thumb := imaging.Fit(img, thumbWidth, thumbHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		metrics.PreviewGenerationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}

	if err := os.WriteFile(cachePath, buf.Bytes(), 0o644); err != nil {
		logging.Warn("Failed to cache preview %s: %v", cachePath, err)
	}

	metrics.PreviewGenerationsTotal.WithLabelValues("success").Inc()
	metrics.PreviewGenerationDuration.Observe(time.Since(start).Seconds())
	return buf.Bytes(), nil
}

func (g *Generator) cachePath(id string) string {
	hash := md5.Sum([]byte(id))
	return filepath.Join(g.cacheDir, fmt.Sprintf("%x.jpg", hash))
}

// extractVideoFrame pulls a single frame out of a video with ffmpeg,
// seeking one second in first and retrying from the start for clips
// shorter than that.
func extractVideoFrame(location string) (image.Image, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	frame, err := runFFmpegFrame(location, true)
	if err != nil {
		logging.Debug("Frame extraction at 1s failed for %s: %v, retrying from start", location, err)
		frame, err = runFFmpegFrame(location, false)
		if err != nil {
			return nil, err
		}
	}
	return frame, nil
}

func runFFmpegFrame(location string, seek bool) (image.Image, error) {
	args := []string{"-i", location}
	if seek {
		args = []string{"-ss", "00:00:01", "-i", location}
	}
	args = append(args, "-vframes", "1", "-f", "image2pipe", "-vcodec", "png", "-")

	cmd := exec.Command("ffmpeg", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", location)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}
