package fetcher

import (
	"fmt"
	"image"
	"os"

	"sensitive-scanner/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// MaxImageDimension is the maximum width or height we'll hand to the
	// classifier. Larger images are downscaled first.
	MaxImageDimension = 4096

	// MaxImagePixels is the maximum total pixels (width * height) we'll
	// process. A 50MP image uses ~200MB in RGBA; cap at ~20MP (~80MB).
	MaxImagePixels = 20_000_000
)

// loadImageConstrained loads an image, downscaling if it exceeds size limits.
// This prevents OOM when classifying very large originals.
func loadImageConstrained(path string, maxDimension, maxPixels int) (image.Image, error) {
	// Try to get dimensions without fully decoding
	dimensions, err := getImageDimensions(path)
	if err != nil {
		logging.Debug("Could not get image dimensions for %s: %v, loading directly", path, err)
		return imaging.Open(path, imaging.AutoOrientation(true))
	}

	width, height := dimensions.width, dimensions.height
	pixels := width * height

	needsConstraint := width > maxDimension || height > maxDimension || pixels > maxPixels
	if !needsConstraint {
		return imaging.Open(path, imaging.AutoOrientation(true))
	}

	targetWidth, targetHeight := width, height

	// First, constrain by max dimension
	if width > maxDimension || height > maxDimension {
		if width > height {
			targetWidth = maxDimension
			targetHeight = height * maxDimension / width
		} else {
			targetHeight = maxDimension
			targetWidth = width * maxDimension / height
		}
	}

	// Then, constrain by total pixels if still too large
	targetPixels := targetWidth * targetHeight
	if targetPixels > maxPixels {
		scale := float64(maxPixels) / float64(targetPixels)
		targetWidth = int(float64(targetWidth) * scale)
		targetHeight = int(float64(targetHeight) * scale)
	}

	logging.Info("Constraining large image %s from %dx%d to %dx%d", path, width, height, targetWidth, targetHeight)

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	return imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos), nil
}

type imageDimensions struct {
	width  int
	height int
}

// getImageDimensions returns image dimensions without fully decoding the image.
func getImageDimensions(path string) (*imageDimensions, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, err
	}

	return &imageDimensions{
		width:  config.Width,
		height: config.Height,
	}, nil
}
