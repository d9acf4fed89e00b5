package scan

import (
	"image"
	"sync"
)

// SensitiveImage is a positively-classified image. Identity is the asset
// identifier alone; the decoded frame is retained for display.
type SensitiveImage struct {
	ID        string
	Deletable bool
	Frame     image.Image
}

// SensitiveVideo is a positively-classified video. Only the file location
// is retained; videos are previewed on demand, never buffered.
type SensitiveVideo struct {
	ID       string
	Location string
}

// Results accumulates positively-classified assets in worker-completion
// order. Safe for concurrent use.
type Results struct {
	mu     sync.RWMutex
	images []SensitiveImage
	videos []SensitiveVideo
}

// NewResults creates an empty result store.
func NewResults() *Results {
	return &Results{}
}

// AppendImage adds a sensitive image result.
func (r *Results) AppendImage(img SensitiveImage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images = append(r.images, img)
}

// AppendVideo adds a sensitive video result.
func (r *Results) AppendVideo(vid SensitiveVideo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos = append(r.videos, vid)
}

// Reset clears all accumulated results.
func (r *Results) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images = nil
	r.videos = nil
}

// Remove drops every result matching the identifier, image or video.
// Removing an absent identifier is a no-op.
func (r *Results) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	images := r.images[:0]
	for _, img := range r.images {
		if img.ID != id {
			images = append(images, img)
		}
	}
	r.images = images

	videos := r.videos[:0]
	for _, vid := range r.videos {
		if vid.ID != id {
			videos = append(videos, vid)
		}
	}
	r.videos = videos
}

// TotalResults returns the combined image and video result count.
func (r *Results) TotalResults() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.images) + len(r.videos)
}

// Images returns a snapshot of the image results.
func (r *Results) Images() []SensitiveImage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SensitiveImage, len(r.images))
	copy(out, r.images)
	return out
}

// Videos returns a snapshot of the video results.
func (r *Results) Videos() []SensitiveVideo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SensitiveVideo, len(r.videos))
	copy(out, r.videos)
	return out
}

// ImageByID looks up an image result by identifier.
func (r *Results) ImageByID(id string) (SensitiveImage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, img := range r.images {
		if img.ID == id {
			return img, true
		}
	}
	return SensitiveImage{}, false
}

// VideoByID looks up a video result by identifier.
func (r *Results) VideoByID(id string) (SensitiveVideo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, vid := range r.videos {
		if vid.ID == id {
			return vid, true
		}
	}
	return SensitiveVideo{}, false
}
