package handlers

import (
	"bytes"
	"image/png"
	"net/http"

	"github.com/gorilla/mux"

	"sensitive-scanner/internal/logging"
)

// ResultEntry is one flagged asset in the results listing.
type ResultEntry struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Deletable bool   `json:"deletable"`
	Location  string `json:"location,omitempty"`
}

// ResultsResponse is the flagged-asset listing.
type ResultsResponse struct {
	Results []ResultEntry `json:"results"`
	Total   int           `json:"total"`
}

// ListResults returns every asset flagged by the most recent scan,
// images first.
func (h *Handlers) ListResults(w http.ResponseWriter, _ *http.Request) {
	store := h.scanner.Results()

	entries := make([]ResultEntry, 0, store.TotalResults())
	for _, img := range store.Images() {
		entries = append(entries, ResultEntry{
			ID:        img.ID,
			Kind:      "image",
			Deletable: img.Deletable,
		})
	}
	for _, vid := range store.Videos() {
		entries = append(entries, ResultEntry{
			ID:       vid.ID,
			Kind:     "video",
			Location: vid.Location,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ResultsResponse{Results: entries, Total: len(entries)})
}

// ResultImage serves the retained full-resolution frame for a flagged
// image. Videos carry no frame and report not found.
func (h *Handlers) ResultImage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	img, ok := h.scanner.Results().ImageByID(id)
	if !ok || img.Frame == nil {
		writeJSONError(w, "Result not found", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img.Frame); err != nil {
		logging.Error("Failed to encode result frame %s: %v", id, err)
		writeJSONError(w, "Failed to encode image", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = w.Write(buf.Bytes())
}

// ResultThumbnail serves a cached thumbnail for a flagged asset,
// generating it on first request.
func (h *Handlers) ResultThumbnail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	store := h.scanner.Results()

	var (
		data []byte
		err  error
	)
	if img, ok := store.ImageByID(id); ok {
		data, err = h.previews.ForImage(id, img.Frame)
	} else if vid, ok := store.VideoByID(id); ok {
		data, err = h.previews.ForVideo(id, vid.Location)
	} else {
		writeJSONError(w, "Result not found", http.StatusNotFound)
		return
	}

	if err != nil {
		logging.Error("Failed to generate thumbnail for %s: %v", id, err)
		writeJSONError(w, "Failed to generate thumbnail", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(data)
}

// DeleteResult removes the underlying asset from the library and, only
// if that succeeds, drops it from the result set.
func (h *Handlers) DeleteResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	store := h.scanner.Results()

	if _, okImg := store.ImageByID(id); !okImg {
		if _, okVid := store.VideoByID(id); !okVid {
			writeJSONError(w, "Result not found", http.StatusNotFound)
			return
		}
	}

	if err := h.catalog.Delete(r.Context(), id); err != nil {
		logging.Error("Failed to delete asset %s: %v", id, err)
		writeJSONError(w, "Failed to delete asset", http.StatusInternalServerError)
		return
	}

	store.Remove(id)
	writeJSONStatus(w, "deleted")
}
