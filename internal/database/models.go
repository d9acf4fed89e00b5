package database

import (
	"time"

	"sensitive-scanner/internal/mediatypes"
)

// Asset is one catalogued library item.
//
// ID is the stable identifier assets are addressed by across the API and
// the scan pipeline. RemoteURL is set when the original bytes are not
// resident on disk and must be fetched over the network.
type Asset struct {
	ID        string          `json:"id"`
	Path      string          `json:"path"`
	Kind      mediatypes.Kind `json:"kind"`
	Size      int64           `json:"size"`
	ModTime   time.Time       `json:"modTime"`
	RemoteURL string          `json:"remoteUrl,omitempty"`
	IndexedAt time.Time       `json:"-"`
}

// User represents the single user account in the system.
type User struct {
	ID        int64     `json:"id"`
	PINHash   string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AuthSession represents an authenticated user session.
type AuthSession struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}
