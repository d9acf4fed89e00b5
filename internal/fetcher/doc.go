// Package fetcher resolves catalogued assets to the data the classifier
// consumes: decoded pixel data for images, playable file locations for
// videos.
//
// Oversized images are downscaled at load time to bound memory use.
// Non-resident originals (cloud placeholders) are downloaded over HTTP
// only when the scan explicitly allows network fetches; videos are never
// fetched over the network.
package fetcher
