// Package artifacts persists generated episodes.
//
// Writer lays out the text artifacts of one episode in its output directory
// under an advisory file lock. GCSPublisher copies a finished directory to a
// Cloud Storage bucket.
package artifacts
