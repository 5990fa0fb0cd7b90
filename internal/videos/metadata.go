package videos

import "context"

// MediaInfo captures the details of an uploaded video file that VidTube stores.
type MediaInfo struct {
	Duration float64
}

// Prober inspects a local media file.
type Prober interface {
	Probe(ctx context.Context, path string) (MediaInfo, error)
}
