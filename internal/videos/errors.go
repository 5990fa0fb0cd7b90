package videos

import "errors"

var (
	// ErrProberUnavailable indicates the media prober is not configured.
	ErrProberUnavailable = errors.New("media prober unavailable")
	// ErrRecorderClosed indicates the view recorder no longer accepts work.
	ErrRecorderClosed = errors.New("view recorder closed")
)
