package httpserver

import "time"

// ShutdownTimeout bounds the graceful drain of connections and background
// workers once the process is asked to stop.
var ShutdownTimeout = 15 * time.Second
