// Package timeline aligns the CAN log clock with video-relative route time.
package timeline

// SyncPoint ties one bus-log timestamp to a moment in the dashboard video.
// Exactly one sync point exists per route; the mapping between the two
// clocks is an additive shift, both are assumed to tick at the same rate.
type SyncPoint struct {
	// VideoS is the time into the video, in seconds, where the log
	// timestamp below is visible on screen.
	VideoS float64 `yaml:"video_s"`

	// LogUS is the CAN log timestamp, in microseconds, observed at VideoS.
	LogUS int64 `yaml:"log_us"`
}

// RouteInitNanos returns the log-clock timestamp (in nanoseconds) that
// corresponds to 0:00.000 in the video. It becomes the route's nominal
// start time: the viewer resolves absolute time from it, and frames
// stamped earlier than it precede the video and are dropped upstream.
//
// The result may be negative when the log starts after the nominal video
// start; that is legal and handled by the batcher's drop rule.
func (s SyncPoint) RouteInitNanos() int64 {
	videoNs := int64(s.VideoS * 1e9)
	return s.LogUS*1000 - videoNs
}
