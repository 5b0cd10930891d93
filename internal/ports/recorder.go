package ports

import "time"

// RecorderStats exposes session-recorder state for observability.
type RecorderStats struct {
	FramesWritten uint64
	FramesDropped uint64
	SizeBytes     int64
}

// Recorder journals raw wire frames for post-session replay. Record is
// non-blocking: it copies the frame and returns false when the recorder
// cannot keep up or its size cap is reached.
type Recorder interface {
	Record(frame []byte, recvAt time.Time) bool
	Iterate(fn func(recvAt time.Time, frame []byte) error) error
	Stats() RecorderStats
	Close() error
}
