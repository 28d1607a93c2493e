package models

import "time"

// Frame is a decoded video frame in BGR24 layout.
type Frame struct {
	CameraID  string
	Index     int           // 0-based position among decoded frames
	Timestamp time.Duration // offset from the start of the source
	Width     int
	Height    int
	Data      []byte
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	out := *f
	out.Data = append([]byte(nil), f.Data...)
	return &out
}
