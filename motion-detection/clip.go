package motiondetection

import (
	"time"

	"github.com/google/uuid"
)

// Clip is the frame set of one completed motion episode.
// Frames holds the pre-roll frames followed by the in-motion frames.
type Clip[F any] struct {
	ID        uuid.UUID
	StartedAt time.Time
	EndedAt   time.Time
	Frames    []F
	PreRoll   int  // number of leading pre-roll frames
	Forced    bool // the episode hit the in-motion frame cap
}

// MotionFrames returns the number of in-motion frames
func (c *Clip[F]) MotionFrames() int {
	return len(c.Frames) - c.PreRoll
}
