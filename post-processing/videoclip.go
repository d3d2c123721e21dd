package postprocessing

import (
	"time"

	"github.com/google/uuid"
)

type VideoClip struct {
	ID           uuid.UUID
	Path         string // local file path
	RelativePath string // slash-separated path below the local root, mirrored remotely
	Format       string
	Frames       int
	Forced       bool
	Timestamp    time.Time // assembly time the file name is derived from
	Duration     time.Duration
}
