package uploading

import (
	"time"

	"github.com/google/uuid"
)

// UploadJob represents an assembled clip file ready for upload
type UploadJob struct {
	ClipID     uuid.UUID
	FilePath   string
	QueuedAt   time.Time
	RetryCount int // Number of retry attempts made
	LastError  error
}
