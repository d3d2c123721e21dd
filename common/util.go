package common

import (
	"strings"
)

// CodecToFileExtension maps an OpenCV fourcc capture codec to the container extension it is written into.
func CodecToFileExtension(codec string) string {
	codec = strings.ToUpper(codec)
	switch codec {
	case "MJPG", "YUYV", "XVID":
		return ".avi"
	case "MP4V", "H264", "X264", "AVC1":
		return ".mp4"
	default:
		return ".avi"
	}
}

// FormatToFileExtension normalises an output format such as "mp4" or ".MKV" into ".mp4" / ".mkv".
func FormatToFileExtension(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	format = strings.TrimPrefix(format, ".")
	if format == "" {
		return ".mp4"
	}
	return "." + format
}
