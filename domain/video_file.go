// domain/video_file.go
package domain

import "path"

const AcceptedMimeType = "video/mp4"

// VideoFile is an incoming upload. It is validated on construction and
// never persisted.
type VideoFile struct {
	Name     string
	Content  []byte
	MimeType string
}

func NewVideoFile(name string, content []byte, mimeType string) (VideoFile, error) {
	if name == "" {
		return VideoFile{}, NewError(CodeInvalidFile, "file name must not be empty", nil)
	}
	// Storage keys are built from the base name, so it must name a file.
	switch path.Base(name) {
	case ".", "..", "/":
		return VideoFile{}, NewError(CodeInvalidFile, "file name must name a file", nil)
	}
	if content == nil {
		return VideoFile{}, NewError(CodeInvalidFile, "file buffer must not be null", nil)
	}
	if len(content) == 0 {
		return VideoFile{}, NewError(CodeInvalidFile, "file buffer must not be empty", nil)
	}
	if mimeType == "" {
		return VideoFile{}, NewError(CodeInvalidFile, "file mimetype must not be empty", nil)
	}
	if mimeType != AcceptedMimeType {
		return VideoFile{}, NewError(CodeInvalidFile, "file mimetype must be "+AcceptedMimeType, nil)
	}
	return VideoFile{Name: name, Content: content, MimeType: mimeType}, nil
}
