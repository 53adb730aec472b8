// Package core provides the shared model for the UI automation engine:
// locators, element attributes, screen states, errors and diagnostic artifacts.
package core

import (
	"fmt"
	"os"
	"path/filepath"
)

// Attachment represents a diagnostic artifact captured on a failure path
type Attachment struct {
	Name        string `json:"name"`        // Descriptive name: screenshot, hierarchy
	ContentType string `json:"contentType"` // MIME type: image/png, application/xml
	Path        string `json:"path"`        // File name, relative to the artifact directory
	Body        []byte `json:"-"`           // In-memory content (not serialized to JSON)
}

// Common attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentHierarchy  = "hierarchy"
)

// Common content types
const (
	ContentTypePNG = "image/png"
	ContentTypeXML = "application/xml"
)

// NewScreenshotAttachment creates a screenshot attachment
func NewScreenshotAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentScreenshot,
		ContentType: ContentTypePNG,
		Path:        path,
		Body:        data,
	}
}

// NewHierarchyAttachment creates a UI hierarchy (page source) attachment
func NewHierarchyAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentHierarchy,
		ContentType: ContentTypeXML,
		Path:        path,
		Body:        data,
	}
}

// Save writes the attachment under dir, creating directories on demand.
// Returns the full path written.
func (a Attachment) Save(dir string) (string, error) {
	if a.Path == "" {
		return "", fmt.Errorf("attachment %s has no path", a.Name)
	}
	full := filepath.Join(dir, a.Path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(full, a.Body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", a.Name, err)
	}
	return full, nil
}
