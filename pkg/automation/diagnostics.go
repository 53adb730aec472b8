package automation

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/limecash/lime-e2e/pkg/core"
	"github.com/limecash/lime-e2e/pkg/driver/appium"
	"github.com/limecash/lime-e2e/pkg/logger"
)

// accessibleDumpLimit caps DumpAccessibleElements.
const accessibleDumpLimit = 20

func withExt(name, ext string) string {
	if filepath.Ext(name) == "" {
		return name + ext
	}
	return name
}

// TakeScreenshot saves a PNG into the artifact directory and returns its path.
// An empty filename gets a unique name.
func (c *Client) TakeScreenshot(filename string) (string, error) {
	if filename == "" {
		filename = "screenshot-" + uuid.NewString()
	}
	data, err := c.s.Screenshot()
	if err != nil {
		return "", err
	}
	path, err := core.NewScreenshotAttachment(withExt(filename, ".png"), data).Save(c.cfg.ArtifactDir())
	if err != nil {
		return "", err
	}
	logger.Info("screenshot saved: %s", path)
	return path, nil
}

// SaveHierarchy saves the page source XML into the artifact directory.
func (c *Client) SaveHierarchy(filename string) (string, error) {
	if filename == "" {
		filename = "hierarchy-" + uuid.NewString()
	}
	src, err := c.s.Source()
	if err != nil {
		return "", err
	}
	path, err := core.NewHierarchyAttachment(withExt(filename, ".xml"), []byte(src)).Save(c.cfg.ArtifactDir())
	if err != nil {
		return "", err
	}
	logger.Info("hierarchy saved: %s", path)
	return path, nil
}

// CaptureFailure saves a screenshot and the hierarchy under one correlation
// ID and returns the paths written. Each capture is best effort.
func (c *Client) CaptureFailure(name string) []string {
	id := uuid.NewString()
	base := id
	if name != "" {
		base = sanitize(name) + "-" + id[:8]
	}
	log := logger.L().With(zap.String("capture", id))

	var paths []string
	if p, err := c.TakeScreenshot(base); err != nil {
		log.Warn("screenshot capture failed", zap.Error(err))
	} else {
		paths = append(paths, p)
	}
	if p, err := c.SaveHierarchy(base); err != nil {
		log.Warn("hierarchy capture failed", zap.Error(err))
	} else {
		paths = append(paths, p)
	}
	return paths
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

// DumpAccessibleElements lists the first accessible elements of the page
// source as `Type: "text"` lines and logs them.
func (c *Client) DumpAccessibleElements() ([]string, error) {
	src, err := c.s.Source()
	if err != nil {
		return nil, err
	}
	elements, err := appium.ParsePageSource(src)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range appium.FilterAccessible(elements, accessibleDumpLimit) {
		out = append(out, appium.Describe(e))
	}
	logger.Info("accessible elements (%d): %s", len(out), strings.Join(out, "; "))
	return out, nil
}
