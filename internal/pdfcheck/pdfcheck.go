// Package pdfcheck validates a source PDF locally before it is uploaded for
// conversion.
package pdfcheck

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"paperpipe/internal/logging"
)

// ErrNoPages is returned for a structurally valid PDF without any page.
var ErrNoPages = errors.New("pdf has no pages")

var disableConfigDir sync.Once

// Info is what preflight learned about a PDF.
type Info struct {
	Pages int
}

// Checker runs relaxed pdfcpu validation and counts pages.
type Checker struct {
	conf   *model.Configuration
	logger *zap.Logger
}

// New returns a Checker. pdfcpu's user config directory is never touched.
func New(logger *zap.Logger) *Checker {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Checker{conf: conf, logger: logging.OrNop(logger)}
}

// Check validates the file at path and returns its page count.
func (c *Checker) Check(path string) (Info, error) {
	if err := api.ValidateFile(path, c.conf); err != nil {
		return Info{}, fmt.Errorf("invalid pdf: %w", err)
	}
	pages, err := api.PageCountFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("count pages: %w", err)
	}
	if pages == 0 {
		return Info{}, ErrNoPages
	}
	c.logger.Debug("pdf preflight passed", zap.String("path", path), zap.Int("pages", pages))
	return Info{Pages: pages}, nil
}
