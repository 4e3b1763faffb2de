// Package installplaywright downloads the playwright driver and the
// chromium build the crawler depends on.
package installplaywright

import (
	"context"
	"log"

	"github.com/playwright-community/playwright-go"

	"github.com/printwerk/labelpress/runner"
)

type installRunner struct{}

// New creates the install runner
func New(_ *runner.Config) (runner.Runner, error) {
	return &installRunner{}, nil
}

// Run installs the driver and chromium, then exits
func (installRunner) Run(_ context.Context) error {
	log.Println("installing playwright driver and chromium...")
	return playwright.Install(&playwright.RunOptions{
		Browsers: []string{"chromium"},
	})
}

// Close implements runner.Runner
func (installRunner) Close(_ context.Context) error { return nil }
