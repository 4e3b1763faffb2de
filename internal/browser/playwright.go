package browser

import (
	"context"
	"fmt"
	"log"

	"github.com/playwright-community/playwright-go"
	"github.com/shirou/gopsutil/v4/mem"
)

// instanceMemoryMB is the working-set budget assumed per chromium instance
// when sizing the pool against available system memory.
const instanceMemoryMB = 500

// Launcher launches headless chromium instances through a shared
// playwright driver. Construct once at process start.
type Launcher struct {
	pw       *playwright.Playwright
	headless bool
}

// NewLauncher starts the playwright driver
func NewLauncher(headless bool) (*Launcher, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	return &Launcher{pw: pw, headless: headless}, nil
}

// Launch implements LaunchFunc
func (l *Launcher) Launch(_ context.Context) (Instance, error) {
	b, err := l.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--disable-gpu",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	return &pwInstance{browser: b}, nil
}

// Close stops the playwright driver
func (l *Launcher) Close() error {
	return l.pw.Stop()
}

type pwInstance struct {
	browser playwright.Browser
}

func (i *pwInstance) NewContext() (Context, error) {
	bctx, err := i.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: 1440, Height: 2000},
	})
	if err != nil {
		return nil, err
	}
	return &pwContext{ctx: bctx}, nil
}

func (i *pwInstance) Close() error {
	return i.browser.Close()
}

type pwContext struct {
	ctx playwright.BrowserContext
}

func (c *pwContext) NewPage() (playwright.Page, error) {
	return c.ctx.NewPage()
}

func (c *pwContext) Close() error {
	return c.ctx.Close()
}

// DefaultMaxInstances caps the configured pool size by available system
// memory, assuming roughly instanceMemoryMB per chromium process.
func DefaultMaxInstances(configured int) int {
	if configured <= 0 {
		configured = 3
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Printf("browser pool: memory probe failed, keeping max=%d: %v", configured, err)
		return configured
	}

	byMemory := int(vm.Available / (instanceMemoryMB * 1024 * 1024))
	if byMemory < 1 {
		byMemory = 1
	}
	if byMemory < configured {
		log.Printf("browser pool: capping max instances %d -> %d (%.0f MB available)",
			configured, byMemory, float64(vm.Available)/1024/1024)
		return byMemory
	}
	return configured
}
