package browser

import (
	"context"
	"time"
)

// Page is a single browser tab. Selectors use Playwright selector syntax;
// operations that match several elements act on the first one.
type Page interface {
	Goto(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	IsVisible(ctx context.Context, selector string) (bool, error)
	InnerText(ctx context.Context, selector string) (string, error)
	InnerHTML(ctx context.Context, selector string) (string, error)

	// WaitForLoad blocks until the page fired its load event
	WaitForLoad(ctx context.Context) error

	// ExpectPopup runs action and returns the tab it opened
	ExpectPopup(ctx context.Context, action func() error) (Page, error)

	// PDF prints the current page to PDF bytes
	PDF(ctx context.Context) ([]byte, error)

	Screenshot(ctx context.Context, path string) error
	URL() string
	Close() error
}

// Instance owns one running browser: the driver process, the browser, a
// single browsing context and its main page.
type Instance interface {
	Page() Page

	// Close releases every resource of the instance. It keeps going when
	// an individual close fails and reports all failures together.
	Close() error
}

// Launcher starts browser instances.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Instance, error)
}

// LaunchOptions configures a new browser instance.
type LaunchOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Viewport sets the initial viewport size
	Viewport *Viewport

	// ActionTimeout is the default timeout for a single page operation
	ActionTimeout time.Duration

	// InitScripts run in every page of the context before any page script
	InitScripts []string
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// NoopPrintAndClose neutralizes window.print and window.close. The portal
// calls both during its own print flow and either would otherwise block or
// tear down the tab being automated.
const NoopPrintAndClose = `window.print = function () {};
window.close = function () {};`

// Default values for various operations
const (
	DefaultActionTimeout  = 30 * time.Second
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 900
)
