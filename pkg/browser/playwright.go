package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Playwright launches Chromium instances through playwright-go. Each
// instance gets its own driver process so closing an instance releases
// everything it started.
type Playwright struct {
	installOnce sync.Once
	installErr  error
	skipInstall bool
}

// NewPlaywright creates a launcher. When skipInstall is true the driver and
// browsers are expected to be provisioned already (container images).
func NewPlaywright(skipInstall bool) *Playwright {
	return &Playwright{skipInstall: skipInstall}
}

func runOptions() *playwright.RunOptions {
	return &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
}

// install downloads the driver and Chromium once per process.
func (l *Playwright) install() error {
	if l.skipInstall {
		return nil
	}
	l.installOnce.Do(func() {
		if err := playwright.Install(runOptions()); err != nil {
			l.installErr = fmt.Errorf("failed to install playwright: %w", err)
		}
	})
	return l.installErr
}

// Launch starts the driver, a browser, one context and one page.
func (l *Playwright) Launch(ctx context.Context, opts LaunchOptions) (Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.install(); err != nil {
		return nil, err
	}

	if opts.Viewport == nil {
		opts.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultActionTimeout
	}

	pw, err := playwright.Run(runOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
		AcceptDownloads: playwright.Bool(true),
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	for _, script := range opts.InitScripts {
		content := script
		if err := bctx.AddInitScript(playwright.Script{Content: &content}); err != nil {
			_ = bctx.Close()
			_ = browser.Close()
			_ = pw.Stop()
			return nil, fmt.Errorf("failed to add init script: %w", err)
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	timeout := float64(opts.ActionTimeout.Milliseconds())
	page.SetDefaultTimeout(timeout)

	return &playwrightInstance{
		pw:      pw,
		browser: browser,
		context: bctx,
		page:    &playwrightPage{page: page, timeout: opts.ActionTimeout},
	}, nil
}

type playwrightInstance struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    *playwrightPage

	closeOnce sync.Once
	closeErr  error
}

func (i *playwrightInstance) Page() Page {
	return i.page
}

// Close closes page, context, browser and driver in that order.
func (i *playwrightInstance) Close() error {
	i.closeOnce.Do(func() {
		var errs []error
		if err := i.page.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
		if err := i.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
		if err := i.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		if err := i.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
		i.closeErr = errors.Join(errs...)
	})
	return i.closeErr
}

// playwrightPage adapts playwright.Page to Page.
type playwrightPage struct {
	page    playwright.Page
	timeout time.Duration
}

// timeoutFor bounds a driver call by the context deadline when it is
// shorter than the default action timeout.
func (p *playwrightPage) timeoutFor(ctx context.Context) (*float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < d {
			d = remaining
		}
	}
	if d <= 0 {
		return nil, context.DeadlineExceeded
	}
	return playwright.Float(float64(d.Milliseconds())), nil
}

func (p *playwrightPage) Goto(ctx context.Context, url string) error {
	timeout, err := p.timeoutFor(ctx)
	if err != nil {
		return err
	}
	if _, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   timeout,
	}); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) Fill(ctx context.Context, selector, value string) error {
	timeout, err := p.timeoutFor(ctx)
	if err != nil {
		return err
	}
	if err := p.page.Locator(selector).First().Fill(value, playwright.LocatorFillOptions{Timeout: timeout}); err != nil {
		return fmt.Errorf("fill %s failed: %w", selector, err)
	}
	return nil
}

func (p *playwrightPage) Click(ctx context.Context, selector string) error {
	timeout, err := p.timeoutFor(ctx)
	if err != nil {
		return err
	}
	if err := p.page.Locator(selector).First().Click(playwright.LocatorClickOptions{Timeout: timeout}); err != nil {
		return fmt.Errorf("click %s failed: %w", selector, err)
	}
	return nil
}

func (p *playwrightPage) IsVisible(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	visible, err := p.page.Locator(selector).First().IsVisible()
	if err != nil {
		return false, fmt.Errorf("visibility check %s failed: %w", selector, err)
	}
	return visible, nil
}

// InnerText returns an empty string without waiting when nothing matches.
func (p *playwrightPage) InnerText(ctx context.Context, selector string) (string, error) {
	loc, ok, err := p.present(ctx, selector)
	if err != nil || !ok {
		return "", err
	}
	text, err := loc.InnerText()
	if err != nil {
		return "", fmt.Errorf("read text %s failed: %w", selector, err)
	}
	return text, nil
}

// InnerHTML returns an empty string without waiting when nothing matches.
func (p *playwrightPage) InnerHTML(ctx context.Context, selector string) (string, error) {
	loc, ok, err := p.present(ctx, selector)
	if err != nil || !ok {
		return "", err
	}
	markup, err := loc.InnerHTML()
	if err != nil {
		return "", fmt.Errorf("read markup %s failed: %w", selector, err)
	}
	return markup, nil
}

func (p *playwrightPage) present(ctx context.Context, selector string) (playwright.Locator, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	loc := p.page.Locator(selector)
	count, err := loc.Count()
	if err != nil {
		return nil, false, fmt.Errorf("query %s failed: %w", selector, err)
	}
	if count == 0 {
		return nil, false, nil
	}
	return loc.First(), true, nil
}

func (p *playwrightPage) WaitForLoad(ctx context.Context) error {
	timeout, err := p.timeoutFor(ctx)
	if err != nil {
		return err
	}
	if err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateLoad,
		Timeout: timeout,
	}); err != nil {
		return fmt.Errorf("wait for load failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) ExpectPopup(ctx context.Context, action func() error) (Page, error) {
	timeout, err := p.timeoutFor(ctx)
	if err != nil {
		return nil, err
	}
	popup, err := p.page.ExpectPopup(action, playwright.PageExpectPopupOptions{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("popup did not open: %w", err)
	}
	popup.SetDefaultTimeout(float64(p.timeout.Milliseconds()))
	return &playwrightPage{page: popup, timeout: p.timeout}, nil
}

func (p *playwrightPage) PDF(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := p.page.PDF(playwright.PagePdfOptions{
		Format:          playwright.String("A4"),
		PrintBackground: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("pdf export failed: %w", err)
	}
	return data, nil
}

func (p *playwrightPage) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	}); err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}
