// Package browser defines the browser driver capability used by the
// automation and implements it with Playwright.
//
// # Architecture
//
// The package is built around three interfaces:
//
//  1. Launcher: starts a browser Instance
//  2. Instance: owns the driver process, browser, context and main Page
//  3. Page: one tab, with navigation, form, visibility, popup and export
//     operations
//
// Playwright is the production Launcher. Tests use the scripted fakes in
// the browsertest subpackage.
//
// # Popups
//
// The portal opens detail and print views in new tabs. ExpectPopup runs an
// action (usually a click) and returns the tab it opened; callers own the
// returned Page and must Close it.
//
// # Waiting
//
// Poll is the single wait primitive for page states the driver cannot
// express as one selector: it runs a probe at a fixed interval until the
// probe reports a result or the deadline passes. It takes a clockwork.Clock
// so tests can drive it with a fake clock.
//
// # Example Usage
//
//	launcher := browser.NewPlaywright(false)
//	inst, err := launcher.Launch(ctx, browser.LaunchOptions{
//	    Headless:    true,
//	    InitScripts: []string{browser.NoopPrintAndClose},
//	})
//	defer inst.Close()
//
//	page := inst.Page()
//	err = page.Goto(ctx, "https://example.com")
//	tab, err := page.ExpectPopup(ctx, func() error {
//	    return page.Click(ctx, "#open")
//	})
//	pdf, err := tab.PDF(ctx)
package browser
