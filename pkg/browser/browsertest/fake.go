// Package browsertest provides a scripted, in-memory implementation of the
// browser interfaces for tests. A FakePage holds the visibility, text and
// markup of selectors; click and navigation hooks mutate that state to
// simulate a multi-step portal.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/entrhq/quatro-rpa/pkg/browser"
)

// ErrNoPopup is returned by ExpectPopup when the action did not queue a popup.
var ErrNoPopup = errors.New("no popup opened")

// FakePage is a browser.Page whose state is set by the test.
type FakePage struct {
	mu sync.Mutex

	url     string
	visible map[string]bool
	texts   map[string]string
	markup  map[string]string
	errs    map[string]error

	onClick map[string]func(*FakePage)
	onGoto  func(*FakePage, string)

	popup  browser.Page
	pdf    []byte
	closed bool

	clicks      []string
	fills       map[string]string
	gotos       []string
	screenshots []string
}

var _ browser.Page = (*FakePage)(nil)

// NewPage creates an empty page at about:blank.
func NewPage() *FakePage {
	return &FakePage{
		url:     "about:blank",
		visible: make(map[string]bool),
		texts:   make(map[string]string),
		markup:  make(map[string]string),
		errs:    make(map[string]error),
		onClick: make(map[string]func(*FakePage)),
		fills:   make(map[string]string),
	}
}

// SetVisible marks selector as visible or hidden.
func (p *FakePage) SetVisible(selector string, visible bool) *FakePage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible[selector] = visible
	return p
}

// SetText sets the inner text returned for selector.
func (p *FakePage) SetText(selector, text string) *FakePage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts[selector] = text
	return p
}

// SetHTML sets the inner markup returned for selector.
func (p *FakePage) SetHTML(selector, markup string) *FakePage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markup[selector] = markup
	return p
}

// SetError makes every operation on selector fail with err.
func (p *FakePage) SetError(selector string, err error) *FakePage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[selector] = err
	return p
}

// SetURL sets the URL reported by the page.
func (p *FakePage) SetURL(url string) *FakePage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	return p
}

// SetPDF sets the bytes returned by PDF.
func (p *FakePage) SetPDF(data []byte) *FakePage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pdf = data
	return p
}

// OnClick registers a hook run after selector is clicked.
func (p *FakePage) OnClick(selector string, hook func(*FakePage)) *FakePage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClick[selector] = hook
	return p
}

// OnGoto registers a hook run after every navigation.
func (p *FakePage) OnGoto(hook func(*FakePage, string)) *FakePage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onGoto = hook
	return p
}

// QueuePopup sets the page returned by the next ExpectPopup. Click hooks
// call it to simulate a link opening a new tab.
func (p *FakePage) QueuePopup(popup browser.Page) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.popup = popup
}

func (p *FakePage) check(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.closed {
		return errors.New("page closed")
	}
	if err, ok := p.errs[selector]; ok {
		return err
	}
	return nil
}

func (p *FakePage) Goto(ctx context.Context, url string) error {
	p.mu.Lock()
	if err := p.check(ctx, url); err != nil {
		p.mu.Unlock()
		return err
	}
	p.url = url
	p.gotos = append(p.gotos, url)
	hook := p.onGoto
	p.mu.Unlock()

	if hook != nil {
		hook(p, url)
	}
	return nil
}

func (p *FakePage) Fill(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, selector); err != nil {
		return err
	}
	p.fills[selector] = value
	return nil
}

func (p *FakePage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	if err := p.check(ctx, selector); err != nil {
		p.mu.Unlock()
		return err
	}
	p.clicks = append(p.clicks, selector)
	hook := p.onClick[selector]
	p.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *FakePage) IsVisible(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, selector); err != nil {
		return false, err
	}
	return p.visible[selector], nil
}

func (p *FakePage) InnerText(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, selector); err != nil {
		return "", err
	}
	return p.texts[selector], nil
}

func (p *FakePage) InnerHTML(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, selector); err != nil {
		return "", err
	}
	return p.markup[selector], nil
}

func (p *FakePage) WaitForLoad(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.check(ctx, "")
}

func (p *FakePage) ExpectPopup(ctx context.Context, action func() error) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := action(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	popup := p.popup
	p.popup = nil
	if popup == nil {
		return nil, ErrNoPopup
	}
	return popup, nil
}

func (p *FakePage) PDF(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, ""); err != nil {
		return nil, err
	}
	if len(p.pdf) == 0 {
		return nil, errors.New("pdf export not available")
	}
	return append([]byte(nil), p.pdf...), nil
}

// Screenshot writes a placeholder image to path.
func (p *FakePage) Screenshot(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, ""); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte("fake-png"), 0600); err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}
	p.screenshots = append(p.screenshots, path)
	return nil
}

func (p *FakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Clicks returns the selectors clicked so far, in order.
func (p *FakePage) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Filled returns the last value filled into selector.
func (p *FakePage) Filled(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fills[selector]
}

// Gotos returns the navigated URLs, in order.
func (p *FakePage) Gotos() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.gotos...)
}

// Screenshots returns the screenshot paths written so far.
func (p *FakePage) Screenshots() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.screenshots...)
}

// Closed reports whether Close was called.
func (p *FakePage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Instance is a fake browser.Instance around one FakePage.
type Instance struct {
	ID      int64
	Options browser.LaunchOptions

	page   *FakePage
	closed atomic.Bool
}

var _ browser.Instance = (*Instance)(nil)

func (i *Instance) Page() browser.Page {
	return i.page
}

// FakePage returns the instance page with its concrete type.
func (i *Instance) FakePage() *FakePage {
	return i.page
}

func (i *Instance) Close() error {
	i.closed.Store(true)
	return i.page.Close()
}

// Closed reports whether Close was called.
func (i *Instance) Closed() bool {
	return i.closed.Load()
}

// Launcher is a fake browser.Launcher. NewPage builds the page of each
// launched instance; it defaults to an empty page.
type Launcher struct {
	NewPage func() *FakePage

	// Delay simulates a slow browser start
	Delay time.Duration

	mu        sync.Mutex
	err       error
	instances []*Instance
	launches  atomic.Int64
}

var _ browser.Launcher = (*Launcher)(nil)

// NewLauncher creates a launcher whose instances use pages from newPage.
func NewLauncher(newPage func() *FakePage) *Launcher {
	return &Launcher{NewPage: newPage}
}

// FailWith makes subsequent launches fail with err (nil clears it).
func (l *Launcher) FailWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func (l *Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Instance, error) {
	if l.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.Delay):
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}

	page := NewPage()
	if l.NewPage != nil {
		page = l.NewPage()
	}
	inst := &Instance{
		ID:      l.launches.Add(1),
		Options: opts,
		page:    page,
	}
	l.instances = append(l.instances, inst)
	return inst, nil
}

// Launches returns how many instances were started successfully.
func (l *Launcher) Launches() int {
	return int(l.launches.Load())
}

// Instances returns every instance launched so far.
func (l *Launcher) Instances() []*Instance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Instance(nil), l.instances...)
}
