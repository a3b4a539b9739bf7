package enargas

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/entrhq/quatro-rpa/pkg/browser"
)

var pdfMagic = []byte("%PDF-")

var disablePDFConfig sync.Once

// export opens the row detail, opens its print view and prints it to PDF.
// Both tabs are closed before returning.
func (w *Workflow) export(ctx context.Context, page browser.Page, row resultRow) ([]byte, int, error) {
	detail, err := w.popup(ctx, page, w.rowActionSelector(row.Index))
	if err != nil {
		return nil, 0, fmt.Errorf("open detail tab: %w", err)
	}
	defer w.closeTab(detail, "detail")

	if err := detail.WaitForLoad(ctx); err != nil {
		return nil, 0, fmt.Errorf("detail tab did not load: %w", err)
	}

	printTab, err := w.popup(ctx, detail, w.loc.PrintButton)
	if err != nil {
		return nil, 0, fmt.Errorf("open print tab: %w", err)
	}
	defer w.closeTab(printTab, "print")

	if w.printURL != nil && !w.printURL.Match(printTab.URL()) {
		return nil, 0, fmt.Errorf("unexpected print tab url %q", printTab.URL())
	}

	if err := printTab.WaitForLoad(ctx); err != nil {
		return nil, 0, fmt.Errorf("print tab did not load: %w", err)
	}
	if err := w.settle(ctx); err != nil {
		return nil, 0, err
	}

	pdf, err := printTab.PDF(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("export pdf: %w", err)
	}
	if !bytes.HasPrefix(pdf, pdfMagic) {
		return nil, 0, errors.New("export pdf: output is not a PDF document")
	}

	return pdf, w.pageCount(pdf), nil
}

func (w *Workflow) popup(ctx context.Context, page browser.Page, selector string) (browser.Page, error) {
	if w.portal.PopupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.portal.PopupTimeout)
		defer cancel()
	}
	return page.ExpectPopup(ctx, func() error {
		return page.Click(ctx, selector)
	})
}

// settle waits for client-side rendering of the print view.
func (w *Workflow) settle(ctx context.Context) error {
	if w.portal.SettleDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.clock.After(w.portal.SettleDelay):
		return nil
	}
}

func (w *Workflow) closeTab(tab browser.Page, name string) {
	if err := tab.Close(); err != nil {
		w.log.Debugf("Closing %s tab: %v", name, err)
	}
}

// pageCount returns the number of pages of pdf, or 0 when pdfcpu cannot
// read it. The count is informational only.
func (w *Workflow) pageCount(pdf []byte) (n int) {
	disablePDFConfig.Do(api.DisableConfigDir)

	defer func() {
		if r := recover(); r != nil {
			w.log.Warnf("pdfcpu panicked counting pages: %v", r)
			n = 0
		}
	}()

	n, err := api.PageCount(bytes.NewReader(pdf), nil)
	if err != nil {
		w.log.Debugf("Could not count pdf pages: %v", err)
		return 0
	}
	return n
}
