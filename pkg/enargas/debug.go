package enargas

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/entrhq/quatro-rpa/pkg/browser"
)

const captureTimeout = 10 * time.Second

// capture writes a screenshot and the result container markup to the debug
// directory. Failures are logged and never returned.
func (w *Workflow) capture(ctx context.Context, page browser.Page, plate string, stage Stage) {
	if !w.debug.Enabled || w.debug.Dir == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), captureTimeout)
	defer cancel()

	if err := os.MkdirAll(w.debug.Dir, 0o755); err != nil {
		w.log.Warnf("Debug capture skipped: %v", err)
		return
	}

	name := fmt.Sprintf("%s_%s_%s", w.clock.Now().Format("20060102_150405"), NormalizePlate(plate), stage)
	base := filepath.Join(w.debug.Dir, name)

	if err := page.Screenshot(ctx, base+".png"); err != nil {
		w.log.Warnf("Debug screenshot failed: %v", err)
	}

	markup, err := page.InnerHTML(ctx, w.loc.ResultContainer)
	if err != nil {
		w.log.Warnf("Debug markup capture failed: %v", err)
		return
	}
	if err := os.WriteFile(base+".html", []byte(markup), 0o644); err != nil {
		w.log.Warnf("Debug markup capture failed: %v", err)
	}
}
