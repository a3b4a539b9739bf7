package browser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The playwright tests download and drive a real Chromium, so they only run
// when PLAYWRIGHT_INTEGRATION=1.
func requirePlaywright(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv("PLAYWRIGHT_INTEGRATION") != "1" {
		t.Skip("Set PLAYWRIGHT_INTEGRATION=1 to run playwright integration tests")
	}
}

const popupPage = `data:text/html,<html><body>
<div id="out">ready</div>
<button id="print" onclick="window.print(); window.close(); document.getElementById('out').innerText='still here'">print</button>
<a id="open" href="data:text/html,<p>popup</p>" target="_blank">open</a>
</body></html>`

func TestPlaywrightLaunchAndDrive(t *testing.T) {
	requirePlaywright(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	launcher := NewPlaywright(false)
	inst, err := launcher.Launch(ctx, LaunchOptions{
		Headless:    true,
		InitScripts: []string{NoopPrintAndClose},
	})
	require.NoError(t, err)
	defer inst.Close()

	page := inst.Page()
	require.NoError(t, page.Goto(ctx, popupPage))

	visible, err := page.IsVisible(ctx, "#out")
	require.NoError(t, err)
	assert.True(t, visible)

	// print and close are neutralized by the init script
	require.NoError(t, page.Click(ctx, "#print"))
	text, err := page.InnerText(ctx, "#out")
	require.NoError(t, err)
	assert.Equal(t, "still here", text)

	missing, err := page.InnerText(ctx, "#does-not-exist")
	require.NoError(t, err)
	assert.Empty(t, missing)

	popup, err := page.ExpectPopup(ctx, func() error {
		return page.Click(ctx, "#open")
	})
	require.NoError(t, err)
	require.NoError(t, popup.WaitForLoad(ctx))

	pdf, err := popup.PDF(ctx)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(pdf[:5]))

	shot := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, popup.Screenshot(ctx, shot))
	_, err = os.Stat(shot)
	assert.NoError(t, err)

	require.NoError(t, popup.Close())
	require.NoError(t, inst.Close())
	assert.NoError(t, inst.Close(), "close is idempotent")
}
