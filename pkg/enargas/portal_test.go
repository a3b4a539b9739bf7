package enargas

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/quatro-rpa/pkg/browser/browsertest"
	"github.com/entrhq/quatro-rpa/pkg/config"
	"github.com/entrhq/quatro-rpa/pkg/logging"
)

const resultMarkup = `<table><tbody>
<tr><th>Fecha</th><th>Operación</th><th></th></tr>
<tr><td>12/01/2024</td><td>Revisión periódica</td><td><a href="#">Ver</a></td></tr>
<tr><td>03/05/2024</td><td>Revisión periódica</td><td><button onclick="ver(2)">Ver</button></td></tr>
<tr><td>01/01/2023</td><td>Habilitación</td><td><input type="button" value="Ver"></td></tr>
<tr><td>05/06/2025</td><td>Pendiente</td><td></td></tr>
</tbody></table>`

const resultText = "Fecha Operación 12/01/2024 Revisión periódica Ver 03/05/2024 Revisión periódica Ver 01/01/2023 Habilitación 05/06/2025 Pendiente"

var fakePDF = []byte("%PDF-1.4\n%fake certificate\n%%EOF\n")

// portal scripts a FakePage that walks through the portal screens. Each
// field can be changed before the page is built.
type portal struct {
	loc config.Locators

	// loginOutcome runs when the login form is submitted
	loginOutcome func(p *browsertest.FakePage)
	// resultOutcome runs when the plate is submitted
	resultOutcome func(p *browsertest.FakePage)

	printURL string
	pdf      []byte

	detail   *browsertest.FakePage
	printTab *browsertest.FakePage
}

func newPortal() *portal {
	pt := &portal{
		loc:      config.DefaultLocators(),
		printURL: "https://portal.test/imprimir/certificado",
		pdf:      fakePDF,
	}
	pt.loginOutcome = func(p *browsertest.FakePage) {
		p.SetVisible(pt.loc.LoggedIn, true)
	}
	pt.resultOutcome = func(p *browsertest.FakePage) {
		p.SetText(pt.loc.ResultContainer, resultText)
		p.SetHTML(pt.loc.ResultContainer, resultMarkup)
	}
	return pt
}

// rowSelector must match Workflow.rowActionSelector for the default locators.
func (pt *portal) rowSelector(index int) string {
	w := &Workflow{loc: pt.loc}
	return w.rowActionSelector(index)
}

func (pt *portal) page() *browsertest.FakePage {
	p := browsertest.NewPage()
	p.OnClick(pt.loc.LoginSubmit, func(p *browsertest.FakePage) {
		if pt.loginOutcome != nil {
			pt.loginOutcome(p)
		}
	})
	p.OnClick(pt.loc.PlateSubmit, func(p *browsertest.FakePage) {
		if pt.resultOutcome != nil {
			pt.resultOutcome(p)
		}
	})
	p.OnClick(pt.rowSelector(2), func(p *browsertest.FakePage) {
		p.QueuePopup(pt.newDetail())
	})
	return p
}

// newDetail builds the detail tab opened by a row. Its print button opens
// a fresh print tab serving pt.pdf.
func (pt *portal) newDetail() *browsertest.FakePage {
	detail := browsertest.NewPage().SetURL("https://portal.test/detalle")
	detail.OnClick(pt.loc.PrintButton, func(d *browsertest.FakePage) {
		pt.printTab = browsertest.NewPage().SetURL(pt.printURL).SetPDF(pt.pdf)
		d.QueuePopup(pt.printTab)
	})
	pt.detail = detail
	return detail
}

func testPortalConfig() config.PortalConfig {
	cfg := config.Default().Portal
	cfg.URL = "https://portal.test/login"
	cfg.LoginTimeout = 150 * time.Millisecond
	cfg.ResultTimeout = 150 * time.Millisecond
	cfg.PollInterval = 5 * time.Millisecond
	cfg.PopupTimeout = time.Second
	cfg.SettleDelay = time.Millisecond
	return cfg
}

func newTestWorkflow(t *testing.T, mutate func(*WorkflowOptions)) *Workflow {
	t.Helper()
	opts := WorkflowOptions{
		Portal:   testPortalConfig(),
		Locators: config.DefaultLocators(),
		Clock:    clockwork.NewRealClock(),
		Logger:   logging.Nop(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	w, err := NewWorkflow(opts)
	require.NoError(t, err)
	return w
}

var validCreds = Credentials{Username: "taller01", Password: "s3creta"}
