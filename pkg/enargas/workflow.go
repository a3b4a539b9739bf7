package enargas

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/jonboulle/clockwork"

	"github.com/entrhq/quatro-rpa/pkg/browser"
	"github.com/entrhq/quatro-rpa/pkg/config"
	"github.com/entrhq/quatro-rpa/pkg/logging"
)

// Portal texts the workflow reacts to. Matching is case-insensitive.
const (
	textAlreadyLoggedIn    = "ya se encuentra logueado"
	textNoOperations       = "no se registran operaciones"
	textInvalidCredentials = "credenciales inv"
)

// Credentials are the portal login of one user.
type Credentials struct {
	Username string
	Password string
}

// Stage names a step of the workflow. It tags log lines and debug captures.
type Stage string

const (
	StageLogin    Stage = "login"
	StageNavigate Stage = "navigate"
	StageSubmit   Stage = "submit"
	StageResult   Stage = "result"
	StageExport   Stage = "export"
	StageDone     Stage = "done"
)

// WorkflowOptions configures a Workflow.
type WorkflowOptions struct {
	Portal   config.PortalConfig
	Locators config.Locators
	Debug    config.DebugConfig
	Clock    clockwork.Clock
	Logger   *logging.Logger
}

// Workflow drives the portal from login to PDF export for one plate at a
// time. It holds no per-run state and never closes the page it is given.
type Workflow struct {
	portal   config.PortalConfig
	loc      config.Locators
	debug    config.DebugConfig
	clock    clockwork.Clock
	log      *logging.Logger
	printURL glob.Glob
}

// NewWorkflow creates a workflow. It fails when the print URL pattern does
// not compile.
func NewWorkflow(opts WorkflowOptions) (*Workflow, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger("enargas")
	}
	if opts.Portal.FilenameSuffix == "" {
		opts.Portal.FilenameSuffix = config.DefaultFilenameSuffix
	}

	w := &Workflow{
		portal: opts.Portal,
		loc:    opts.Locators,
		debug:  opts.Debug,
		clock:  opts.Clock,
		log:    opts.Logger,
	}
	if p := opts.Portal.PrintURLPattern; p != "" && p != "*" {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid print url pattern %q: %w", p, err)
		}
		w.printURL = g
	}
	return w, nil
}

// Run executes the workflow for an already normalized plate on page.
// Classified portal conditions and driver failures are both reported as an
// Outcome; Run never returns an error.
func (w *Workflow) Run(ctx context.Context, page browser.Page, plate string, creds Credentials) (out Outcome) {
	stage := StageLogin
	defer func() {
		w.capture(ctx, page, plate, stage)
		w.log.Infof("Plate %s finished at %s: %s", plate, stage, out.Kind)
	}()

	if failed, ok := w.ensureLogin(ctx, page, creds); !ok {
		return failed
	}

	stage = StageNavigate
	if err := w.navigate(ctx, page); err != nil {
		return Unrecognized(err.Error())
	}

	stage = StageSubmit
	if err := w.submit(ctx, page, plate); err != nil {
		return Unrecognized(err.Error())
	}

	stage = StageResult
	rows, failed, ok := w.awaitResult(ctx, page)
	if !ok {
		return failed
	}

	row, ok := latestRow(rows)
	if !ok {
		return Unrecognized("no hay filas con fecha y acción en el resultado")
	}
	w.log.Debugf("Plate %s: exporting row %d dated %s", plate, row.Index, row.Date.Format("02/01/2006"))

	stage = StageExport
	pdf, pages, err := w.export(ctx, page, row)
	if err != nil {
		return Unrecognized(err.Error())
	}

	stage = StageDone
	return Success(pdf, PDFFilename(plate, w.portal.FilenameSuffix), pages)
}

type loginSignal int

const (
	signalLoggedIn loginSignal = iota + 1
	signalAlreadyActive
	signalInvalidCredentials
)

// ensureLogin returns ok=true when the page is logged in; otherwise out is
// the classified reason.
func (w *Workflow) ensureLogin(ctx context.Context, page browser.Page, creds Credentials) (Outcome, bool) {
	if visible, err := page.IsVisible(ctx, w.loc.LoggedIn); err == nil && visible {
		w.log.Debugf("Reusing logged-in portal session")
		return Outcome{}, true
	}

	if err := page.Goto(ctx, w.portal.URL); err != nil {
		return Unrecognized(err.Error()), false
	}
	if err := page.Fill(ctx, w.loc.Username, creds.Username); err != nil {
		return Unrecognized(err.Error()), false
	}
	if err := page.Fill(ctx, w.loc.Password, creds.Password); err != nil {
		return Unrecognized(err.Error()), false
	}
	if err := page.Click(ctx, w.loc.LoginSubmit); err != nil {
		return Unrecognized(err.Error()), false
	}

	signal, err := browser.Poll(ctx, w.clock, w.portal.LoginTimeout, w.portal.PollInterval,
		func(ctx context.Context) (loginSignal, bool, error) {
			return w.probeLogin(ctx, page)
		})
	if err != nil {
		if errors.Is(err, browser.ErrPollTimeout) {
			return SessionAlreadyActive("no se pudo confirmar el inicio de sesión: " + err.Error()), false
		}
		return Unrecognized(err.Error()), false
	}

	switch signal {
	case signalAlreadyActive:
		return SessionAlreadyActive("la cuenta ya se encuentra logueada en otra sesión"), false
	case signalInvalidCredentials:
		return InvalidCredentials(), false
	default:
		return Outcome{}, true
	}
}

func (w *Workflow) probeLogin(ctx context.Context, page browser.Page) (loginSignal, bool, error) {
	visible, err := page.IsVisible(ctx, w.loc.LoggedIn)
	if err == nil && visible {
		return signalLoggedIn, true, nil
	}

	if w.loc.InvalidCredentials != "" {
		if bad, verr := page.IsVisible(ctx, w.loc.InvalidCredentials); verr == nil && bad {
			return signalInvalidCredentials, true, nil
		}
	}

	if w.loc.LoginMessage != "" {
		text, terr := page.InnerText(ctx, w.loc.LoginMessage)
		if terr != nil {
			return 0, false, terr
		}
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, textAlreadyLoggedIn):
			return signalAlreadyActive, true, nil
		case strings.Contains(lower, textInvalidCredentials):
			return signalInvalidCredentials, true, nil
		}
	}
	return 0, false, err
}

func (w *Workflow) navigate(ctx context.Context, page browser.Page) error {
	if w.loc.QueryMenu != "" {
		if err := page.Click(ctx, w.loc.QueryMenu); err != nil {
			return fmt.Errorf("open query menu: %w", err)
		}
	}
	if err := page.Click(ctx, w.loc.QueryByPlate); err != nil {
		return fmt.Errorf("select query by plate: %w", err)
	}
	return nil
}

func (w *Workflow) submit(ctx context.Context, page browser.Page, plate string) error {
	if err := page.Fill(ctx, w.loc.PlateInput, plate); err != nil {
		return fmt.Errorf("fill plate: %w", err)
	}
	if err := page.Click(ctx, w.loc.PlateSubmit); err != nil {
		return fmt.Errorf("submit plate: %w", err)
	}
	return nil
}

type resultKind int

const (
	resultNotRegistered resultKind = iota + 1
	resultRows
	resultBanner
)

type resultProbe struct {
	kind resultKind
	text string
}

// awaitResult polls the result container. ok=true means rows were found;
// otherwise out is the classified outcome.
func (w *Workflow) awaitResult(ctx context.Context, page browser.Page) ([]resultRow, Outcome, bool) {
	var lastText string

	res, err := browser.Poll(ctx, w.clock, w.portal.ResultTimeout, w.portal.PollInterval,
		func(ctx context.Context) (resultProbe, bool, error) {
			text, err := page.InnerText(ctx, w.loc.ResultContainer)
			if err != nil {
				return resultProbe{}, false, err
			}
			lastText = text

			switch {
			case strings.Contains(strings.ToLower(text), textNoOperations):
				return resultProbe{kind: resultNotRegistered}, true, nil
			case hasDate(text):
				return resultProbe{kind: resultRows}, true, nil
			}

			if w.loc.ErrorBanner != "" {
				if visible, verr := page.IsVisible(ctx, w.loc.ErrorBanner); verr == nil && visible {
					banner, _ := page.InnerText(ctx, w.loc.ErrorBanner)
					return resultProbe{kind: resultBanner, text: banner}, true, nil
				}
			}
			return resultProbe{}, false, nil
		})
	if err != nil {
		if errors.Is(err, browser.ErrPollTimeout) {
			return nil, Unrecognized("no se pudo determinar el resultado de la consulta: " + strings.TrimSpace(lastText)), false
		}
		return nil, Unrecognized(err.Error()), false
	}

	switch res.kind {
	case resultNotRegistered:
		return nil, NotRegistered(), false
	case resultBanner:
		return nil, Unrecognized("error del portal: " + strings.TrimSpace(res.text)), false
	}

	markup, err := page.InnerHTML(ctx, w.loc.ResultContainer)
	if err != nil {
		return nil, Unrecognized(err.Error()), false
	}
	rows, err := parseRows(markup)
	if err != nil {
		return nil, Unrecognized(err.Error()), false
	}
	return rows, Outcome{}, true
}

// rowActionSelector addresses the action control of the row at index.
func (w *Workflow) rowActionSelector(index int) string {
	return fmt.Sprintf("%s %s >> nth=%d >> %s", w.loc.ResultContainer, w.loc.ResultRows, index, w.loc.RowAction)
}

// Logout ends the portal login when the logout control is visible. It is
// meant to run right before the browser is closed.
func (w *Workflow) Logout(ctx context.Context, page browser.Page) error {
	if w.loc.Logout == "" {
		return nil
	}
	visible, err := page.IsVisible(ctx, w.loc.Logout)
	if err != nil {
		return fmt.Errorf("check logout control: %w", err)
	}
	if !visible {
		return nil
	}
	if err := page.Click(ctx, w.loc.Logout); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
