package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/entrhq/quatro-rpa/pkg/enargas"
	"github.com/entrhq/quatro-rpa/pkg/logging"
)

// Messages stored in error_message.
const (
	MsgCredentialsMissing = "Credenciales de Enargas no configuradas."
	MsgPasswordMissing    = "Contrasena de Enargas no configurada."
	MsgRetry              = "Reintentar"
	MsgInvalidCredentials = "Credenciales de Enargas inválidas. Revisa Usuario > Credenciales."
	MsgUnknownError       = "Error desconocido en el proceso RPA."
)

// maxErrorRunes bounds the diagnostic text stored with failed jobs.
const maxErrorRunes = 1200

// Automation runs one plate check.
type Automation interface {
	RunAutomation(ctx context.Context, identifier string, creds enargas.Credentials, headless *bool) (enargas.Outcome, error)
}

// Decrypter turns a stored password token into plaintext.
type Decrypter interface {
	Decrypt(token string) string
}

// Enqueuer accepts follow-up tasks.
type Enqueuer interface {
	Enqueue(ctx context.Context, t Task) error
}

// Runner executes RPA tasks end to end.
type Runner struct {
	store      Store
	cipher     Decrypter
	automation Automation
	pdfQueue   Enqueuer
	log        *logging.Logger
}

// NewRunner creates a runner. pdfQueue may be nil when no PDF parser
// consumes exported certificates.
func NewRunner(store Store, cipher Decrypter, automation Automation, pdfQueue Enqueuer, log *logging.Logger) *Runner {
	if log == nil {
		log = logging.NewLogger("jobs")
	}
	return &Runner{
		store:      store,
		cipher:     cipher,
		automation: automation,
		pdfQueue:   pdfQueue,
		log:        log,
	}
}

// ProcessRPAJob checks the plate of one proceso and stores the outcome.
// A missing proceso is skipped. Errors are returned only when the result
// could not be persisted or the follow-up task could not be queued.
func (r *Runner) ProcessRPAJob(ctx context.Context, procesoID int64) error {
	p, err := r.store.GetProceso(ctx, procesoID)
	if errors.Is(err, ErrNotFound) {
		r.log.Warnf("Proceso %d no longer exists, skipping", procesoID)
		return nil
	}
	if err != nil {
		return err
	}

	res := r.run(ctx, p)
	if err := r.store.SaveResult(ctx, p.ID, res); err != nil {
		return err
	}
	r.log.Infof("Proceso %d (%s) stored as %s", p.ID, p.Patente, res.Estado)

	if res.Estado == EstadoCompletado && len(res.PDFData) > 0 && r.pdfQueue != nil {
		if err := r.pdfQueue.Enqueue(ctx, NewTask(KindPDF, p.ID)); err != nil {
			return fmt.Errorf("proceso %d saved but pdf task not queued: %w", p.ID, err)
		}
	}
	return nil
}

func (r *Runner) run(ctx context.Context, p *Proceso) Result {
	stored, err := r.store.GetCredentials(ctx, p.UserID)
	if errors.Is(err, ErrNotFound) {
		return failed(MsgCredentialsMissing)
	}
	if err != nil {
		return failed(FormatError(err.Error()))
	}

	password := r.cipher.Decrypt(stored.EncryptedPassword)
	if password == "" {
		return failed(MsgPasswordMissing)
	}

	creds := enargas.Credentials{Username: stored.Username, Password: password}
	out, err := r.automation.RunAutomation(ctx, p.Patente, creds, nil)
	if errors.Is(err, enargas.ErrMissingCredentials) {
		return failed(MsgCredentialsMissing)
	}
	if err != nil {
		return failed(FormatError(err.Error()))
	}
	return resultFor(out)
}

// resultFor maps an automation outcome to the stored result.
func resultFor(out enargas.Outcome) Result {
	switch out.Kind {
	case enargas.KindSuccess:
		return Result{
			Estado:      EstadoCompletado,
			PDFData:     out.PDF,
			PDFFilename: strPtr(out.Filename),
		}
	case enargas.KindNotRegistered:
		return Result{Estado: EstadoCompletado, Resultado: strPtr(out.Label())}
	case enargas.KindSessionAlreadyActive:
		return Result{
			Estado:       EstadoCompletado,
			Resultado:    strPtr(out.Label()),
			ErrorMessage: strPtr(MsgRetry),
		}
	case enargas.KindInvalidCredentials:
		return Result{
			Estado:       EstadoCompletado,
			Resultado:    strPtr(out.Label()),
			ErrorMessage: strPtr(MsgInvalidCredentials),
		}
	default:
		return failed(FormatError(out.Detail))
	}
}

func failed(msg string) Result {
	return Result{Estado: EstadoError, ErrorMessage: strPtr(msg)}
}

// FormatError keeps the last characters of a diagnostic so it fits the
// error_message column and still shows where the run ended.
func FormatError(detail string) string {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		return MsgUnknownError
	}
	runes := []rune(detail)
	if len(runes) > maxErrorRunes {
		runes = runes[len(runes)-maxErrorRunes:]
	}
	return string(runes)
}
