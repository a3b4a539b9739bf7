package enargas

// Kind classifies the result of one automation run.
type Kind int

const (
	// KindSuccess means the certificate PDF was exported
	KindSuccess Kind = iota
	// KindNotRegistered means the portal has no operations for the plate
	KindNotRegistered
	// KindSessionAlreadyActive means the account is logged in elsewhere, or
	// the login could not be confirmed
	KindSessionAlreadyActive
	// KindInvalidCredentials means the portal rejected the stored credentials
	KindInvalidCredentials
	// KindUnrecognized covers timeouts, portal errors and driver failures
	KindUnrecognized
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindNotRegistered:
		return "not_registered"
	case KindSessionAlreadyActive:
		return "session_already_active"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindUnrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}

// Result labels stored with finished jobs.
const (
	LabelNotRegistered      = "Patente NO registrada"
	LabelSessionActive      = "Sesión Activa"
	LabelInvalidCredentials = "Credenciales inválidas"
)

// Outcome is the classified result of one run. PDF, Filename and Pages are
// set for KindSuccess; Detail carries diagnostic text for the other kinds.
type Outcome struct {
	Kind     Kind
	PDF      []byte
	Filename string
	// Pages is the page count of PDF, 0 when it could not be read
	Pages  int
	Detail string
}

func Success(pdf []byte, filename string, pages int) Outcome {
	return Outcome{Kind: KindSuccess, PDF: pdf, Filename: filename, Pages: pages}
}

func NotRegistered() Outcome {
	return Outcome{Kind: KindNotRegistered}
}

func SessionAlreadyActive(detail string) Outcome {
	return Outcome{Kind: KindSessionAlreadyActive, Detail: detail}
}

func InvalidCredentials() Outcome {
	return Outcome{Kind: KindInvalidCredentials}
}

func Unrecognized(detail string) Outcome {
	return Outcome{Kind: KindUnrecognized, Detail: detail}
}

// Label returns the human-readable result for the job store, or "" for
// outcomes that have none.
func (o Outcome) Label() string {
	switch o.Kind {
	case KindNotRegistered:
		return LabelNotRegistered
	case KindSessionAlreadyActive:
		return LabelSessionActive
	case KindInvalidCredentials:
		return LabelInvalidCredentials
	default:
		return ""
	}
}

// RecyclesSession reports whether the session must be closed and the
// cooldown applied after this outcome.
func (o Outcome) RecyclesSession() bool {
	return o.Kind == KindSessionAlreadyActive || o.Kind == KindUnrecognized
}
