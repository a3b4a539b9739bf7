// Package jobs connects the automation to the rest of the system: it reads
// queued work from Redis, loads the proceso and credentials from Postgres,
// runs the automation and stores the classified result.
package jobs

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a proceso or credentials row does not exist.
var ErrNotFound = errors.New("not found")

// Estado values of a proceso.
const (
	EstadoEnProceso  = "en proceso"
	EstadoCompletado = "completado"
	EstadoError      = "error"
)

// Proceso is one plate check requested by a user.
type Proceso struct {
	ID           int64
	UserID       int64
	Patente      string
	Estado       string
	Resultado    *string
	PDFFilename  *string
	ErrorMessage *string
}

// StoredCredentials are the portal credentials of a user as persisted. The
// password is Fernet-encrypted.
type StoredCredentials struct {
	UserID            int64
	Username          string
	EncryptedPassword string
}

// Result is what a finished job writes back to its proceso. Nil fields are
// stored as NULL.
type Result struct {
	Estado       string
	Resultado    *string
	PDFData      []byte
	PDFFilename  *string
	ErrorMessage *string
}

// Store is the persistence the runner needs.
type Store interface {
	GetProceso(ctx context.Context, id int64) (*Proceso, error)
	GetCredentials(ctx context.Context, userID int64) (*StoredCredentials, error)
	SaveResult(ctx context.Context, id int64, r Result) error
}

func strPtr(s string) *string {
	return &s
}
