package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/quatro-rpa/pkg/enargas"
	"github.com/entrhq/quatro-rpa/pkg/logging"
)

type memStore struct {
	mu       sync.Mutex
	procesos map[int64]*Proceso
	creds    map[int64]*StoredCredentials
	saved    map[int64]Result
	saveErr  error
}

func newMemStore() *memStore {
	return &memStore{
		procesos: map[int64]*Proceso{
			7: {ID: 7, UserID: 3, Patente: "AB123CD", Estado: EstadoEnProceso},
		},
		creds: map[int64]*StoredCredentials{
			3: {UserID: 3, Username: "taller01", EncryptedPassword: "token"},
		},
		saved: make(map[int64]Result),
	}
}

func (s *memStore) GetProceso(_ context.Context, id int64) (*Proceso, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.procesos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *memStore) GetCredentials(_ context.Context, userID int64) (*StoredCredentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *memStore) SaveResult(_ context.Context, id int64, r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved[id] = r
	return nil
}

type mapCipher map[string]string

func (c mapCipher) Decrypt(token string) string { return c[token] }

type stubAutomation struct {
	out   enargas.Outcome
	err   error
	calls []string
	creds []enargas.Credentials
}

func (a *stubAutomation) RunAutomation(_ context.Context, identifier string, creds enargas.Credentials, _ *bool) (enargas.Outcome, error) {
	a.calls = append(a.calls, identifier)
	a.creds = append(a.creds, creds)
	return a.out, a.err
}

type recordingQueue struct {
	tasks []Task
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, t Task) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, t)
	return nil
}

func str(s string) *string { return &s }

func TestProcessRPAJobOutcomes(t *testing.T) {
	pdf := []byte("%PDF-1.4 certificate")

	tests := []struct {
		name     string
		out      enargas.Outcome
		err      error
		want     Result
		wantTask bool
	}{
		{
			name: "success",
			out:  enargas.Success(pdf, "AB123CD_ENARGAS.pdf", 1),
			want: Result{
				Estado:      EstadoCompletado,
				PDFData:     pdf,
				PDFFilename: str("AB123CD_ENARGAS.pdf"),
			},
			wantTask: true,
		},
		{
			name: "not registered",
			out:  enargas.NotRegistered(),
			want: Result{Estado: EstadoCompletado, Resultado: str("Patente NO registrada")},
		},
		{
			name: "session already active",
			out:  enargas.SessionAlreadyActive("logged in elsewhere"),
			want: Result{
				Estado:       EstadoCompletado,
				Resultado:    str("Sesión Activa"),
				ErrorMessage: str("Reintentar"),
			},
		},
		{
			name: "invalid credentials",
			out:  enargas.InvalidCredentials(),
			want: Result{
				Estado:       EstadoCompletado,
				Resultado:    str("Credenciales inválidas"),
				ErrorMessage: str("Credenciales de Enargas inválidas. Revisa Usuario > Credenciales."),
			},
		},
		{
			name: "unrecognized",
			out:  enargas.Unrecognized("no se pudo determinar el resultado de la consulta: Cargando"),
			want: Result{
				Estado:       EstadoError,
				ErrorMessage: str("no se pudo determinar el resultado de la consulta: Cargando"),
			},
		},
		{
			name: "unrecognized without detail",
			out:  enargas.Unrecognized(""),
			want: Result{Estado: EstadoError, ErrorMessage: str("Error desconocido en el proceso RPA.")},
		},
		{
			name: "browser could not start",
			err:  errors.New("acquire browser session: chromium missing"),
			want: Result{Estado: EstadoError, ErrorMessage: str("acquire browser session: chromium missing")},
		},
		{
			name: "invalid plate",
			err:  enargas.ErrInvalidPlate,
			want: Result{Estado: EstadoError, ErrorMessage: str("invalid plate")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			auto := &stubAutomation{out: tt.out, err: tt.err}
			queue := &recordingQueue{}
			r := NewRunner(store, mapCipher{"token": "s3creta"}, auto, queue, logging.Nop())

			require.NoError(t, r.ProcessRPAJob(context.Background(), 7))

			assert.Equal(t, tt.want, store.saved[7])
			assert.Equal(t, []string{"AB123CD"}, auto.calls)
			assert.Equal(t, enargas.Credentials{Username: "taller01", Password: "s3creta"}, auto.creds[0])

			if tt.wantTask {
				require.Len(t, queue.tasks, 1)
				assert.Equal(t, KindPDF, queue.tasks[0].Kind)
				assert.Equal(t, int64(7), queue.tasks[0].ProcesoID)
			} else {
				assert.Empty(t, queue.tasks)
			}
		})
	}
}

func TestProcessRPAJobCredentialChecks(t *testing.T) {
	t.Run("no credentials row", func(t *testing.T) {
		store := newMemStore()
		delete(store.creds, 3)
		auto := &stubAutomation{}
		r := NewRunner(store, mapCipher{}, auto, nil, logging.Nop())

		require.NoError(t, r.ProcessRPAJob(context.Background(), 7))
		assert.Equal(t, Result{Estado: EstadoError, ErrorMessage: str(MsgCredentialsMissing)}, store.saved[7])
		assert.Empty(t, auto.calls, "automation is never started")
	})

	t.Run("password does not decrypt", func(t *testing.T) {
		store := newMemStore()
		auto := &stubAutomation{}
		r := NewRunner(store, mapCipher{}, auto, nil, logging.Nop())

		require.NoError(t, r.ProcessRPAJob(context.Background(), 7))
		assert.Equal(t, Result{Estado: EstadoError, ErrorMessage: str(MsgPasswordMissing)}, store.saved[7])
		assert.Empty(t, auto.calls)
	})

	t.Run("empty username", func(t *testing.T) {
		store := newMemStore()
		auto := &stubAutomation{err: enargas.ErrMissingCredentials}
		r := NewRunner(store, mapCipher{"token": "s3creta"}, auto, nil, logging.Nop())

		require.NoError(t, r.ProcessRPAJob(context.Background(), 7))
		assert.Equal(t, MsgCredentialsMissing, *store.saved[7].ErrorMessage)
	})
}

func TestProcessRPAJobMissingProceso(t *testing.T) {
	store := newMemStore()
	auto := &stubAutomation{}
	r := NewRunner(store, mapCipher{}, auto, nil, logging.Nop())

	require.NoError(t, r.ProcessRPAJob(context.Background(), 99))
	assert.Empty(t, store.saved)
	assert.Empty(t, auto.calls)
}

func TestProcessRPAJobErrors(t *testing.T) {
	t.Run("save fails", func(t *testing.T) {
		store := newMemStore()
		store.saveErr = errors.New("connection reset")
		r := NewRunner(store, mapCipher{"token": "x"}, &stubAutomation{out: enargas.NotRegistered()}, nil, logging.Nop())

		err := r.ProcessRPAJob(context.Background(), 7)
		assert.ErrorContains(t, err, "connection reset")
	})

	t.Run("pdf task not queued", func(t *testing.T) {
		store := newMemStore()
		queue := &recordingQueue{err: errors.New("redis down")}
		auto := &stubAutomation{out: enargas.Success([]byte("%PDF-"), "AB123CD_ENARGAS.pdf", 0)}
		r := NewRunner(store, mapCipher{"token": "x"}, auto, queue, logging.Nop())

		err := r.ProcessRPAJob(context.Background(), 7)
		assert.ErrorContains(t, err, "redis down")
		assert.Equal(t, EstadoCompletado, store.saved[7].Estado, "result is saved before queueing")
	})
}

func TestFormatError(t *testing.T) {
	assert.Equal(t, MsgUnknownError, FormatError(""))
	assert.Equal(t, MsgUnknownError, FormatError(" \n\t"))
	assert.Equal(t, "boom", FormatError("  boom\n"))

	long := strings.Repeat("a", 2000) + strings.Repeat("é", 1000)
	got := FormatError(long)
	assert.Equal(t, 1200, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, strings.Repeat("é", 1000)), "keeps the tail")
}
