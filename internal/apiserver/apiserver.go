// Package apiserver exposes AUDITOR's six HTTP endpoints (§6.1) over the
// relational Store. Unlike the teacher, which mounts its resources onto a
// Kubernetes aggregated apiserver (k8s.io/apiserver, CRDs, OpenAPI
// generation), AUDITOR has no CRD or admission concept anywhere in scope
// (§1): it is a standalone service with a handful of fixed, bit-exact
// paths, so it is built directly on net/http.
package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"k8s.io/klog/v2"

	"github.com/auditor-project/auditor/internal/sqlstore"
	"github.com/auditor-project/auditor/pkg/domain"
)

// Options configures the Server (§6.1, §6.4).
type Options struct {
	Addr string

	// IgnoreRecordExistsError, when true, makes a RecordExists conflict on
	// ingest look like any other success (plain 200) instead of returning
	// the ERR_RECORD_EXISTS marker body (§7).
	IgnoreRecordExistsError bool

	// Events optionally publishes an ingest notification after each
	// successful insert. Nil disables it.
	Events EventPublisher
}

// recordStore is the subset of *sqlstore.Store the apiserver depends on.
type recordStore interface {
	Insert(ctx context.Context, r domain.Record) error
	BulkInsert(ctx context.Context, records []domain.Record) error
	Update(ctx context.Context, r domain.Record) error
	Scan(ctx context.Context, plan sqlstore.ScanPlan) (*sqlstore.Rows, error)
}

// Server is AUDITOR's HTTP surface.
type Server struct {
	store                   recordStore
	ignoreRecordExistsError bool
	events                  EventPublisher
	httpServer              *http.Server
}

// New builds a Server bound to store.
func New(store recordStore, opts Options) *Server {
	s := &Server{
		store:                   store,
		ignoreRecordExistsError: opts.IgnoreRecordExistsError,
		events:                  opts.Events,
	}
	s.httpServer = &http.Server{
		Addr:    opts.Addr,
		Handler: s.routes(),
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health_check", withObservability("health_check", s.healthCheck))
	mux.HandleFunc("POST /record", withObservability("create_record", s.createRecord))
	mux.HandleFunc("POST /records", withObservability("bulk_create_records", s.bulkCreateRecords))
	mux.HandleFunc("PUT /record", withObservability("update_record", s.updateRecord))
	mux.HandleFunc("GET /records", withObservability("list_records", s.listRecords))
	mux.HandleFunc("GET /record/{record_id}", withObservability("get_record", s.getRecord))
	return mux
}

// Run starts the HTTP server and blocks until ctx is canceled, at which
// point it stops accepting new requests, completes in-flight ones, and
// returns (§5's shutdown contract).
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		klog.InfoS("server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("apiserver: graceful shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
