// Package server exposes the content-submission API that gates
// investigation posts on bridge verification.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/trueth-protocol/bridge/internal/bridge"
	"github.com/trueth-protocol/bridge/internal/cache"
	"github.com/trueth-protocol/bridge/internal/store"
	"github.com/trueth-protocol/bridge/internal/verify"
	"github.com/trueth-protocol/bridge/internal/watcher"
)

// Verifier proves claimed bridge transactions on-chain; satisfied by
// *verify.Verifier.
type Verifier interface {
	VerifyBridgeTransaction(ctx context.Context, claim bridge.BridgeTransaction) verify.Outcome
}

// InvestigationStore is the slice of the store the handlers need; satisfied
// by *store.Store.
type InvestigationStore interface {
	Insert(ctx context.Context, inv *store.Investigation) (primitive.ObjectID, error)
	List(ctx context.Context, filter store.Filter, page, pageSize int64) (*store.Page, error)
}

// CompletionWatcher receives accepted submissions for attestation
// monitoring; satisfied by *watcher.Watcher.
type CompletionWatcher interface {
	Enqueue(task watcher.Task)
}

type Server struct {
	router    chi.Router
	logger    *zap.Logger
	store     InvestigationStore
	verifier  Verifier
	watcher   CompletionWatcher
	listCache *cache.TTLCache
	emitter   common.Address
	opts      Opts
}

type Opts struct {
	Logger   *zap.Logger
	Port     string
	Store    InvestigationStore
	Verifier Verifier
	Watcher  CompletionWatcher
	// Emitter is the token bridge address whose published messages the
	// completion watcher tracks.
	Emitter common.Address
}

func New(opts Opts) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    opts.Logger.With(zap.String("component", "Server")),
		store:     opts.Store,
		verifier:  opts.Verifier,
		watcher:   opts.Watcher,
		listCache: cache.New(30 * time.Second),
		emitter:   opts.Emitter,
		opts:      opts,
	}
	s.routes()
	return s
}

// Start runs the HTTP server until the context ends, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + s.opts.Port,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", zap.String("port", s.opts.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %v", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Fprintf(w, "%s", err.Error())
	}
}

// ERROR writes an {"error": ...} response.
func ERROR(w http.ResponseWriter, statusCode int, err error) {
	JSON(w, statusCode, map[string]interface{}{"error": err.Error()})
}
