// Package watcher monitors accepted submissions for bridge completion:
// once a signed VAA exists for a submission's sequence, its investigation
// moves from pending to completed.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/trueth-protocol/bridge/internal/bridge"
	"github.com/trueth-protocol/bridge/internal/clients"
	"github.com/trueth-protocol/bridge/internal/store"
)

const taskBuffer = 256

// Task identifies one accepted submission awaiting attestation.
type Task struct {
	InvestigationID primitive.ObjectID
	Emitter         common.Address
	Sequence        string
}

// Attestor obtains signed VAAs; satisfied by clients.GuardianClient.
type Attestor interface {
	AwaitSignedVAA(ctx context.Context, chainID uint16, emitter common.Address, sequence string, onAttempt func(attempt, total int)) ([]byte, error)
}

// InvestigationStore is the slice of the store the watcher needs.
type InvestigationStore interface {
	UpdateBridgeStatus(ctx context.Context, id primitive.ObjectID, status store.BridgeStatus) error
	FindPendingBySequence(ctx context.Context, sequence string) (*store.Investigation, error)
}

// Watcher runs guardian polling per enqueued task and, when a spy client is
// configured, additionally consumes the signed-VAA stream so completions
// land as soon as guardians publish.
type Watcher struct {
	logger   *zap.Logger
	chainID  uint16
	attestor Attestor
	store    InvestigationStore
	spy      *clients.SpyClient

	tasks chan Task
	wg    sync.WaitGroup

	mu   sync.Mutex
	seen map[string]struct{}
}

func New(logger *zap.Logger, chainID uint16, attestor Attestor, investigations InvestigationStore, spy *clients.SpyClient) *Watcher {
	return &Watcher{
		logger:   logger.With(zap.String("component", "Watcher")),
		chainID:  chainID,
		attestor: attestor,
		store:    investigations,
		spy:      spy,
		tasks:    make(chan Task, taskBuffer),
		seen:     make(map[string]struct{}),
	}
}

// Enqueue registers a submission for completion monitoring. Never blocks the
// submission path: if the buffer is full the task is dropped and will be
// picked up by the spy stream or an operator re-check.
func (w *Watcher) Enqueue(task Task) {
	select {
	case w.tasks <- task:
		pendingSubmissions.Inc()
	default:
		w.logger.Warn("Watcher queue full, dropping task",
			zap.String("sequence", task.Sequence),
			zap.String("id", task.InvestigationID.Hex()))
	}
}

// Start consumes tasks until the context ends, then waits for in-flight
// monitoring to finish.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("Completion watcher started", zap.Uint16("chainId", w.chainID))

	if w.spy != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runSpy(ctx)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down watcher, waiting for in-flight monitoring")
			w.wg.Wait()
			w.logger.Info("Watcher shutdown complete")
			return nil
		case task := <-w.tasks:
			w.wg.Add(1)
			go func(task Task) {
				defer w.wg.Done()
				w.processTask(ctx, task)
			}(task)
		}
	}
}

func (w *Watcher) processTask(ctx context.Context, task Task) {
	defer pendingSubmissions.Dec()

	logger := w.logger.With(
		zap.String("id", task.InvestigationID.Hex()),
		zap.String("sequence", task.Sequence))

	vaaBytes, err := w.attestor.AwaitSignedVAA(ctx, w.chainID, task.Emitter, task.Sequence, nil)
	if err != nil {
		if errors.Is(err, clients.ErrAttestationTimeout) {
			logger.Warn("Attestation never arrived, marking timeout")
			w.updateStatus(task.InvestigationID, store.BridgeAttestationTimeout, logger)
		} else {
			logger.Error("Completion monitoring failed", zap.Error(err))
		}
		return
	}

	w.markSeen(vaaBytes)
	logger.Info("Bridge completion attested", zap.Int("vaaLength", len(vaaBytes)))
	w.updateStatus(task.InvestigationID, store.BridgeCompleted, logger)
	completedSubmissions.Inc()
}

// runSpy consumes the spy service's signed-VAA stream and completes any
// pending investigation whose sequence shows up, regardless of polling
// progress.
func (w *Watcher) runSpy(ctx context.Context) {
	stream, err := w.spy.SubscribeSignedVAA(ctx)
	if err != nil {
		w.logger.Error("Spy subscription failed, falling back to polling only", zap.Error(err))
		return
	}
	w.logger.Info("Listening for signed VAAs via spy stream")

	for {
		if ctx.Err() != nil {
			return
		}
		resp, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("Spy stream error, resubscribing in 5s", zap.Error(err))
			time.Sleep(5 * time.Second)
			stream, err = w.spy.SubscribeSignedVAA(ctx)
			if err != nil {
				w.logger.Error("Spy resubscription failed, stopping stream mode", zap.Error(err))
				return
			}
			continue
		}
		w.handleStreamedVAA(ctx, resp.VaaBytes)
	}
}

func (w *Watcher) handleStreamedVAA(ctx context.Context, vaaBytes []byte) {
	if !w.markSeen(vaaBytes) {
		return
	}

	parsed, err := bridge.ParseVAA(vaaBytes)
	if err != nil {
		w.logger.Debug("Ignoring unparseable VAA", zap.Error(err))
		return
	}
	if uint16(parsed.EmitterChain) != w.chainID {
		return
	}

	sequence := fmt.Sprintf("%d", parsed.Sequence)
	inv, err := w.store.FindPendingBySequence(ctx, sequence)
	if err != nil {
		w.logger.Error("Pending lookup failed", zap.Error(err))
		return
	}
	if inv == nil {
		return
	}

	w.logger.Info("Streamed VAA matches pending submission",
		zap.String("id", inv.ID.Hex()),
		zap.String("sequence", sequence))
	w.updateStatus(inv.ID, store.BridgeCompleted, w.logger)
	completedSubmissions.Inc()
}

func (w *Watcher) updateStatus(id primitive.ObjectID, status store.BridgeStatus, logger *zap.Logger) {
	// Separate context: status writes should land even during shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.store.UpdateBridgeStatus(ctx, id, status); err != nil {
		logger.Error("Failed to update bridge status", zap.Error(err))
	}
}

// markSeen records a VAA by content hash, returning false when it was
// already handled.
func (w *Watcher) markSeen(vaaBytes []byte) bool {
	key := vaaKey(vaaBytes)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[key]; ok {
		return false
	}
	w.seen[key] = struct{}{}
	return true
}

func vaaKey(vaaBytes []byte) string {
	hash := sha256.Sum256(vaaBytes)
	return hex.EncodeToString(hash[:])
}
