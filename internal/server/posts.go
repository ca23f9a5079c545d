package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/trueth-protocol/bridge/internal/bridge"
	"github.com/trueth-protocol/bridge/internal/store"
	"github.com/trueth-protocol/bridge/internal/watcher"
)

type submitRequest struct {
	Title      string                   `json:"title"`
	Content    string                   `json:"content"`
	Tags       []string                 `json:"tags"`
	Evidence   []string                 `json:"evidence"`
	Files      []store.FileRef          `json:"files"`
	UserWallet string                   `json:"userWallet"`
	UserID     string                   `json:"userId"`
	BridgeTx   bridge.BridgeTransaction `json:"bridgeTx"`
}

type submitData struct {
	PostID        string               `json:"postId"`
	BridgeStatus  store.BridgeStatus   `json:"bridgeStatus"`
	Investigation *store.Investigation `json:"investigation"`
}

type submitResponse struct {
	Success bool       `json:"success"`
	Data    submitData `json:"data"`
}

func (req *submitRequest) validate() error {
	switch {
	case strings.TrimSpace(req.Title) == "":
		return fmt.Errorf("title is required")
	case strings.TrimSpace(req.Content) == "":
		return fmt.Errorf("content is required")
	case strings.TrimSpace(req.UserWallet) == "":
		return fmt.Errorf("userWallet is required")
	case strings.TrimSpace(req.BridgeTx.Hash) == "":
		return fmt.Errorf("bridgeTx.hash is required")
	case strings.TrimSpace(req.BridgeTx.Amount) == "":
		return fmt.Errorf("bridgeTx.amount is required")
	case strings.TrimSpace(req.BridgeTx.WormholeSequence) == "":
		return fmt.Errorf("bridgeTx.wormholeSequence is required")
	}
	return nil
}

// handlePostsCreate accepts an investigation submission after independently
// proving its bridge payment on-chain. Validation failures never touch the
// chain.
func (s *Server) handlePostsCreate(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ERROR(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return
	}
	if err := req.validate(); err != nil {
		submissionsTotal.WithLabelValues("invalid").Inc()
		ERROR(w, http.StatusBadRequest, err)
		return
	}

	outcome := s.verifier.VerifyBridgeTransaction(r.Context(), req.BridgeTx)
	verificationsTotal.WithLabelValues(string(outcome.Reason)).Inc()
	if !outcome.Verified {
		submissionsTotal.WithLabelValues("rejected").Inc()
		ERROR(w, http.StatusBadRequest, fmt.Errorf("bridge transaction verification failed"))
		return
	}

	inv := &store.Investigation{
		Title:        req.Title,
		Content:      req.Content,
		Tags:         req.Tags,
		Evidence:     req.Evidence,
		Files:        req.Files,
		UserWallet:   req.UserWallet,
		UserID:       req.UserID,
		BridgeTx:     req.BridgeTx,
		BridgeStatus: store.BridgePending,
	}
	id, err := s.store.Insert(r.Context(), inv)
	if err != nil {
		// A replayed payment is a client error, not a store outage.
		if errors.Is(err, store.ErrDuplicateBridgeTx) {
			s.logger.Warn("Rejecting replayed bridge transaction",
				zap.String("txHash", req.BridgeTx.Hash))
			submissionsTotal.WithLabelValues("duplicate").Inc()
			ERROR(w, http.StatusConflict, store.ErrDuplicateBridgeTx)
			return
		}
		s.logger.Error("Failed to store investigation", zap.Error(err))
		submissionsTotal.WithLabelValues("store_error").Inc()
		ERROR(w, http.StatusInternalServerError, fmt.Errorf("failed to store investigation"))
		return
	}

	s.watcher.Enqueue(watcher.Task{
		InvestigationID: id,
		Emitter:         s.emitter,
		Sequence:        req.BridgeTx.WormholeSequence,
	})
	s.listCache.Flush()
	submissionsTotal.WithLabelValues("accepted").Inc()

	s.logger.Info("Investigation accepted",
		zap.String("postId", id.Hex()),
		zap.String("txHash", req.BridgeTx.Hash),
		zap.String("sequence", req.BridgeTx.WormholeSequence))

	JSON(w, http.StatusOK, submitResponse{
		Success: true,
		Data: submitData{
			PostID:        id.Hex(),
			BridgeStatus:  inv.BridgeStatus,
			Investigation: inv,
		},
	})
}

// handlePostsList returns stored investigations, newest first, behind a
// short TTL cache.
func (s *Server) handlePostsList(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.ParseInt(r.URL.Query().Get("page"), 10, 64)
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.ParseInt(r.URL.Query().Get("pageSize"), 10, 64)
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	filter := store.Filter{
		Status:     store.BridgeStatus(r.URL.Query().Get("status")),
		UserWallet: r.URL.Query().Get("wallet"),
	}

	key := fmt.Sprintf("posts:%s:%s:%d:%d", filter.Status, filter.UserWallet, page, pageSize)
	if cached, ok := s.listCache.Get(key); ok {
		JSON(w, http.StatusOK, cached)
		return
	}

	result, err := s.store.List(r.Context(), filter, page, pageSize)
	if err != nil {
		s.logger.Error("Failed to list investigations", zap.Error(err))
		ERROR(w, http.StatusInternalServerError, fmt.Errorf("failed to list investigations"))
		return
	}

	s.listCache.Set(key, result)
	JSON(w, http.StatusOK, result)
}
