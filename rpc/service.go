// Package rpc exposes the node's HTTP JSON surface: transaction
// submission plus read endpoints over the derived state.
package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Hushnetwork-social/hush-server-node-sub008/blockchain"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/registry"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
	"github.com/Hushnetwork-social/hush-server-node-sub008/dedup"
	"github.com/Hushnetwork-social/hush-server-node-sub008/mempool"
	"github.com/Hushnetwork-social/hush-server-node-sub008/merkle"
)

var log = logrus.WithField("prefix", "rpc")

// Config holds the RPC service dependencies.
type Config struct {
	Addr     string
	Registry *registry.Registry
	Pool     mempool.Pool
	Gate     *dedup.Gate
	Database iface.Database
	Cache    *blockchain.Cache
	Merkle   *merkle.Maintainer
	Bus      *feed.Bus
}

// Service serves the HTTP API.
type Service struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *Config
	server   *http.Server
	startErr error
}

// NewService wires the HTTP service and its routes.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	s := &Service{ctx: ctx, cancel: cancel, cfg: cfg}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/transactions", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/v1/chain/state", s.handleChainState).Methods(http.MethodGet)
	r.HandleFunc("/v1/chain/blocks/{index}", s.handleBlockByIndex).Methods(http.MethodGet)
	r.HandleFunc("/v1/bank/balances/{address}/{token}", s.handleBalance).Methods(http.MethodGet)
	r.HandleFunc("/v1/identities/{address}", s.handleProfile).Methods(http.MethodGet)
	r.HandleFunc("/v1/identities", s.handleSearchProfiles).Methods(http.MethodGet)
	r.HandleFunc("/v1/feeds/{feedId}", s.handleFeed).Methods(http.MethodGet)
	r.HandleFunc("/v1/feeds/{feedId}/messages", s.handleMessages).Methods(http.MethodGet)
	r.HandleFunc("/v1/feeds/{feedId}/participants", s.handleParticipants).Methods(http.MethodGet)
	r.HandleFunc("/v1/feeds/{feedId}/merkle-root", s.handleMerkleRoot).Methods(http.MethodGet)
	r.HandleFunc("/v1/feeds/{feedId}/merkle-roots", s.handleMerkleRoots).Methods(http.MethodGet)
	r.HandleFunc("/v1/feeds/{feedId}/commitments/{commitment}", s.handleCommitment).Methods(http.MethodGet)
	r.HandleFunc("/v1/feeds/{feedId}/membership-proof", s.handleMembershipProof).Methods(http.MethodGet)
	r.HandleFunc("/v1/members/{address}/feeds", s.handleFeedsForMember).Methods(http.MethodGet)
	r.HandleFunc("/v1/feeds/{feedId}/tallies", s.handleTallies).Methods(http.MethodGet)
	r.HandleFunc("/v1/messages/{messageId}/tally", s.handleTally).Methods(http.MethodGet)
	r.HandleFunc("/v1/nullifiers/{nullifier}", s.handleNullifier).Methods(http.MethodGet)
	r.HandleFunc("/v1/nullifiers/{nullifier}/backup", s.handleReactionBackup).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until Stop.
func (s *Service) Start() {
	log.WithField("addr", s.cfg.Addr).Info("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.startErr = err
		log.WithError(err).Error("HTTP server failed")
	}
}

// Stop shuts the server down gracefully.
func (s *Service) Stop() error {
	defer s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Status reports a failed listener.
func (s *Service) Status() error {
	return s.startErr
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Debug("Could not write response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, &errorResponse{Error: msg})
}
