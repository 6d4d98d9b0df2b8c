package rpc

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
	"github.com/Hushnetwork-social/hush-server-node-sub008/merkle"
)

const defaultMessageLimit = 100

type chainStateResponse struct {
	Index           types.BlockIndex `json:"index"`
	CurrentBlockID  types.BlockID    `json:"currentBlockId"`
	PreviousBlockID types.BlockID    `json:"previousBlockId"`
	NextBlockID     types.BlockID    `json:"nextBlockId"`
}

func (s *Service) handleChainState(w http.ResponseWriter, _ *http.Request) {
	snap := s.cfg.Cache.Snapshot()
	if !snap.Present {
		writeError(w, http.StatusServiceUnavailable, "chain not initialized")
		return
	}
	writeJSON(w, http.StatusOK, &chainStateResponse{
		Index:           snap.Index,
		CurrentBlockID:  snap.Current,
		PreviousBlockID: snap.Previous,
		NextBlockID:     snap.Next,
	})
}

func (s *Service) handleBlockByIndex(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseInt(mux.Vars(r)["index"], 10, 64)
	if err != nil || index < int64(types.GenesisBlockIndex) {
		writeError(w, http.StatusBadRequest, "invalid block index")
		return
	}
	block, err := s.cfg.Database.Blockchain().BlockByIndex(r.Context(), types.BlockIndex(index))
	if err != nil {
		notFoundOr500(w, err, "block not found")
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (s *Service) handleBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	balance, err := s.cfg.Database.Bank().Balance(r.Context(), vars["address"], vars["token"])
	if err != nil {
		notFoundOr500(w, err, "balance not found")
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (s *Service) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.cfg.Database.Identity().Profile(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		notFoundOr500(w, err, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Service) handleSearchProfiles(w http.ResponseWriter, r *http.Request) {
	alias := r.URL.Query().Get("alias")
	if alias == "" {
		writeError(w, http.StatusBadRequest, "missing alias query parameter")
		return
	}
	profiles, err := s.cfg.Database.Identity().SearchProfiles(r.Context(), alias)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Service) handleFeed(w http.ResponseWriter, r *http.Request) {
	feedID, ok := feedIDVar(w, r)
	if !ok {
		return
	}
	fd, err := s.cfg.Database.Feeds().Feed(r.Context(), feedID)
	if err != nil {
		notFoundOr500(w, err, "feed not found")
		return
	}
	writeJSON(w, http.StatusOK, fd)
}

func (s *Service) handleMessages(w http.ResponseWriter, r *http.Request) {
	feedID, ok := feedIDVar(w, r)
	if !ok {
		return
	}
	limit := defaultMessageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	messages, err := s.cfg.Database.Feeds().MessagesForFeed(r.Context(), feedID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read messages")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Service) handleParticipants(w http.ResponseWriter, r *http.Request) {
	feedID, ok := feedIDVar(w, r)
	if !ok {
		return
	}
	participants, err := s.cfg.Database.Feeds().Participants(r.Context(), feedID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read participants")
		return
	}
	writeJSON(w, http.StatusOK, participants)
}

func (s *Service) handleFeedsForMember(w http.ResponseWriter, r *http.Request) {
	feeds, err := s.cfg.Database.Feeds().FeedsForMember(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read feeds")
		return
	}
	writeJSON(w, http.StatusOK, feeds)
}

type merkleRootResponse struct {
	FeedID     types.FeedID  `json:"feedId"`
	MerkleRoot hexutil.Bytes `json:"merkleRoot"`
}

func (s *Service) handleMerkleRoot(w http.ResponseWriter, r *http.Request) {
	feedID, ok := feedIDVar(w, r)
	if !ok {
		return
	}
	root, err := s.cfg.Merkle.Root(r.Context(), feedID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read merkle root")
		return
	}
	writeJSON(w, http.StatusOK, &merkleRootResponse{FeedID: feedID, MerkleRoot: root})
}

const defaultRootLimit = 10

// handleMerkleRoots returns the recent root history of a feed, newest
// first. Provers pick any root inside the grace window, so clients need
// more than just the latest one.
func (s *Service) handleMerkleRoots(w http.ResponseWriter, r *http.Request) {
	feedID, ok := feedIDVar(w, r)
	if !ok {
		return
	}
	limit := defaultRootLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	roots, err := s.cfg.Database.Feeds().RecentMerkleRoots(r.Context(), feedID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read merkle roots")
		return
	}
	writeJSON(w, http.StatusOK, roots)
}

type commitmentResponse struct {
	FeedID     types.FeedID  `json:"feedId"`
	Commitment hexutil.Bytes `json:"commitment"`
	Registered bool          `json:"registered"`
}

func (s *Service) handleCommitment(w http.ResponseWriter, r *http.Request) {
	feedID, ok := feedIDVar(w, r)
	if !ok {
		return
	}
	commitment, err := hexutil.Decode(mux.Vars(r)["commitment"])
	if err != nil || len(commitment) != 32 {
		writeError(w, http.StatusBadRequest, "commitment must be 32 hex-encoded bytes")
		return
	}
	registered, err := s.cfg.Database.Feeds().IsCommitmentRegistered(r.Context(), feedID, commitment)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read commitment")
		return
	}
	writeJSON(w, http.StatusOK, &commitmentResponse{FeedID: feedID, Commitment: commitment, Registered: registered})
}

type membershipProofResponse struct {
	FeedID     types.FeedID       `json:"feedId"`
	MerkleRoot hexutil.Bytes      `json:"merkleRoot"`
	Path       []merkle.ProofStep `json:"path"`
}

func (s *Service) handleMembershipProof(w http.ResponseWriter, r *http.Request) {
	feedID, ok := feedIDVar(w, r)
	if !ok {
		return
	}
	commitment, err := hexutil.Decode(r.URL.Query().Get("commitment"))
	if err != nil || len(commitment) != 32 {
		writeError(w, http.StatusBadRequest, "commitment must be 32 hex-encoded bytes")
		return
	}
	root, path, err := s.cfg.Merkle.ProveMembership(r.Context(), feedID, commitment)
	if err != nil {
		if errors.Is(err, merkle.ErrLeafNotFound) {
			writeError(w, http.StatusNotFound, "commitment not in feed")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not build proof")
		return
	}
	writeJSON(w, http.StatusOK, &membershipProofResponse{FeedID: feedID, MerkleRoot: root, Path: path})
}

func (s *Service) handleTally(w http.ResponseWriter, r *http.Request) {
	messageID, err := types.ParseFeedMessageID(mux.Vars(r)["messageId"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}
	tally, err := s.cfg.Database.Reactions().Tally(r.Context(), messageID)
	if err != nil {
		notFoundOr500(w, err, "tally not found")
		return
	}
	writeJSON(w, http.StatusOK, tally)
}

// handleTallies reads the tallies of a batch of messages in one round trip.
// Clients pass the visible message ids of a feed page as a comma-separated
// query parameter; misses and messages of other feeds are silently skipped.
func (s *Service) handleTallies(w http.ResponseWriter, r *http.Request) {
	feedID, ok := feedIDVar(w, r)
	if !ok {
		return
	}
	raw := r.URL.Query().Get("messageIds")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing messageIds query parameter")
		return
	}
	parts := strings.Split(raw, ",")
	ids := make([]types.FeedMessageID, 0, len(parts))
	for _, part := range parts {
		id, err := types.ParseFeedMessageID(strings.TrimSpace(part))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid message id")
			return
		}
		ids = append(ids, id)
	}
	tallies, err := s.cfg.Database.Reactions().Tallies(r.Context(), feedID, ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read tallies")
		return
	}
	writeJSON(w, http.StatusOK, tallies)
}

type reactionBackupResponse struct {
	Nullifier       hexutil.Bytes   `json:"nullifier"`
	EncryptedBackup hexutil.Bytes   `json:"encryptedBackup"`
	UpdatedAt       types.Timestamp `json:"updatedAt"`
}

// handleReactionBackup returns the encrypted backup blob a voter stored with
// its nullifier, so a client can restore its own vote on a new device.
func (s *Service) handleReactionBackup(w http.ResponseWriter, r *http.Request) {
	nullifier, err := hexutil.Decode(mux.Vars(r)["nullifier"])
	if err != nil || len(nullifier) != 32 {
		writeError(w, http.StatusBadRequest, "nullifier must be 32 hex-encoded bytes")
		return
	}
	record, err := s.cfg.Database.Reactions().Nullifier(r.Context(), nullifier)
	if err != nil {
		notFoundOr500(w, err, "nullifier not found")
		return
	}
	writeJSON(w, http.StatusOK, &reactionBackupResponse{
		Nullifier:       record.Nullifier,
		EncryptedBackup: record.EncryptedBackup,
		UpdatedAt:       record.UpdatedAt,
	})
}

type nullifierResponse struct {
	Exists bool `json:"exists"`
}

func (s *Service) handleNullifier(w http.ResponseWriter, r *http.Request) {
	nullifier, err := hexutil.Decode(mux.Vars(r)["nullifier"])
	if err != nil || len(nullifier) != 32 {
		writeError(w, http.StatusBadRequest, "nullifier must be 32 hex-encoded bytes")
		return
	}
	exists, err := s.cfg.Database.Reactions().NullifierExists(r.Context(), nullifier)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read nullifier")
		return
	}
	writeJSON(w, http.StatusOK, &nullifierResponse{Exists: exists})
}

func feedIDVar(w http.ResponseWriter, r *http.Request) (types.FeedID, bool) {
	feedID, err := types.ParseFeedID(mux.Vars(r)["feedId"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid feed id")
		return types.EmptyFeedID, false
	}
	return feedID, true
}

func notFoundOr500(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, iface.ErrNotFound) {
		writeError(w, http.StatusNotFound, msg)
		return
	}
	log.WithError(err).Error("Storage read failed")
	writeError(w, http.StatusInternalServerError, "storage error")
}
