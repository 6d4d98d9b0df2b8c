package rpc

import (
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/dedup"
	"github.com/Hushnetwork-social/hush-server-node-sub008/validation"
)

const maxSubmitBody = 1 << 20 // 1 MiB

type submitResponse struct {
	ID     types.TransactionID `json:"id"`
	Status string              `json:"status"`
}

// handleSubmit is the transaction intake: decode, validate and countersign,
// run feed messages through the idempotency gate, then pool and announce.
func (s *Service) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSubmitBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}
	signed, err := s.cfg.Registry.DecodeSigned(body)
	if err != nil {
		if errors.Is(err, types.ErrUnknownPayloadKind) {
			writeError(w, http.StatusBadRequest, "unknown payload kind")
			return
		}
		writeError(w, http.StatusBadRequest, "malformed transaction")
		return
	}

	validator, err := s.cfg.Registry.ValidatorFor(signed.PayloadKind)
	if err != nil || validator == nil {
		writeError(w, http.StatusBadRequest, "unknown payload kind")
		return
	}
	validated, err := validator.ValidateAndSign(r.Context(), signed)
	if err != nil {
		if errors.Is(err, validation.ErrValidationFailed) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.WithError(err).WithField("tx", signed.ID).Error("Validation errored")
		writeError(w, http.StatusInternalServerError, "validation error")
		return
	}

	// Feed messages pass the duplicate gate between validation and pooling.
	// TryTrack decides races: the loser is reported as pending.
	if validated.PayloadKind == types.KindNewFeedMessage {
		msgID, err := messageIDOf(validated)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed message payload")
			return
		}
		switch s.cfg.Gate.Check(r.Context(), msgID) {
		case dedup.Pending:
			writeError(w, http.StatusConflict, "message is pending")
			return
		case dedup.AlreadyExists:
			writeError(w, http.StatusConflict, "message already exists")
			return
		case dedup.Rejected:
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		if !s.cfg.Gate.TryTrack(msgID) {
			writeError(w, http.StatusConflict, "message is pending")
			return
		}
	}

	s.cfg.Pool.Add(validated)
	s.cfg.Bus.Publish(r.Context(), &feed.Event{
		Type: feed.TransactionReceived,
		Data: &feed.TransactionReceivedData{ID: validated.ID, Kind: validated.PayloadKind},
	})
	writeJSON(w, http.StatusAccepted, &submitResponse{ID: validated.ID, Status: "accepted"})
}

func messageIDOf(tx *types.ValidatedTransaction) (types.FeedMessageID, error) {
	payload, err := tx.DecodedPayload()
	if err != nil {
		return types.EmptyFeedMessageID, err
	}
	msg, ok := payload.(*types.NewFeedMessagePayload)
	if !ok {
		return types.EmptyFeedMessageID, errors.New("not a feed message payload")
	}
	return msg.FeedMessageID, nil
}
