package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hushnetwork-social/hush-server-node-sub008/blockchain"
	"github.com/Hushnetwork-social/hush-server-node-sub008/config/params"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/registry"
	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/kv"
	"github.com/Hushnetwork-social/hush-server-node-sub008/dedup"
	"github.com/Hushnetwork-social/hush-server-node-sub008/mempool"
	"github.com/Hushnetwork-social/hush-server-node-sub008/merkle"
	"github.com/Hushnetwork-social/hush-server-node-sub008/validation"
)

type fixture struct {
	service *Service
	store   *kv.Store
	cache   *blockchain.Cache
	pool    *mempool.TxPool
	gate    *dedup.Gate
	bus     *feed.Bus
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store, err := kv.NewKVStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	creds := &params.Credentials{PrivateKey: priv, Address: types.AddressFromKey(priv)}

	reg := registry.New()
	require.NoError(t, reg.Register(&registry.Entry{
		Kind:      types.KindSendFunds,
		Validator: validation.NewSigningValidator(types.KindSendFunds, creds),
	}))
	require.NoError(t, reg.Register(&registry.Entry{
		Kind:      types.KindNewFeedMessage,
		Validator: validation.NewSigningValidator(types.KindNewFeedMessage, creds),
	}))

	gate := dedup.NewGate(store.Feeds())
	pool := mempool.NewTxPool(gate.RemoveFromTracking)
	cache := blockchain.NewCache()
	bus := feed.NewBus()
	ctx := context.Background()
	maintainer := merkle.NewMaintainer(ctx, store.Feeds(), bus)
	t.Cleanup(func() {
		require.NoError(t, maintainer.Stop())
	})

	svc := NewService(ctx, &Config{
		Addr:     "127.0.0.1:0",
		Registry: reg,
		Pool:     pool,
		Gate:     gate,
		Database: store,
		Cache:    cache,
		Merkle:   maintainer,
		Bus:      bus,
	})
	return &fixture{service: svc, store: store, cache: cache, pool: pool, gate: gate, bus: bus}
}

func (f *fixture) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.service.server.Handler.ServeHTTP(rec, req)
	return rec
}

func signedBody(t *testing.T, payload types.Payload) []byte {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	unsigned, err := types.NewUnsignedTransaction(payload)
	require.NoError(t, err)
	signed, err := types.SignTransaction(priv, unsigned)
	require.NoError(t, err)
	raw, err := json.Marshal(signed)
	require.NoError(t, err)
	return raw
}

func TestSubmit_AcceptsValidTransfer(t *testing.T) {
	f := setup(t)
	var received int
	f.bus.Subscribe(feed.TransactionReceived, func(_ context.Context, _ *feed.Event) error {
		received++
		return nil
	})

	body := signedBody(t, &types.SendFundsPayload{FromAddress: "0xaa", ToAddress: "0xbb", Token: "HUSH", Amount: "3"})
	rec := f.do(t, http.MethodPost, "/v1/transactions", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, 1, f.pool.Size())
	assert.Equal(t, 1, received)
}

func TestSubmit_RejectsMalformedAndUnknownKinds(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodPost, "/v1/transactions", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A well-formed envelope with an unregistered kind tag.
	rec = f.do(t, http.MethodPost, "/v1/transactions",
		[]byte(`{"payloadKind":"7f1c5a02-8a6e-4f5b-9d3a-1e0b6f2c8d91","payload":"{}"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.pool.Size())
}

func TestSubmit_RejectsTamperedTransaction(t *testing.T) {
	f := setup(t)
	body := signedBody(t, &types.SendFundsPayload{FromAddress: "0xaa", ToAddress: "0xbb", Token: "HUSH", Amount: "3"})

	signed, err := types.DecodeSignedTransaction(body)
	require.NoError(t, err)
	signed.PayloadSize++
	tampered, err := json.Marshal(signed)
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/v1/transactions", tampered)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmit_FeedMessageDuplicateGating(t *testing.T) {
	f := setup(t)
	msgID := types.NewFeedMessageID()
	payload := &types.NewFeedMessagePayload{
		FeedMessageID:       msgID,
		FeedID:              types.NewFeedID(),
		IssuerPublicAddress: "0xaa",
		Content:             "hi",
		Timestamp:           types.Now(),
	}

	rec := f.do(t, http.MethodPost, "/v1/transactions", signedBody(t, payload))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	// The same message id is pending until the first copy leaves the pool.
	rec = f.do(t, http.MethodPost, "/v1/transactions", signedBody(t, payload))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, f.pool.Size())

	// Draining releases the id; a committed copy then reports AlreadyExists.
	f.pool.Drain(10)
	uow, err := f.store.Feeds().Writable()
	require.NoError(t, err)
	_, err = uow.SaveMessage(&types.FeedMessage{FeedMessageID: msgID, FeedID: payload.FeedID, Content: "hi"})
	require.NoError(t, err)
	require.NoError(t, uow.Commit())

	rec = f.do(t, http.MethodPost, "/v1/transactions", signedBody(t, payload))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
}

func TestChainState_UnavailableUntilInitialized(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodGet, "/v1/chain/state", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	current := types.NewBlockID()
	f.cache.Apply(blockchain.CacheUpdate{
		Index:   4,
		Current: current,
		Next:    types.NewBlockID(),
		Present: true,
	})
	rec = f.do(t, http.MethodGet, "/v1/chain/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chainStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, types.BlockIndex(4), resp.Index)
	assert.Equal(t, current, resp.CurrentBlockID)
}

func TestBlockByIndex_Errors(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodGet, "/v1/chain/blocks/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/chain/blocks/0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/chain/blocks/7", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBalance_MissingRowReadsZero(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodGet, "/v1/bank/balances/0xnobody/HUSH", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var row types.AddressBalance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &row))
	assert.Equal(t, "0", row.Balance)
}

func TestProfile_NotFound(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodGet, "/v1/identities/0xghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchProfiles_RequiresAlias(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodGet, "/v1/identities", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedRoutes_InvalidFeedID(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodGet, "/v1/feeds/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMerkleRoot_UnknownFeedServesEmptyRoot(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodGet, "/v1/feeds/"+types.NewFeedID().String()+"/merkle-root", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp merkleRootResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, hexutil.Bytes(merkle.EmptyRoot()), resp.MerkleRoot)
}

func TestMerkleRoots_RecentHistory(t *testing.T) {
	f := setup(t)
	feedID := types.NewFeedID()

	uow, err := f.store.Feeds().Writable()
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		root := make([]byte, 32)
		root[0] = byte(i)
		require.NoError(t, uow.SaveMerkleRoot(&types.MerkleRootHistory{
			FeedID:      feedID,
			MerkleRoot:  root,
			BlockHeight: types.BlockIndex(i),
			CreatedAt:   types.Now(),
		}))
	}
	require.NoError(t, uow.Commit())

	rec := f.do(t, http.MethodGet, "/v1/feeds/"+feedID.String()+"/merkle-roots?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var roots []*types.MerkleRootHistory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roots))
	require.Len(t, roots, 2)
	// Newest first.
	assert.Equal(t, types.BlockIndex(3), roots[0].BlockHeight)
	assert.Equal(t, types.BlockIndex(2), roots[1].BlockHeight)

	rec = f.do(t, http.MethodGet, "/v1/feeds/"+feedID.String()+"/merkle-roots?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommitment_RegisteredLookup(t *testing.T) {
	f := setup(t)
	feedID := types.NewFeedID()
	commitment := make([]byte, 32)
	commitment[0] = 7

	uow, err := f.store.Feeds().Writable()
	require.NoError(t, err)
	require.NoError(t, uow.SaveCommitment(&types.FeedMemberCommitment{
		FeedID:         feedID,
		UserCommitment: commitment,
	}))
	require.NoError(t, uow.Commit())

	rec := f.do(t, http.MethodGet, "/v1/feeds/"+feedID.String()+"/commitments/"+hexutil.Encode(commitment), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp commitmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Registered)

	rec = f.do(t, http.MethodGet, "/v1/feeds/"+feedID.String()+"/commitments/"+hexutil.Encode(make([]byte, 32)), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = commitmentResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Registered)

	rec = f.do(t, http.MethodGet, "/v1/feeds/"+feedID.String()+"/commitments/0xbeef", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMembershipProof_BadCommitment(t *testing.T) {
	f := setup(t)
	path := "/v1/feeds/" + types.NewFeedID().String() + "/membership-proof?commitment=0xbeef"
	rec := f.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNullifier_Queries(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodGet, "/v1/nullifiers/nothex", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	unknown := hexutil.Encode(make([]byte, 32))
	rec = f.do(t, http.MethodGet, "/v1/nullifiers/"+unknown, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp nullifierResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Exists)
}

func TestTallies_BatchReads(t *testing.T) {
	f := setup(t)
	feedID := types.NewFeedID()
	known := types.NewFeedMessageID()
	missing := types.NewFeedMessageID()

	uow, err := f.store.Reactions().Writable()
	require.NoError(t, err)
	require.NoError(t, uow.SaveTally(&types.MessageReactionTally{
		MessageID:  known,
		FeedID:     feedID,
		TotalCount: 2,
		Version:    3,
	}))
	require.NoError(t, uow.Commit())

	path := "/v1/feeds/" + feedID.String() + "/tallies?messageIds=" + known.String() + "," + missing.String()
	rec := f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tallies []*types.MessageReactionTally
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tallies))
	require.Len(t, tallies, 1)
	assert.Equal(t, int64(2), tallies[0].TotalCount)

	rec = f.do(t, http.MethodGet, "/v1/feeds/"+feedID.String()+"/tallies", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/feeds/"+feedID.String()+"/tallies?messageIds=junk", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReactionBackup_ReadsStoredBlob(t *testing.T) {
	f := setup(t)
	nullifier := make([]byte, 32)
	nullifier[0] = 9

	uow, err := f.store.Reactions().Writable()
	require.NoError(t, err)
	require.NoError(t, uow.SaveNullifier(&types.ReactionNullifier{
		Nullifier:       nullifier,
		MessageID:       types.NewFeedMessageID(),
		EncryptedBackup: []byte{1, 2, 3},
		CreatedAt:       types.Now(),
		UpdatedAt:       types.Now(),
	}))
	require.NoError(t, uow.Commit())

	rec := f.do(t, http.MethodGet, "/v1/nullifiers/"+hexutil.Encode(nullifier)+"/backup", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp reactionBackupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, hexutil.Bytes{1, 2, 3}, resp.EncryptedBackup)

	rec = f.do(t, http.MethodGet, "/v1/nullifiers/"+hexutil.Encode(make([]byte, 32))+"/backup", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
