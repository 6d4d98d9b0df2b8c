package types

import (
	"crypto/ecdsa"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// UnsignedBlock links a batch of validated transactions into the chain. Its
// canonical JSON is what the block producer signs.
type UnsignedBlock struct {
	ID           BlockID                 `json:"id"`
	Timestamp    Timestamp               `json:"timestamp"`
	Index        BlockIndex              `json:"index"`
	PreviousID   BlockID                 `json:"previousId"`
	NextID       BlockID                 `json:"nextId"`
	Transactions []*ValidatedTransaction `json:"transactions"`
}

// SignedBlock is an unsigned block plus the producer's signature.
type SignedBlock struct {
	UnsignedBlock
	ProducerSignature *SignatureInfo `json:"producerSignature"`
}

// FinalizedBlock is a signed block plus the content hash of its signed JSON.
// This is the persisted, immutable form.
type FinalizedBlock struct {
	SignedBlock
	Hash string `json:"hash"`
}

// CanonicalJSON renders the stable signing form of the unsigned block.
func (u *UnsignedBlock) CanonicalJSON() ([]byte, error) {
	enc, err := json.Marshal(u)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode unsigned block")
	}
	return enc, nil
}

// SignBlock attaches the producer signature.
func SignBlock(priv *ecdsa.PrivateKey, u *UnsignedBlock) (*SignedBlock, error) {
	canonical, err := u.CanonicalJSON()
	if err != nil {
		return nil, err
	}
	sig, err := Sign(priv, canonical)
	if err != nil {
		return nil, err
	}
	return &SignedBlock{UnsignedBlock: *u, ProducerSignature: sig}, nil
}

// CanonicalJSON renders the stable hashing form of the signed block.
func (s *SignedBlock) CanonicalJSON() ([]byte, error) {
	enc, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode signed block")
	}
	return enc, nil
}

// ExtractUnsigned projects the signed block back to its unsigned form.
func (s *SignedBlock) ExtractUnsigned() *UnsignedBlock {
	u := s.UnsignedBlock
	return &u
}

// VerifyProducerSignature checks the producer signature against the
// unsigned form.
func (s *SignedBlock) VerifyProducerSignature() bool {
	canonical, err := s.ExtractUnsigned().CanonicalJSON()
	if err != nil {
		return false
	}
	return Verify(canonical, s.ProducerSignature)
}

// FinalizeBlock computes the content hash of the signed block.
func FinalizeBlock(s *SignedBlock) (*FinalizedBlock, error) {
	canonical, err := s.CanonicalJSON()
	if err != nil {
		return nil, err
	}
	return &FinalizedBlock{
		SignedBlock: *s,
		Hash:        hexutil.Encode(crypto.Keccak256(canonical)),
	}, nil
}

// DecodeSignedBlock parses a signed block from wire JSON.
func DecodeSignedBlock(raw []byte) (*SignedBlock, error) {
	s := &SignedBlock{}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, errors.Wrap(err, "could not decode signed block")
	}
	return s, nil
}

// DecodeFinalizedBlock parses a finalized block from its persisted JSON.
func DecodeFinalizedBlock(raw []byte) (*FinalizedBlock, error) {
	f := &FinalizedBlock{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, errors.Wrap(err, "could not decode finalized block")
	}
	return f, nil
}

// BlockchainBlock is the persisted block row. The canonical JSON of the
// finalized block is stored verbatim so a full replay from genesis is
// always possible.
type BlockchainBlock struct {
	ID         BlockID    `json:"id"`
	Index      BlockIndex `json:"index"`
	PreviousID BlockID    `json:"previousId"`
	NextID     BlockID    `json:"nextId"`
	Hash       string     `json:"hash"`
	BlockJSON  []byte     `json:"blockJson"`
}

// Row converts a finalized block into its persisted form.
func (f *FinalizedBlock) Row() (*BlockchainBlock, error) {
	enc, err := json.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode finalized block")
	}
	return &BlockchainBlock{
		ID:         f.ID,
		Index:      f.Index,
		PreviousID: f.PreviousID,
		NextID:     f.NextID,
		Hash:       f.Hash,
		BlockJSON:  enc,
	}, nil
}

// BlockchainState is the single chain-tip row.
type BlockchainState struct {
	ID         BlockchainStateID `json:"id"`
	Index      BlockIndex        `json:"index"`
	CurrentID  BlockID           `json:"currentId"`
	PreviousID BlockID           `json:"previousId"`
	NextID     BlockID           `json:"nextId"`
}

// GenesisState is the well-known initial chain state: index 1, the genesis
// block id as current, and no previous block.
func GenesisState() *BlockchainState {
	return &BlockchainState{
		ID:         ChainStateID,
		Index:      GenesisBlockIndex,
		CurrentID:  GenesisBlockID,
		PreviousID: EmptyBlockID,
		NextID:     EmptyBlockID,
	}
}

// IsGenesis reports whether the state is the well-known initial value that
// has not yet been committed (no minted next block id).
func (s *BlockchainState) IsGenesis() bool {
	return s.Index == GenesisBlockIndex && s.PreviousID.IsEmpty() && s.NextID.IsEmpty()
}
