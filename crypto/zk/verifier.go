// Package zk defines the proof-verification boundary of the reaction
// pipeline. The node treats the verifier as an opaque predicate; the real
// circuit verifier is an external collaborator plugged in at wiring time.
package zk

import "context"

// PublicInputs are the public inputs of one reaction proof attempt against
// one candidate merkle root.
type PublicInputs struct {
	Nullifier        []byte
	VoteC1X          [][]byte
	VoteC1Y          [][]byte
	VoteC2X          [][]byte
	VoteC2Y          [][]byte
	MessageID        []byte
	FeedPublicKey    []byte
	MerkleRoot       []byte
	AuthorCommitment []byte
}

// Verifier decides whether a proof holds for the given public inputs under
// the named circuit version.
type Verifier interface {
	Verify(ctx context.Context, proof []byte, inputs *PublicInputs, circuitVersion string) (bool, error)
}

// DevVerifier accepts every well-formed proof. It backs the dev-mode
// circuit versions used in tests and local networks.
type DevVerifier struct{}

// Verify accepts any non-empty proof.
func (DevVerifier) Verify(_ context.Context, proof []byte, _ *PublicInputs, _ string) (bool, error) {
	return len(proof) > 0, nil
}
