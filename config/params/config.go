// Package params holds the node configuration: production intervals,
// batch bounds and the block-producer (stacker) credentials.
package params

import (
	"crypto/ecdsa"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// StackerInfo is the block producer's credential material as configured.
// The private signing key is hex-encoded secp256k1.
type StackerInfo struct {
	PublicSigningAddress string `json:"publicSigningAddress"`
	PrivateSigningKey    string `json:"privateSigningKey"`
	PublicEncryptAddress string `json:"publicEncryptAddress"`
	PrivateEncryptKey    string `json:"privateEncryptKey"`
}

// Credentials is the parsed, usable form of StackerInfo.
type Credentials struct {
	PrivateKey *ecdsa.PrivateKey
	Address    string
}

// Credentials parses the signing key. The configured public address, when
// set, must match the derived one.
func (s *StackerInfo) Credentials() (*Credentials, error) {
	if s.PrivateSigningKey == "" {
		return nil, errors.New("missing stacker private signing key")
	}
	priv, err := crypto.HexToECDSA(s.PrivateSigningKey)
	if err != nil {
		return nil, errors.Wrap(err, "invalid stacker private signing key")
	}
	addr := crypto.PubkeyToAddress(priv.PublicKey).Hex()
	if s.PublicSigningAddress != "" && s.PublicSigningAddress != addr {
		return nil, errors.Errorf("configured stacker address %s does not match key address %s", s.PublicSigningAddress, addr)
	}
	return &Credentials{PrivateKey: priv, Address: addr}, nil
}

// NodeConfig is the full node configuration.
type NodeConfig struct {
	DataDir         string        `json:"dataDir"`
	BlockInterval   time.Duration `json:"-"`
	BlockIntervalMs int64         `json:"blockIntervalMs"`
	MaxDrainBatch   int           `json:"maxDrainBatch"`
	MerkleRootGrace int           `json:"merkleRootGracePeriod"`
	BlockReward     string        `json:"blockReward"`
	RewardToken     string        `json:"rewardToken"`
	HTTPAddr        string        `json:"httpAddr"`
	MetricsAddr     string        `json:"metricsAddr"`
	// DevProofVerification accepts any well-formed reaction proof instead
	// of running a circuit verifier. The only alternative today is an
	// external verifier, so the default is on.
	DevProofVerification bool        `json:"devProofVerification"`
	Stacker              StackerInfo `json:"stackerInfo"`
}

// DefaultConfig returns the defaults prior to flag and file overlay.
func DefaultConfig() *NodeConfig {
	return &NodeConfig{
		DataDir:         "",
		BlockIntervalMs: 5000,
		MaxDrainBatch:   1000,
		MerkleRootGrace: 3,
		BlockReward:     "1",
		RewardToken:     "HUSH",
		HTTPAddr:        ":8780",
		MetricsAddr:     ":8781",

		DevProofVerification: true,
	}
}

// LoadFile overlays a yaml configuration file onto the config.
func (c *NodeConfig) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "could not read config file")
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return errors.Wrap(err, "could not parse config file")
	}
	return nil
}

// Finalize derives computed fields and validates the result.
func (c *NodeConfig) Finalize() error {
	if c.BlockIntervalMs <= 0 {
		return errors.New("block interval must be positive")
	}
	if c.MaxDrainBatch <= 0 {
		return errors.New("max drain batch must be positive")
	}
	if c.MerkleRootGrace <= 0 {
		return errors.New("merkle root grace period must be positive")
	}
	c.BlockInterval = time.Duration(c.BlockIntervalMs) * time.Millisecond
	return nil
}
