// Package ecvote implements the encrypted reaction vote arithmetic. A vote
// is an ElGamal ciphertext pair (C1, C2) per emoji slot, each point given as
// two 32-byte bn256 coordinates. Tallies are combined additively, so a vote
// can later be subtracted out again without ever being decrypted.
package ecvote

import (
	"bytes"

	"github.com/ethereum/go-ethereum/crypto/bn256"
	"github.com/pkg/errors"
)

const (
	// Slots is the number of emoji slots per vote.
	Slots = 6
	// CoordinateSize is the byte width of one curve coordinate.
	CoordinateSize = 32
)

// ErrBadShape is returned when a coordinate array does not hold exactly six
// 32-byte elements.
var ErrBadShape = errors.New("ciphertext coordinates must be six 32-byte elements")

// Ciphertext is one encrypted vote or one running tally: six point pairs.
type Ciphertext struct {
	C1X [][]byte
	C1Y [][]byte
	C2X [][]byte
	C2Y [][]byte
}

// Zero returns the additive identity tally (all points at infinity).
func Zero() Ciphertext {
	z := Ciphertext{
		C1X: make([][]byte, Slots),
		C1Y: make([][]byte, Slots),
		C2X: make([][]byte, Slots),
		C2Y: make([][]byte, Slots),
	}
	for i := 0; i < Slots; i++ {
		z.C1X[i] = make([]byte, CoordinateSize)
		z.C1Y[i] = make([]byte, CoordinateSize)
		z.C2X[i] = make([]byte, CoordinateSize)
		z.C2Y[i] = make([]byte, CoordinateSize)
	}
	return z
}

// Validate checks the coordinate shape.
func (c Ciphertext) Validate() error {
	for _, coords := range [][][]byte{c.C1X, c.C1Y, c.C2X, c.C2Y} {
		if len(coords) != Slots {
			return ErrBadShape
		}
		for _, el := range coords {
			if len(el) != CoordinateSize {
				return ErrBadShape
			}
		}
	}
	return nil
}

// IsZero reports whether every coordinate is zero.
func (c Ciphertext) IsZero() bool {
	zero := make([]byte, CoordinateSize)
	for _, coords := range [][][]byte{c.C1X, c.C1Y, c.C2X, c.C2Y} {
		for _, el := range coords {
			if !bytes.Equal(el, zero) {
				return false
			}
		}
	}
	return true
}

// Equal reports coordinate-wise equality.
func (c Ciphertext) Equal(other Ciphertext) bool {
	for i := 0; i < Slots; i++ {
		if !bytes.Equal(c.C1X[i], other.C1X[i]) || !bytes.Equal(c.C1Y[i], other.C1Y[i]) ||
			!bytes.Equal(c.C2X[i], other.C2X[i]) || !bytes.Equal(c.C2Y[i], other.C2Y[i]) {
			return false
		}
	}
	return true
}

func unmarshalPoint(x, y []byte) (*bn256.G1, error) {
	buf := make([]byte, 0, 2*CoordinateSize)
	buf = append(buf, x...)
	buf = append(buf, y...)
	p := new(bn256.G1)
	if _, err := p.Unmarshal(buf); err != nil {
		return nil, errors.Wrap(err, "invalid curve point")
	}
	return p, nil
}

// Combine returns t + v when sign is positive and t - v when negative,
// point-wise over all six slots. Neither operand is mutated.
func Combine(t, v Ciphertext, sign int) (Ciphertext, error) {
	if err := t.Validate(); err != nil {
		return Ciphertext{}, errors.Wrap(err, "tally")
	}
	if err := v.Validate(); err != nil {
		return Ciphertext{}, errors.Wrap(err, "vote")
	}
	out := Zero()
	for i := 0; i < Slots; i++ {
		if err := combineSlot(&out, t, v, i, true, sign); err != nil {
			return Ciphertext{}, err
		}
		if err := combineSlot(&out, t, v, i, false, sign); err != nil {
			return Ciphertext{}, err
		}
	}
	return out, nil
}

func combineSlot(out *Ciphertext, t, v Ciphertext, i int, first bool, sign int) error {
	var tx, ty, vx, vy []byte
	if first {
		tx, ty, vx, vy = t.C1X[i], t.C1Y[i], v.C1X[i], v.C1Y[i]
	} else {
		tx, ty, vx, vy = t.C2X[i], t.C2Y[i], v.C2X[i], v.C2Y[i]
	}
	tp, err := unmarshalPoint(tx, ty)
	if err != nil {
		return err
	}
	vp, err := unmarshalPoint(vx, vy)
	if err != nil {
		return err
	}
	if sign < 0 {
		vp.Neg(vp)
	}
	sum := new(bn256.G1).Add(tp, vp)
	enc := sum.Marshal()
	if first {
		out.C1X[i] = enc[:CoordinateSize]
		out.C1Y[i] = enc[CoordinateSize:]
	} else {
		out.C2X[i] = enc[:CoordinateSize]
		out.C2Y[i] = enc[CoordinateSize:]
	}
	return nil
}
