// Instruction wire codec. The format is borsh-shaped: a 1-byte tag followed
// by a tag-specific field layout with little-endian integers, Option<T> as a
// presence byte plus the value, and the proof as a u32 count of
// (32-byte hash, 1-byte side) entries.
package sale

import (
	"encoding/binary"

	"github.com/fortiblox/x1-tokensale/internal/types"
	"github.com/fortiblox/x1-tokensale/pkg/merkle"
)

// Instruction tags.
const (
	TagOpenSale        byte = 0
	TagToggleRunning   byte = 1
	TagConfigureSale   byte = 2
	TagCloseSale       byte = 3
	TagAssignLimit     byte = 4
	TagRegisterBuyer   byte = 5
	TagDeregisterBuyer byte = 6
	TagBuyToken        byte = 7
)

// maxProofNodes bounds proof decoding; a deeper tree than this is never a
// legitimate whitelist.
const maxProofNodes = 256

// Instruction is a decoded engine instruction.
type Instruction interface {
	// Tag returns the instruction's wire tag.
	Tag() byte
}

// OpenSale creates a SaleConfig for an (authority, mint) pair.
type OpenSale struct {
	Price         uint64
	PurchaseLimit uint64
	WhitelistRoot types.Hash
}

// ToggleRunning flips the sale's purchase gate.
type ToggleRunning struct{}

// ConfigureSale applies a partial update; absent fields retain their value.
type ConfigureSale struct {
	Price         *uint64
	PurchaseLimit *uint64
	WhitelistRoot *types.Hash
}

// CloseSale destroys a SaleConfig, sweeping its balance to the authority.
type CloseSale struct{}

// AssignLimit sets a buyer's purchase limit.
type AssignLimit struct {
	NewPurchaseLimit uint64
}

// RegisterBuyer creates a BuyerRecord for (sale config, buyer).
type RegisterBuyer struct{}

// DeregisterBuyer destroys a BuyerRecord, sweeping its balance to the buyer.
type DeregisterBuyer struct{}

// BuyToken purchases tokens, gated by a whitelist membership proof.
type BuyToken struct {
	Amount uint64
	Proof  merkle.Proof
}

// Tag implementations.
func (*OpenSale) Tag() byte        { return TagOpenSale }
func (*ToggleRunning) Tag() byte   { return TagToggleRunning }
func (*ConfigureSale) Tag() byte   { return TagConfigureSale }
func (*CloseSale) Tag() byte       { return TagCloseSale }
func (*AssignLimit) Tag() byte     { return TagAssignLimit }
func (*RegisterBuyer) Tag() byte   { return TagRegisterBuyer }
func (*DeregisterBuyer) Tag() byte { return TagDeregisterBuyer }
func (*BuyToken) Tag() byte        { return TagBuyToken }

// DecodeInstruction decodes raw instruction bytes. Truncated, oversized, or
// tag-unrecognized input fails with no side effects.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, ErrInvalidInstructionData
	}

	d := &decoder{buf: data[1:]}
	var inst Instruction

	switch data[0] {
	case TagOpenSale:
		op := &OpenSale{}
		op.Price = d.u64()
		op.PurchaseLimit = d.u64()
		op.WhitelistRoot = d.hash()
		inst = op

	case TagToggleRunning:
		inst = &ToggleRunning{}

	case TagConfigureSale:
		op := &ConfigureSale{}
		op.Price = d.optionU64()
		op.PurchaseLimit = d.optionU64()
		op.WhitelistRoot = d.optionHash()
		inst = op

	case TagCloseSale:
		inst = &CloseSale{}

	case TagAssignLimit:
		inst = &AssignLimit{NewPurchaseLimit: d.u64()}

	case TagRegisterBuyer:
		inst = &RegisterBuyer{}

	case TagDeregisterBuyer:
		inst = &DeregisterBuyer{}

	case TagBuyToken:
		op := &BuyToken{}
		op.Amount = d.u64()
		proof, err := d.proof()
		if err != nil {
			return nil, err
		}
		op.Proof = proof
		inst = op

	default:
		return nil, ErrInvalidInstructionData
	}

	if d.err != nil {
		return nil, d.err
	}
	if d.off != len(d.buf) {
		return nil, ErrInvalidInstructionData
	}
	return inst, nil
}

// EncodeInstruction encodes an instruction into its wire bytes.
func EncodeInstruction(inst Instruction) []byte {
	buf := []byte{inst.Tag()}

	switch op := inst.(type) {
	case *OpenSale:
		buf = binary.LittleEndian.AppendUint64(buf, op.Price)
		buf = binary.LittleEndian.AppendUint64(buf, op.PurchaseLimit)
		buf = append(buf, op.WhitelistRoot[:]...)

	case *ConfigureSale:
		buf = appendOptionU64(buf, op.Price)
		buf = appendOptionU64(buf, op.PurchaseLimit)
		if op.WhitelistRoot != nil {
			buf = append(buf, 1)
			buf = append(buf, op.WhitelistRoot[:]...)
		} else {
			buf = append(buf, 0)
		}

	case *AssignLimit:
		buf = binary.LittleEndian.AppendUint64(buf, op.NewPurchaseLimit)

	case *BuyToken:
		buf = binary.LittleEndian.AppendUint64(buf, op.Amount)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(op.Proof)))
		for _, node := range op.Proof {
			buf = append(buf, node.Data[:]...)
			buf = append(buf, byte(node.Side))
		}
	}

	return buf
}

func appendOptionU64(buf []byte, v *uint64) []byte {
	if v == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return binary.LittleEndian.AppendUint64(buf, *v)
}

// decoder walks the payload, latching the first error.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.off+n > len(d.buf) {
		d.err = ErrInvalidInstructionData
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *decoder) hash() types.Hash {
	var h types.Hash
	if b := d.take(types.HashSize); b != nil {
		copy(h[:], b)
	}
	return h
}

func (d *decoder) optionU64() *uint64 {
	b := d.take(1)
	if b == nil {
		return nil
	}
	switch b[0] {
	case 0:
		return nil
	case 1:
		v := d.u64()
		if d.err != nil {
			return nil
		}
		return &v
	default:
		d.err = ErrInvalidInstructionData
		return nil
	}
}

func (d *decoder) optionHash() *types.Hash {
	b := d.take(1)
	if b == nil {
		return nil
	}
	switch b[0] {
	case 0:
		return nil
	case 1:
		h := d.hash()
		if d.err != nil {
			return nil
		}
		return &h
	default:
		d.err = ErrInvalidInstructionData
		return nil
	}
}

// proof decodes the Merkle proof vector. Truncated hash bytes map to
// CodeFailedToDecodeSha256Hash; a bad count or side byte maps to
// CodeIncompatibleProof.
func (d *decoder) proof() (merkle.Proof, error) {
	b := d.take(4)
	if b == nil {
		return nil, newError(CodeIncompatibleProof, "proof")
	}
	count := binary.LittleEndian.Uint32(b)
	if count > maxProofNodes {
		return nil, newError(CodeIncompatibleProof, "proof")
	}

	proof := make(merkle.Proof, 0, count)
	for i := uint32(0); i < count; i++ {
		hashBytes := d.take(types.HashSize)
		if hashBytes == nil {
			return nil, newError(CodeFailedToDecodeSha256Hash, "proof")
		}
		sideByte := d.take(1)
		if sideByte == nil {
			return nil, newError(CodeIncompatibleProof, "proof")
		}

		var node merkle.ProofNode
		copy(node.Data[:], hashBytes)
		switch sideByte[0] {
		case byte(merkle.SideLeft):
			node.Side = merkle.SideLeft
		case byte(merkle.SideRight):
			node.Side = merkle.SideRight
		default:
			return nil, newError(CodeIncompatibleProof, "proof")
		}
		proof = append(proof, node)
	}
	return proof, nil
}
