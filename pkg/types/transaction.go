package types

import (
	"fmt"
	"sort"
)

// Transaction represents a complete transaction with signatures.
type Transaction struct {
	Signatures []Signature
	Message    Message
}

// Message represents a transaction message (the part that gets signed).
type Message struct {
	Header          MessageHeader
	AccountKeys     []Pubkey
	RecentBlockhash Hash
	Instructions    []CompiledInstruction
}

// MessageHeader contains counts for account types.
type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction is an instruction with account indices.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndices []uint8
	Data           []byte
}

// Instruction is an expanded instruction with full account info.
type Instruction struct {
	ProgramID Pubkey        `json:"program_id"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      []byte        `json:"data"`
}

// NewTransaction compiles instructions into an unsigned transaction.
//
// Account keys are ordered payer first, then signers before non-signers and
// writable before read-only within each group, with programs last.
func NewTransaction(payer Pubkey, blockhash Hash, instructions ...Instruction) *Transaction {
	type entry struct {
		meta      AccountMeta
		isPayer   bool
		isProgram bool
		order     int
	}

	var entries []*entry
	index := make(map[Pubkey]*entry)
	add := func(meta AccountMeta, isPayer, isProgram bool) {
		if e, ok := index[meta.Pubkey]; ok {
			e.meta.IsSigner = e.meta.IsSigner || meta.IsSigner
			e.meta.IsWritable = e.meta.IsWritable || meta.IsWritable
			e.isPayer = e.isPayer || isPayer
			e.isProgram = e.isProgram && isProgram
			return
		}
		e := &entry{meta: meta, isPayer: isPayer, isProgram: isProgram, order: len(entries)}
		entries = append(entries, e)
		index[meta.Pubkey] = e
	}

	add(AccountMeta{Pubkey: payer, IsSigner: true, IsWritable: true}, true, false)
	for _, ix := range instructions {
		for _, meta := range ix.Accounts {
			add(meta, false, false)
		}
		add(AccountMeta{Pubkey: ix.ProgramID}, false, true)
	}

	rank := func(e *entry) int {
		switch {
		case e.isPayer:
			return 0
		case e.meta.IsSigner && e.meta.IsWritable:
			return 1
		case e.meta.IsSigner:
			return 2
		case e.meta.IsWritable:
			return 3
		case !e.isProgram:
			return 4
		default:
			return 5
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		ri, rj := rank(entries[i]), rank(entries[j])
		if ri != rj {
			return ri < rj
		}
		return entries[i].order < entries[j].order
	})

	msg := Message{RecentBlockhash: blockhash}
	positions := make(map[Pubkey]uint8, len(entries))
	for i, e := range entries {
		msg.AccountKeys = append(msg.AccountKeys, e.meta.Pubkey)
		positions[e.meta.Pubkey] = uint8(i)
		if e.meta.IsSigner {
			msg.Header.NumRequiredSignatures++
			if !e.meta.IsWritable {
				msg.Header.NumReadonlySignedAccounts++
			}
		} else if !e.meta.IsWritable {
			msg.Header.NumReadonlyUnsignedAccounts++
		}
	}

	for _, ix := range instructions {
		compiled := CompiledInstruction{
			ProgramIDIndex: positions[ix.ProgramID],
			Data:           ix.Data,
		}
		for _, meta := range ix.Accounts {
			compiled.AccountIndices = append(compiled.AccountIndices, positions[meta.Pubkey])
		}
		msg.Instructions = append(msg.Instructions, compiled)
	}

	return &Transaction{
		Signatures: make([]Signature, msg.Header.NumRequiredSignatures),
		Message:    msg,
	}
}

// IsSigner reports whether the account key at index i must sign.
func (m *Message) IsSigner(i int) bool {
	return i < int(m.Header.NumRequiredSignatures)
}

// IsWritable reports whether the account key at index i is writable.
func (m *Message) IsWritable(i int) bool {
	numSigners := int(m.Header.NumRequiredSignatures)
	if i < numSigners {
		return i < numSigners-int(m.Header.NumReadonlySignedAccounts)
	}
	numUnsignedWritable := len(m.AccountKeys) - numSigners - int(m.Header.NumReadonlyUnsignedAccounts)
	return i-numSigners < numUnsignedWritable
}

// Signers returns the account keys that must sign the message.
func (m *Message) Signers() []Pubkey {
	n := int(m.Header.NumRequiredSignatures)
	if n > len(m.AccountKeys) {
		n = len(m.AccountKeys)
	}
	return m.AccountKeys[:n]
}

// Serialize serializes the message for signing.
func (m *Message) Serialize() ([]byte, error) {
	if len(m.AccountKeys) > 0xff {
		return nil, fmt.Errorf("too many account keys: %d", len(m.AccountKeys))
	}

	buf := make([]byte, 0, 256)

	// Header
	buf = append(buf, m.Header.NumRequiredSignatures)
	buf = append(buf, m.Header.NumReadonlySignedAccounts)
	buf = append(buf, m.Header.NumReadonlyUnsignedAccounts)

	buf = appendCompactU16(buf, len(m.AccountKeys))
	for _, key := range m.AccountKeys {
		buf = append(buf, key[:]...)
	}

	buf = append(buf, m.RecentBlockhash[:]...)

	buf = appendCompactU16(buf, len(m.Instructions))
	for _, ix := range m.Instructions {
		buf = append(buf, ix.ProgramIDIndex)

		buf = appendCompactU16(buf, len(ix.AccountIndices))
		buf = append(buf, ix.AccountIndices...)

		buf = appendCompactU16(buf, len(ix.Data))
		buf = append(buf, ix.Data...)
	}

	return buf, nil
}

// Serialize serializes the signed transaction into wire format.
func (tx *Transaction) Serialize() ([]byte, error) {
	msg, err := tx.Message.Serialize()
	if err != nil {
		return nil, err
	}
	buf := appendCompactU16(nil, len(tx.Signatures))
	for _, sig := range tx.Signatures {
		buf = append(buf, sig[:]...)
	}
	return append(buf, msg...), nil
}

// appendCompactU16 appends a compact u16 encoding.
func appendCompactU16(buf []byte, val int) []byte {
	if val < 0x80 {
		return append(buf, byte(val))
	}
	if val < 0x4000 {
		return append(buf, byte(val&0x7f|0x80), byte(val>>7))
	}
	return append(buf, byte(val&0x7f|0x80), byte((val>>7)&0x7f|0x80), byte(val>>14))
}

// ParseCompactU16 parses a compact-u16 from a byte slice.
func ParseCompactU16(data []byte) (val uint16, bytesRead int, err error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("empty data")
	}

	b0 := data[0]
	if b0 < 0x80 {
		return uint16(b0), 1, nil
	}

	if len(data) < 2 {
		return 0, 0, fmt.Errorf("incomplete compact-u16")
	}
	b1 := data[1]
	if b1 < 0x80 {
		return uint16(b0&0x7f) | uint16(b1)<<7, 2, nil
	}

	if len(data) < 3 {
		return 0, 0, fmt.Errorf("incomplete compact-u16")
	}
	b2 := data[2]
	return uint16(b0&0x7f) | uint16(b1&0x7f)<<7 | uint16(b2)<<14, 3, nil
}

// DeserializeTransaction deserializes a transaction from wire format.
func DeserializeTransaction(data []byte) (*Transaction, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("transaction too short")
	}

	offset := 0

	numSigs, n, err := ParseCompactU16(data[offset:])
	if err != nil {
		return nil, fmt.Errorf("parse num signatures: %w", err)
	}
	offset += n

	sigs := make([]Signature, numSigs)
	for i := range sigs {
		if offset+64 > len(data) {
			return nil, fmt.Errorf("truncated signature %d", i)
		}
		copy(sigs[i][:], data[offset:offset+64])
		offset += 64
	}

	msg, err := deserializeMessage(data[offset:])
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	return &Transaction{
		Signatures: sigs,
		Message:    *msg,
	}, nil
}

func deserializeMessage(data []byte) (*Message, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("message too short")
	}

	offset := 0

	header := MessageHeader{
		NumRequiredSignatures:       data[offset],
		NumReadonlySignedAccounts:   data[offset+1],
		NumReadonlyUnsignedAccounts: data[offset+2],
	}
	offset += 3

	numKeys, n, err := ParseCompactU16(data[offset:])
	if err != nil {
		return nil, fmt.Errorf("parse num account keys: %w", err)
	}
	offset += n

	keys := make([]Pubkey, numKeys)
	for i := range keys {
		if offset+32 > len(data) {
			return nil, fmt.Errorf("truncated account key %d", i)
		}
		copy(keys[i][:], data[offset:offset+32])
		offset += 32
	}

	if offset+32 > len(data) {
		return nil, fmt.Errorf("truncated blockhash")
	}
	var blockhash Hash
	copy(blockhash[:], data[offset:offset+32])
	offset += 32

	numIx, n, err := ParseCompactU16(data[offset:])
	if err != nil {
		return nil, fmt.Errorf("parse num instructions: %w", err)
	}
	offset += n

	instructions := make([]CompiledInstruction, numIx)
	for i := range instructions {
		ix, bytesRead, err := deserializeInstruction(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("parse instruction %d: %w", i, err)
		}
		instructions[i] = *ix
		offset += bytesRead
	}

	return &Message{
		Header:          header,
		AccountKeys:     keys,
		RecentBlockhash: blockhash,
		Instructions:    instructions,
	}, nil
}

func deserializeInstruction(data []byte) (*CompiledInstruction, int, error) {
	offset := 0

	if len(data) < 1 {
		return nil, 0, fmt.Errorf("empty instruction")
	}
	programIDIndex := data[offset]
	offset++

	numAccounts, n, err := ParseCompactU16(data[offset:])
	if err != nil {
		return nil, 0, fmt.Errorf("parse num accounts: %w", err)
	}
	offset += n

	if offset+int(numAccounts) > len(data) {
		return nil, 0, fmt.Errorf("truncated account indices")
	}
	accountIndices := make([]uint8, numAccounts)
	copy(accountIndices, data[offset:offset+int(numAccounts)])
	offset += int(numAccounts)

	dataLen, n, err := ParseCompactU16(data[offset:])
	if err != nil {
		return nil, 0, fmt.Errorf("parse data len: %w", err)
	}
	offset += n

	if offset+int(dataLen) > len(data) {
		return nil, 0, fmt.Errorf("truncated instruction data")
	}
	ixData := make([]byte, dataLen)
	copy(ixData, data[offset:offset+int(dataLen)])
	offset += int(dataLen)

	return &CompiledInstruction{
		ProgramIDIndex: programIDIndex,
		AccountIndices: accountIndices,
		Data:           ixData,
	}, offset, nil
}

// FeePayer returns the fee payer (first signer).
func (tx *Transaction) FeePayer() Pubkey {
	if len(tx.Message.AccountKeys) == 0 {
		return ZeroPubkey
	}
	return tx.Message.AccountKeys[0]
}

// ID returns the transaction signature (first signature).
func (tx *Transaction) ID() Signature {
	if len(tx.Signatures) == 0 {
		return ZeroSignature
	}
	return tx.Signatures[0]
}
