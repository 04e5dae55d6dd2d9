package accounts

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fortiblox/x1-token/pkg/types"
)

// Stored record layout:
//   - lamports:   8 bytes (little-endian uint64)
//   - owner:      32 bytes
//   - executable: 1 byte (0 or 1)
//   - data_len:   4 bytes (little-endian uint32)
//   - data:       data_len bytes
const recordHeaderSize = 8 + 32 + 1 + 4

var (
	// ErrInvalidAccountData is returned when a stored record is malformed.
	ErrInvalidAccountData = errors.New("invalid account record")

	errNilAccount = errors.New("cannot store nil account")
)

// SerializeAccount encodes an account as a stored record.
func SerializeAccount(account *types.Account) ([]byte, error) {
	if account == nil {
		return nil, errNilAccount
	}
	buf := make([]byte, recordHeaderSize+len(account.Data))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(account.Lamports))
	copy(buf[8:40], account.Owner[:])
	if account.Executable {
		buf[40] = 1
	}
	binary.LittleEndian.PutUint32(buf[41:45], uint32(len(account.Data)))
	copy(buf[recordHeaderSize:], account.Data)
	return buf, nil
}

// DeserializeAccount decodes a stored record. The record must be exactly as
// long as its header says.
func DeserializeAccount(data []byte) (*types.Account, error) {
	if len(data) < recordHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the %d-byte header",
			ErrInvalidAccountData, len(data), recordHeaderSize)
	}
	dataLen := int(binary.LittleEndian.Uint32(data[41:45]))
	if len(data) != recordHeaderSize+dataLen {
		return nil, fmt.Errorf("%w: header declares %d data bytes, record carries %d",
			ErrInvalidAccountData, dataLen, len(data)-recordHeaderSize)
	}
	if data[40] > 1 {
		return nil, fmt.Errorf("%w: executable flag %d", ErrInvalidAccountData, data[40])
	}

	account := &types.Account{
		Lamports:   types.Lamports(binary.LittleEndian.Uint64(data[0:8])),
		Executable: data[40] == 1,
	}
	copy(account.Owner[:], data[8:40])
	if dataLen > 0 {
		account.Data = make([]byte, dataLen)
		copy(account.Data, data[recordHeaderSize:])
	}
	return account, nil
}
