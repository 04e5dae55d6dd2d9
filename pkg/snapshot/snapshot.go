// Package snapshot exports and imports the whole account store as a
// tar.zst archive.
//
// An archive holds two entries in order: manifest.json, then accounts.bin.
// accounts.bin is the concatenation of one entry per account in ascending
// pubkey order:
//
//   - pubkey: 32 bytes
//   - record: the stored account record of package accounts
//
// The manifest carries the account count, the lamport total, a blake2b-256
// digest of accounts.bin and the accounts hash of the exported state.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fortiblox/x1-token/pkg/accounts"
	"github.com/fortiblox/x1-token/pkg/svm/runtime"
	"github.com/fortiblox/x1-token/pkg/types"
)

var (
	// ErrInvalidManifest is returned when the manifest is malformed.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrInvalidArchive is returned when the archive is malformed.
	ErrInvalidArchive = errors.New("invalid archive")
	// ErrHashMismatch is returned when a hash verification fails.
	ErrHashMismatch = errors.New("hash mismatch")
	// ErrStoreNotEmpty is returned when importing into a store that already
	// holds accounts.
	ErrStoreNotEmpty = errors.New("account store is not empty")
)

// Archive entry names.
const (
	ManifestEntry = "manifest.json"
	AccountsEntry = "accounts.bin"
)

// FormatVersion is the archive format written by Export.
const FormatVersion = 1

// Manifest contains metadata about a snapshot.
type Manifest struct {
	Version       uint32     `json:"version"`
	CreatedAt     time.Time  `json:"created_at"`
	AccountsCount uint64     `json:"accounts_count"`
	LamportsTotal uint64     `json:"lamports_total"`
	Digest        types.Hash `json:"digest"`
	AccountsHash  types.Hash `json:"accounts_hash"`
}

// validate checks the fields a reader depends on.
func (m *Manifest) validate() error {
	if m.Version != FormatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidManifest, m.Version)
	}
	if m.Digest.IsZero() {
		return fmt.Errorf("%w: missing digest", ErrInvalidManifest)
	}
	return nil
}

const entryHeaderSize = 32 + 8 + 32 + 1 + 4

// writeEntry appends one account entry to w.
func writeEntry(w io.Writer, pubkey types.Pubkey, account *types.Account) error {
	record, err := accounts.SerializeAccount(account)
	if err != nil {
		return err
	}
	if _, err := w.Write(pubkey[:]); err != nil {
		return err
	}
	_, err = w.Write(record)
	return err
}

// readEntry reads the next account entry from r. It returns io.EOF only at
// a clean entry boundary.
func readEntry(r io.Reader) (types.Pubkey, *types.Account, error) {
	var pubkey types.Pubkey
	var header [entryHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return pubkey, nil, fmt.Errorf("%w: truncated account entry", ErrInvalidArchive)
		}
		return pubkey, nil, err
	}
	copy(pubkey[:], header[:32])

	dataLen := binary.LittleEndian.Uint32(header[entryHeaderSize-4:])
	if dataLen > runtime.MaxAccountDataSize {
		return pubkey, nil, fmt.Errorf("%w: account %s declares %d data bytes", ErrInvalidArchive, pubkey, dataLen)
	}
	record := make([]byte, entryHeaderSize-32+int(dataLen))
	copy(record, header[32:])
	if _, err := io.ReadFull(r, record[entryHeaderSize-32:]); err != nil {
		return pubkey, nil, fmt.Errorf("%w: truncated data of account %s", ErrInvalidArchive, pubkey)
	}

	account, err := accounts.DeserializeAccount(record)
	if err != nil {
		return pubkey, nil, fmt.Errorf("%w: account %s: %v", ErrInvalidArchive, pubkey, err)
	}
	return pubkey, account, nil
}
