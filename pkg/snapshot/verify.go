package snapshot

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"github.com/fortiblox/x1-token/pkg/accounts"
	"github.com/fortiblox/x1-token/pkg/types"
)

// maxManifestSize bounds the manifest entry read into memory.
const maxManifestSize = 1 << 20

// VerifyResult contains the result of snapshot verification.
type VerifyResult struct {
	// Manifest is the snapshot manifest.
	Manifest *Manifest
	// AccountsCount is the number of accounts in the stream.
	AccountsCount uint64
	// LamportsTotal is the lamport total of the stream.
	LamportsTotal uint64
	// Digest is the computed blake2b-256 digest of the stream.
	Digest types.Hash
	// AccountsHash is the computed accounts hash.
	AccountsHash types.Hash
}

// archiveReader walks the entries of a tar.zst snapshot.
type archiveReader struct {
	decoder *zstd.Decoder
	tar     *tar.Reader
}

func openArchive(r io.Reader) (*archiveReader, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &archiveReader{decoder: decoder, tar: tar.NewReader(decoder)}, nil
}

func (a *archiveReader) Close() {
	a.decoder.Close()
}

// next advances to the entry named name, which must be the next entry.
func (a *archiveReader) next(name string) (*tar.Header, error) {
	header, err := a.tar.Next()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidArchive, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read tar header: %v", ErrInvalidArchive, err)
	}
	if header.Name != name {
		return nil, fmt.Errorf("%w: expected %s, found %s", ErrInvalidArchive, name, header.Name)
	}
	return header, nil
}

// readManifest reads and validates the leading manifest entry.
func (a *archiveReader) readManifest() (*Manifest, error) {
	header, err := a.next(ManifestEntry)
	if err != nil {
		return nil, err
	}
	if header.Size > maxManifestSize {
		return nil, fmt.Errorf("%w: manifest of %d bytes", ErrInvalidManifest, header.Size)
	}
	data, err := io.ReadAll(a.tar)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read manifest: %v", ErrInvalidArchive, err)
	}
	manifest := &Manifest{}
	if err := json.Unmarshal(data, manifest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := manifest.validate(); err != nil {
		return nil, err
	}
	return manifest, nil
}

// scanAccounts reads the whole account stream, checks entry order and
// compares the totals and hashes against manifest.
func scanAccounts(r io.Reader, manifest *Manifest, config *Config) (*VerifyResult, error) {
	digest, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	stream := io.TeeReader(r, digest)
	result := &VerifyResult{Manifest: manifest}
	var hasher accounts.AccountsHasher
	var prev types.Pubkey

	for {
		pubkey, account, err := readEntry(stream)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if result.AccountsCount > 0 && bytes.Compare(prev[:], pubkey[:]) >= 0 {
			return nil, fmt.Errorf("%w: account %s out of order", ErrInvalidArchive, pubkey)
		}
		prev = pubkey
		hasher.Add(pubkey, account)
		result.AccountsCount++
		result.LamportsTotal += uint64(account.Lamports)
		if config != nil && result.AccountsCount%config.ProgressInterval == 0 {
			config.report("Verifying accounts", result.AccountsCount, manifest.AccountsCount)
		}
	}
	copy(result.Digest[:], digest.Sum(nil))
	result.AccountsHash = hasher.Sum()

	switch {
	case result.Digest != manifest.Digest:
		return nil, fmt.Errorf("%w: digest %s, manifest says %s", ErrHashMismatch, result.Digest, manifest.Digest)
	case result.AccountsCount != manifest.AccountsCount:
		return nil, fmt.Errorf("%w: %d accounts, manifest says %d", ErrHashMismatch, result.AccountsCount, manifest.AccountsCount)
	case result.LamportsTotal != manifest.LamportsTotal:
		return nil, fmt.Errorf("%w: %d lamports, manifest says %d", ErrHashMismatch, result.LamportsTotal, manifest.LamportsTotal)
	case result.AccountsHash != manifest.AccountsHash:
		return nil, fmt.Errorf("%w: accounts hash %s, manifest says %s", ErrHashMismatch, result.AccountsHash, manifest.AccountsHash)
	}
	return result, nil
}

// Verify checks an archive without loading it: the manifest must parse and
// the account stream must match its digest, count, lamport total and
// accounts hash.
func Verify(r io.Reader) (*VerifyResult, error) {
	archive, err := openArchive(r)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	manifest, err := archive.readManifest()
	if err != nil {
		return nil, err
	}
	if _, err := archive.next(AccountsEntry); err != nil {
		return nil, err
	}
	config := DefaultConfig()
	return scanAccounts(archive.tar, manifest, &config)
}

// VerifyFile verifies the archive at path.
func VerifyFile(path string) (*VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()
	return Verify(f)
}
