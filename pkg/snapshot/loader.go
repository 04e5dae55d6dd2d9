package snapshot

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/fortiblox/x1-token/pkg/accounts"
	"github.com/fortiblox/x1-token/pkg/types"
)

// LoadResult contains the result of loading a snapshot.
type LoadResult struct {
	// Manifest is the snapshot manifest.
	Manifest *Manifest
	// AccountsLoaded is the number of accounts loaded.
	AccountsLoaded uint64
	// LamportsTotal is the total lamports loaded.
	LamportsTotal uint64
	// AccountsHash is the computed accounts hash.
	AccountsHash types.Hash
}

// Import loads an archive into db, which must be empty. The account stream
// is verified in full before the first account is written, so a corrupt
// archive leaves db untouched.
func Import(r io.Reader, db accounts.AccountsDB, config Config) (*LoadResult, error) {
	config.normalize()

	if n := db.GetAccountsCount(); n > 0 {
		return nil, fmt.Errorf("%w: holds %d accounts", ErrStoreNotEmpty, n)
	}

	archive, err := openArchive(r)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	config.report("Reading manifest", 0, 0)
	manifest, err := archive.readManifest()
	if err != nil {
		return nil, err
	}
	if _, err := archive.next(AccountsEntry); err != nil {
		return nil, err
	}

	staging, err := os.CreateTemp("", "x1token-import-*.bin")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}
	defer func() {
		staging.Close()
		os.Remove(staging.Name())
	}()

	buffered := bufio.NewWriter(staging)
	verified, err := scanAccounts(io.TeeReader(archive.tar, buffered), manifest, &config)
	if err != nil {
		return nil, err
	}
	if err := buffered.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write staging file: %w", err)
	}
	if _, err := staging.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	config.report("Loading accounts", 0, manifest.AccountsCount)
	result := &LoadResult{Manifest: manifest, AccountsHash: verified.AccountsHash}
	stream := bufio.NewReader(staging)
	batch := make([]types.AccountRef, 0, config.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := db.Commit(batch); err != nil {
			return fmt.Errorf("failed to store accounts: %w", err)
		}
		batch = batch[:0]
		config.report("Loading accounts", result.AccountsLoaded, manifest.AccountsCount)
		return nil
	}

	for {
		pubkey, account, err := readEntry(stream)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		batch = append(batch, types.AccountRef{Pubkey: pubkey, Account: account})
		result.AccountsLoaded++
		result.LamportsTotal += uint64(account.Lamports)
		if len(batch) == config.BatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	config.Logger.Info("snapshot imported",
		zap.Uint64("accounts", result.AccountsLoaded),
		zap.Uint64("lamports", result.LamportsTotal),
		zap.Stringer("accounts_hash", result.AccountsHash),
	)
	config.report("Complete", result.AccountsLoaded, manifest.AccountsCount)
	return result, nil
}

// ImportFile loads the archive at path into db.
func ImportFile(path string, db accounts.AccountsDB, config Config) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()
	return Import(f, db, config)
}
