package snapshot

import (
	"archive/tar"
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/fortiblox/x1-token/pkg/accounts"
	"github.com/fortiblox/x1-token/pkg/types"
)

// Progress reports how far an export or import has come.
type Progress struct {
	// Stage is the current stage.
	Stage string
	// AccountsProcessed is the number of accounts handled so far.
	AccountsProcessed uint64
	// AccountsTotal is the expected number of accounts.
	AccountsTotal uint64
}

// ProgressCallback is called with progress updates.
type ProgressCallback func(progress Progress)

// Config configures export and import.
type Config struct {
	// Logger receives stage and summary logs.
	Logger *zap.Logger
	// BatchSize is the number of accounts committed per store batch on
	// import.
	BatchSize int
	// ProgressCallback is called with progress updates.
	ProgressCallback ProgressCallback
	// ProgressInterval is the account count between progress updates.
	ProgressInterval uint64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Logger:           zap.NewNop(),
		BatchSize:        1024,
		ProgressInterval: 10000,
	}
}

func (c *Config) normalize() {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1024
	}
	if c.ProgressInterval == 0 {
		c.ProgressInterval = 10000
	}
}

func (c *Config) report(stage string, processed, total uint64) {
	if c.ProgressCallback != nil {
		c.ProgressCallback(Progress{Stage: stage, AccountsProcessed: processed, AccountsTotal: total})
	}
}

// Export writes every account in db to w as a tar.zst archive and returns
// the manifest it wrote. The account stream is staged in a temporary file so
// the manifest, which carries its digest, can precede it.
func Export(db accounts.AccountsDB, w io.Writer, config Config) (*Manifest, error) {
	config.normalize()

	staging, err := os.CreateTemp("", "x1token-accounts-*.bin")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}
	defer func() {
		staging.Close()
		os.Remove(staging.Name())
	}()

	manifest := &Manifest{Version: FormatVersion, CreatedAt: time.Now().UTC()}
	total := db.GetAccountsCount()
	digest, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	buffered := bufio.NewWriter(staging)
	stream := io.MultiWriter(buffered, digest)
	var hasher accounts.AccountsHasher

	config.report("Writing accounts", 0, total)
	err = db.Iterate(func(pubkey types.Pubkey, account *types.Account) error {
		if err := writeEntry(stream, pubkey, account); err != nil {
			return fmt.Errorf("account %s: %w", pubkey, err)
		}
		hasher.Add(pubkey, account)
		manifest.AccountsCount++
		manifest.LamportsTotal += uint64(account.Lamports)
		if manifest.AccountsCount%config.ProgressInterval == 0 {
			config.report("Writing accounts", manifest.AccountsCount, total)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}
	if err := buffered.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write staging file: %w", err)
	}
	copy(manifest.Digest[:], digest.Sum(nil))
	manifest.AccountsHash = hasher.Sum()

	size, err := staging.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	if _, err := staging.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	config.report("Compressing", manifest.AccountsCount, manifest.AccountsCount)
	if err := writeArchive(w, manifest, staging, size); err != nil {
		return nil, err
	}

	config.Logger.Info("snapshot exported",
		zap.Uint64("accounts", manifest.AccountsCount),
		zap.Uint64("lamports", manifest.LamportsTotal),
		zap.Stringer("digest", manifest.Digest),
		zap.Stringer("accounts_hash", manifest.AccountsHash),
	)
	config.report("Complete", manifest.AccountsCount, manifest.AccountsCount)
	return manifest, nil
}

func writeArchive(w io.Writer, manifest *Manifest, stream io.Reader, size int64) error {
	encoder, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	tw := tar.NewWriter(encoder)

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		encoder.Close()
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	modTime := manifest.CreatedAt
	if err := tw.WriteHeader(&tar.Header{
		Name:    ManifestEntry,
		Mode:    0644,
		Size:    int64(len(manifestJSON)),
		ModTime: modTime,
	}); err != nil {
		encoder.Close()
		return fmt.Errorf("failed to write manifest header: %w", err)
	}
	if _, err := tw.Write(manifestJSON); err != nil {
		encoder.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := tw.WriteHeader(&tar.Header{
		Name:    AccountsEntry,
		Mode:    0644,
		Size:    size,
		ModTime: modTime,
	}); err != nil {
		encoder.Close()
		return fmt.Errorf("failed to write accounts header: %w", err)
	}
	if _, err := io.Copy(tw, stream); err != nil {
		encoder.Close()
		return fmt.Errorf("failed to write accounts: %w", err)
	}

	if err := tw.Close(); err != nil {
		encoder.Close()
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return encoder.Close()
}

// ExportFile exports db to path. The archive is written next to path and
// renamed into place once complete.
func ExportFile(db accounts.AccountsDB, path string, config Config) (*Manifest, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	manifest, err := Export(db, tmp, config)
	if err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("failed to move archive into place: %w", err)
	}
	return manifest, nil
}
