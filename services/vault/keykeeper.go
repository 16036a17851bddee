package vault

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// Key is the vault's symmetric key, immutable after startup.
type Key []byte

// LoadKey reads the vault key from path, generating and persisting a fresh one
// on first start. The file is created with owner-only permissions and an
// exclusive-create open so that two processes bootstrapping at once converge
// on a single key: the loser of the create race re-reads the winner's file.
func LoadKey(path string) (Key, error) {
	key, err := readKeyFile(path)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	fresh := make([]byte, KeySize)
	if _, err := rand.Read(fresh); err != nil {
		return nil, fmt.Errorf("failed to generate vault key: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			// Lost the create race; the winner's key is authoritative. The
			// winner may still be writing, so tolerate a short settle window.
			var key Key
			var rerr error
			for i := 0; i < 50; i++ {
				if key, rerr = readKeyFile(path); rerr == nil {
					return key, nil
				}
				time.Sleep(10 * time.Millisecond)
			}
			return nil, rerr
		}
		return nil, fmt.Errorf("failed to create vault key file: %w", err)
	}

	if _, err := f.Write(fresh); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write vault key file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write vault key file: %w", err)
	}

	zap.L().Info("vault key generated", zap.String("path", path))

	return fresh, nil
}

func readKeyFile(path string) (Key, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read vault key file: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("vault key file %s holds %d bytes, want %d", path, len(key), KeySize)
	}
	return key, nil
}
