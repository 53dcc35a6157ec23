/**
 * @description
 * File-backed persister: one JSON file per record under the gateway's state
 * directory. This is the default backend; it plays the role the original
 * client's local storage did.
 */

package session

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/swiftlend/wallet-gateway/internal/domain"
)

const (
	principalFile = "session.json"
	walletFile    = "wallet.json"
)

// FilePersister stores session state as JSON files in a directory.
type FilePersister struct {
	dir string
}

// NewFilePersister creates the state directory if needed.
func NewFilePersister(dir string) (*FilePersister, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FilePersister{dir: dir}, nil
}

func (f *FilePersister) SavePrincipal(_ context.Context, p domain.Principal) error {
	return f.save(principalFile, p)
}

func (f *FilePersister) LoadPrincipal(_ context.Context) (domain.Principal, error) {
	var p domain.Principal
	err := f.load(principalFile, &p)
	return p, err
}

func (f *FilePersister) ClearPrincipal(_ context.Context) error {
	return f.clear(principalFile)
}

func (f *FilePersister) SaveWalletSnapshot(_ context.Context, w domain.Wallet) error {
	return f.save(walletFile, w)
}

func (f *FilePersister) LoadWalletSnapshot(_ context.Context) (domain.Wallet, error) {
	var w domain.Wallet
	err := f.load(walletFile, &w)
	return w, err
}

func (f *FilePersister) ClearWalletSnapshot(_ context.Context) error {
	return f.clear(walletFile)
}

func (f *FilePersister) save(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(f.dir, name), data, 0o600)
}

func (f *FilePersister) load(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		// Malformed state is indistinguishable from none for callers.
		return ErrNotFound
	}
	return nil
}

func (f *FilePersister) clear(name string) error {
	err := os.Remove(filepath.Join(f.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
