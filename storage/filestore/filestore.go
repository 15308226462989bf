package filestore

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/storage"
)

const fileMode = 0o600

var _ storage.KV = (*FileStore)(nil)

// FileStore keeps all keys in a single JSON document on disk.
// Every Read loads the file again, so changes made by another process are seen immediately.
// When a key is configured the document is sealed with XChaCha20-Poly1305 and stored as nonce||ciphertext.
type FileStore struct {
	path string
	aead cipher.AEAD
	lock sync.Mutex
}

type FileStoreOption func(*FileStore) error

// WithEncryptionKey enables at-rest encryption. The key must be 32 bytes.
func WithEncryptionKey(key []byte) FileStoreOption {
	return func(fs *FileStore) error {
		if key == nil {
			return nil
		}
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return errors.Wrapf(err, "[filestore.WithEncryptionKey] chacha20poly1305.NewX")
		}
		fs.aead = aead
		return nil
	}
}

func New(path string, options ...FileStoreOption) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("[filestore.New] path is required")
	}
	fs := &FileStore{path: path}
	for _, opt := range options {
		if err := opt(fs); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

func (fs *FileStore) Read(key string) (string, bool, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	values, err := fs.load()
	if err != nil {
		return "", false, errors.Join(errors.ErrStorageRead, err)
	}
	v, ok := values[key]
	return v, ok, nil
}

func (fs *FileStore) Write(key, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	values, err := fs.load()
	if errors.Is(err, errors.ErrCorruptStore) {
		values = make(map[string]string)
	} else if err != nil {
		return errors.Join(errors.ErrStorageWrite, err)
	}
	values[key] = value
	if err := fs.save(values); err != nil {
		return errors.Join(errors.ErrStorageWrite, err)
	}
	return nil
}

func (fs *FileStore) Delete(key string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	values, err := fs.load()
	if errors.Is(err, errors.ErrCorruptStore) {
		// An unreadable document holds nothing worth keeping; replace it with an empty one.
		values = make(map[string]string)
	} else if err != nil {
		return errors.Join(errors.ErrStorageDelete, err)
	} else if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	if err := fs.save(values); err != nil {
		return errors.Join(errors.ErrStorageDelete, err)
	}
	return nil
}

func (fs *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[FileStore.load] os.ReadFile %s", fs.path)
	}

	if fs.aead != nil {
		nonceSize := fs.aead.NonceSize()
		if len(data) < nonceSize {
			return nil, errors.Wrapf(errors.ErrCorruptStore, "[FileStore.load] %s too short", fs.path)
		}
		data, err = fs.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
		if err != nil {
			return nil, errors.Join(errors.ErrCorruptStore, err)
		}
	}

	values := make(map[string]string)
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, errors.Join(errors.ErrCorruptStore, err)
	}
	return values, nil
}

func (fs *FileStore) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return errors.Wrapf(err, "[FileStore.save] json.Marshal")
	}

	if fs.aead != nil {
		nonce := make([]byte, fs.aead.NonceSize(), fs.aead.NonceSize()+len(data)+chacha20poly1305.Overhead)
		if _, err := rand.Read(nonce); err != nil {
			return errors.Wrapf(err, "[FileStore.save] rand.Read")
		}
		data = fs.aead.Seal(nonce, nonce, data, nil)
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "[FileStore.save] os.MkdirAll %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(fs.path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "[FileStore.save] os.CreateTemp")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "[FileStore.save] write")
	}
	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "[FileStore.save] chmod")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "[FileStore.save] close")
	}
	if err := os.Rename(tmp.Name(), fs.path); err != nil {
		return errors.Wrapf(err, "[FileStore.save] os.Rename")
	}
	return nil
}
