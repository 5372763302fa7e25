package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/scrypt"
)

const (
	// "Service" groups the engine's secrets in the OS keychain.
	KeyringService = "hireflow"
	keyringAccount = "hireflow:master-key"

	// Env fallback for headless hosts without a keychain.
	masterKeyEnv = "HIREFLOW_MASTER_KEY"

	saltLen = 16
	keyLen  = 32
)

// Box encrypts and decrypts mail account passwords. Accounts store only the
// sealed form; the master key never leaves the keychain or env.
type Box struct {
	master []byte
}

// Open loads the master key from the OS keyring, falling back to the env
// var, generating and persisting a fresh key on first use.
func Open() (*Box, error) {
	if v := strings.TrimSpace(os.Getenv(masterKeyEnv)); v != "" {
		key, err := hex.DecodeString(v)
		if err != nil || len(key) < 16 {
			return nil, fmt.Errorf("%s is not a valid hex key", masterKeyEnv)
		}
		return &Box{master: key}, nil
	}

	if v, err := keyring.Get(KeyringService, keyringAccount); err == nil && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("keyring master key corrupted: %w", err)
		}
		return &Box{master: key}, nil
	}

	key := make([]byte, keyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := keyring.Set(KeyringService, keyringAccount, hex.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("store master key in keychain (or set %s): %w", masterKeyEnv, err)
	}
	return &Box{master: key}, nil
}

// NewBox builds a Box around an explicit key. Tests use this.
func NewBox(key []byte) *Box { return &Box{master: key} }

// Encrypt seals a plaintext password as base64(salt | nonce | ciphertext).
// A fresh salt per call means identical passwords never encrypt alike.
func (b *Box) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("password is empty")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	gcm, err := b.aead(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	out := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func (b *Box) Decrypt(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("sealed password is not base64: %w", err)
	}
	if len(raw) < saltLen {
		return "", errors.New("sealed password too short")
	}

	salt := raw[:saltLen]
	gcm, err := b.aead(salt)
	if err != nil {
		return "", err
	}
	if len(raw) < saltLen+gcm.NonceSize() {
		return "", errors.New("sealed password too short")
	}
	nonce := raw[saltLen : saltLen+gcm.NonceSize()]
	ct := raw[saltLen+gcm.NonceSize():]

	pt, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt password: %w", err)
	}
	return string(pt), nil
}

func (b *Box) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(b.master, salt, 1<<15, 8, 1, keyLen)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
