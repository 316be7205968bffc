package cookie

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

const (
	minSecretLength = 32
	flashPrefix     = "__flash_"
)

var b64 = base64.RawURLEncoding

type keys struct {
	aead cipher.AEAD
	mac  []byte
}

// Manager reads and writes plain, signed and encrypted cookies.
type Manager struct {
	keys     []keys
	defaults Options
}

// New derives per-purpose keys from every secret with HKDF-SHA256. The first
// secret writes; all of them read.
func New(secrets []string, opts ...Option) (*Manager, error) {
	m := &Manager{
		defaults: Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode}.with(opts),
	}

	for i, s := range secrets {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if len(s) < minSecretLength {
			return nil, fmt.Errorf("%w: secret %d has %d chars, need %d", ErrSecretTooShort, i, len(s), minSecretLength)
		}
		k, err := deriveKeys(s)
		if err != nil {
			return nil, err
		}
		m.keys = append(m.keys, k)
	}
	if len(m.keys) == 0 {
		return nil, ErrNoSecret
	}
	return m, nil
}

func deriveKeys(secret string) (keys, error) {
	expand := func(info string) ([]byte, error) {
		out := make([]byte, 32)
		if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), out); err != nil {
			return nil, fmt.Errorf("derive %s key: %w", info, err)
		}
		return out, nil
	}

	macKey, err := expand("cookie-mac")
	if err != nil {
		return keys{}, err
	}
	encKey, err := expand("cookie-enc")
	if err != nil {
		return keys{}, err
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return keys{}, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return keys{}, err
	}
	return keys{aead: gcm, mac: macKey}, nil
}

// Set writes a plain cookie.
func (m *Manager) Set(w http.ResponseWriter, name, value string, opts ...Option) {
	o := m.defaults.with(opts)
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     o.Path,
		Domain:   o.Domain,
		MaxAge:   o.MaxAge,
		Secure:   o.Secure,
		HttpOnly: o.HttpOnly,
		SameSite: o.SameSite,
	})
}

// Get reads a plain cookie.
func (m *Manager) Get(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrCookieNotFound
		}
		return "", err
	}
	return c.Value, nil
}

// Delete expires the cookie using the manager's path and domain.
func (m *Manager) Delete(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Path:     m.defaults.Path,
		Domain:   m.defaults.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   m.defaults.Secure,
		HttpOnly: m.defaults.HttpOnly,
		SameSite: m.defaults.SameSite,
	})
}

// SetSigned writes value in clear text with an HMAC bound to the cookie name.
func (m *Manager) SetSigned(w http.ResponseWriter, name, value string, opts ...Option) {
	payload := b64.EncodeToString([]byte(value))
	m.Set(w, name, payload+"."+b64.EncodeToString(m.mac(m.keys[0], name, payload)), opts...)
}

// GetSigned reads a cookie written by SetSigned and checks its signature.
func (m *Manager) GetSigned(r *http.Request, name string) (string, error) {
	raw, err := m.Get(r, name)
	if err != nil {
		return "", err
	}
	payload, sig, ok := strings.Cut(raw, ".")
	if !ok {
		return "", ErrInvalidFormat
	}
	got, err := b64.DecodeString(sig)
	if err != nil {
		return "", ErrInvalidFormat
	}
	for _, k := range m.keys {
		if hmac.Equal(got, m.mac(k, name, payload)) {
			value, err := b64.DecodeString(payload)
			if err != nil {
				return "", ErrInvalidFormat
			}
			return string(value), nil
		}
	}
	return "", ErrInvalidSignature
}

// SetEncrypted writes value sealed with AES-GCM. The cookie name is
// authenticated data, so a value cannot be replayed under another name.
func (m *Manager) SetEncrypted(w http.ResponseWriter, name, value string, opts ...Option) error {
	aead := m.keys[0].aead
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("cookie nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(value), []byte(name))
	m.Set(w, name, b64.EncodeToString(sealed), opts...)
	return nil
}

// GetEncrypted reads and decrypts a cookie written by SetEncrypted.
func (m *Manager) GetEncrypted(r *http.Request, name string) (string, error) {
	raw, err := m.Get(r, name)
	if err != nil {
		return "", err
	}
	sealed, err := b64.DecodeString(raw)
	if err != nil {
		return "", ErrInvalidFormat
	}
	for _, k := range m.keys {
		n := k.aead.NonceSize()
		if len(sealed) < n {
			return "", ErrInvalidFormat
		}
		if plain, err := k.aead.Open(nil, sealed[:n], sealed[n:], []byte(name)); err == nil {
			return string(plain), nil
		}
	}
	return "", ErrDecryptionFailed
}

// SetJSON encrypts the JSON encoding of v.
func (m *Manager) SetJSON(w http.ResponseWriter, name string, v any, opts ...Option) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cookie %s: %w", name, err)
	}
	return m.SetEncrypted(w, name, string(data), opts...)
}

// GetJSON decrypts a cookie written by SetJSON into dest.
func (m *Manager) GetJSON(r *http.Request, name string, dest any) error {
	data, err := m.GetEncrypted(r, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return errors.Join(ErrInvalidFormat, err)
	}
	return nil
}

// SetFlash stores a value that GetFlash returns once.
func (m *Manager) SetFlash(w http.ResponseWriter, key string, v any) error {
	return m.SetJSON(w, flashPrefix+key, v)
}

// GetFlash reads and deletes a flash value.
func (m *Manager) GetFlash(w http.ResponseWriter, r *http.Request, key string, dest any) error {
	name := flashPrefix + key
	err := m.GetJSON(r, name, dest)
	if !errors.Is(err, ErrCookieNotFound) {
		m.Delete(w, name)
	}
	return err
}

func (m *Manager) mac(k keys, name, payload string) []byte {
	h := hmac.New(sha256.New, k.mac)
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(payload))
	return h.Sum(nil)
}
