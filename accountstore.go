package mt5

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/xKoRx/mt5/domain"
)

const accountBucketName = "accounts"

// AccountProfile es un perfil de cuenta guardado para cambio rápido.
//
// La password no se persiste: el switch de cuenta la pide al caller.
type AccountProfile struct {
	Name      string `json:"name"`
	Login     int64  `json:"login"`
	Server    string `json:"server"`
	Alias     string `json:"alias,omitempty"`
	SavedAtMs int64  `json:"saved_at_ms"`
	LastUsed  int64  `json:"last_used_ms,omitempty"`
}

// AccountStore persiste perfiles de cuenta en bbolt.
type AccountStore struct {
	db *bolt.DB
}

// OpenAccountStore abre (o crea) el store en la ruta indicada.
func OpenAccountStore(path string) (*AccountStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir account store path: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open account store: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(accountBucketName))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &AccountStore{db: db}, nil
}

// Close cierra el store.
func (s *AccountStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save guarda (o reemplaza) un perfil por nombre.
func (s *AccountStore) Save(profile *AccountProfile) error {
	if profile.Name == "" {
		return domain.NewError(domain.ErrInvalidRequest, "profile name is required")
	}
	if profile.SavedAtMs == 0 {
		profile.SavedAtMs = time.Now().UnixMilli()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(accountBucketName))
		data, err := json.Marshal(profile)
		if err != nil {
			return err
		}
		return b.Put([]byte(profile.Name), data)
	})
}

// Get recupera un perfil por nombre. Retorna nil si no existe.
func (s *AccountStore) Get(name string) (*AccountProfile, error) {
	var profile *AccountProfile
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(accountBucketName)).Get([]byte(name))
		if len(data) == 0 {
			return nil
		}
		var p AccountProfile
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		profile = &p
		return nil
	})
	return profile, err
}

// List retorna todos los perfiles guardados.
func (s *AccountStore) List() ([]*AccountProfile, error) {
	var profiles []*AccountProfile
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(accountBucketName)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var p AccountProfile
			if err := json.Unmarshal(v, &p); err != nil {
				continue
			}
			profiles = append(profiles, &p)
		}
		return nil
	})
	return profiles, err
}

// Delete elimina un perfil por nombre.
func (s *AccountStore) Delete(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(accountBucketName)).Delete([]byte(name))
	})
}

// TouchLastUsed marca el perfil como usado ahora.
func (s *AccountStore) TouchLastUsed(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(accountBucketName))
		key := []byte(name)
		data := b.Get(key)
		if len(data) == 0 {
			return nil
		}
		var p AccountProfile
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		p.LastUsed = time.Now().UnixMilli()
		updated, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return b.Put(key, updated)
	})
}
