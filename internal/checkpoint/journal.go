// Package checkpoint implements the crawler's optional resume journal:
// periodic, length-prefixed, compressed and encrypted snapshots of the
// prefix frontier, so a killed long-running crawl can continue instead
// of re-enumerating the whole bucket from the root prefix.
package checkpoint

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/golang/snappy"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/FairForge/s3sweep/internal/frontier"
)

// journalInfo is the HKDF info string binding the derived key to this
// journal's purpose, so a master key reused elsewhere in the process
// can never be replayed against the checkpoint file.
const journalInfo = "s3sweep-checkpoint-journal-v1"

// Journal appends encrypted frontier snapshots to path and can replay
// the most recent one back into a *frontier.Frontier on resume.
type Journal struct {
	path string
	aead aeadCipher

	mu sync.Mutex
}

// aeadCipher is the minimal AEAD surface Journal depends on; satisfied
// by chacha20poly1305.New's returned cipher.AEAD.
type aeadCipher interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
	Overhead() int
}

// NewJournal derives a per-journal key from masterKey via HKDF-SHA256
// and returns a Journal writing length-prefixed frames to path.
// masterKey is the process's secret key material (e.g. a random value
// generated at first run and stored alongside the config); it is never
// the S3 secret key.
func NewJournal(path string, masterKey []byte) (*Journal, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, masterKey, nil, []byte(journalInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("checkpoint: derive journal key: %w", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: build cipher: %w", err)
	}
	return &Journal{path: path, aead: aead}, nil
}

// snapshotDoc is the on-disk shape of one frontier snapshot.
type snapshotDoc struct {
	Entries []frontier.FrontierEntry `json:"entries"`
}

// Save appends one encrypted snapshot frame of entries to the journal
// file. Frames accumulate; Load always replays the last one, so a
// truncated final frame from a mid-write crash never loses an older
// valid snapshot.
func (j *Journal) Save(entries []frontier.FrontierEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	plain, err := json.Marshal(snapshotDoc{Entries: entries})
	if err != nil {
		return fmt.Errorf("checkpoint: marshal snapshot: %w", err)
	}
	compressed := snappy.Encode(nil, plain)

	nonce := make([]byte, j.aead.NonceSize())
	// A counter-free random nonce is fine here: snapshots are written
	// at most a few times a minute for the life of one process, far
	// below the birthday bound for a 96-bit nonce.
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("checkpoint: generate nonce: %w", err)
	}
	sealed := j.aead.Seal(nil, nonce, compressed, nil)

	frame := make([]byte, 0, 4+len(nonce)+len(sealed))
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(nonce)+len(sealed)))
	frame = append(frame, nonce...)
	frame = append(frame, sealed...)

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("checkpoint: open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(frame); err != nil {
		return fmt.Errorf("checkpoint: write frame: %w", err)
	}
	return nil
}

// Load replays the journal file and returns the entries from its last
// complete, decryptable frame. A missing file is not an error: it
// returns (nil, nil), meaning "no checkpoint to resume from."
func (j *Journal) Load() ([]frontier.FrontierEntry, error) {
	data, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read journal: %w", err)
	}

	var last []frontier.FrontierEntry
	for off := 0; off+4 <= len(data); {
		frameLen := int(binary.BigEndian.Uint32(data[off : off+4]))
		off += 4
		if off+frameLen > len(data) {
			break // truncated final frame from a mid-write crash; keep the last good one
		}
		frame := data[off : off+frameLen]
		off += frameLen

		nonceSize := j.aead.NonceSize()
		if len(frame) < nonceSize {
			continue
		}
		nonce, sealed := frame[:nonceSize], frame[nonceSize:]
		compressed, err := j.aead.Open(nil, nonce, sealed, nil)
		if err != nil {
			continue // skip a corrupt frame rather than abort the whole replay
		}
		plain, err := snappy.Decode(nil, compressed)
		if err != nil {
			continue
		}
		var doc snapshotDoc
		if err := json.Unmarshal(plain, &doc); err != nil {
			continue
		}
		last = doc.Entries
	}
	return last, nil
}
