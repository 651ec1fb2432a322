package toolchain

import (
	"encoding/json"
	"hash/crc32"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// BuildInfoFile is written into the output directory of incremental builds.
const BuildInfoFile = ".venok-buildinfo.json"

// BuildInfo records the content hash each output was emitted from so that
// unchanged files are not re-emitted. Hashes are CRC32 Castagnoli over the
// transformed source plus the option fingerprint.
type BuildInfo struct {
	path string

	mu      sync.Mutex
	Options string            `json:"options"`
	Files   map[string]string `json:"files"`
	dirty   bool
}

// LoadBuildInfo reads the build info at path. A missing or unreadable file,
// or one written for different options, yields an empty record.
func LoadBuildInfo(path, optionsHash string) *BuildInfo {
	info := &BuildInfo{
		path:    path,
		Options: optionsHash,
		Files:   map[string]string{},
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return info
	}
	var stored BuildInfo
	if err := json.Unmarshal(data, &stored); err != nil || stored.Options != optionsHash {
		info.dirty = true
		return info
	}
	if stored.Files != nil {
		info.Files = stored.Files
	}
	return info
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Hash returns the content hash of text.
func (b *BuildInfo) Hash(text string) string {
	return contentHash([]byte(text))
}

func contentHash(data []byte) string {
	return strconv.FormatUint(uint64(crc32.Checksum(data, castagnoli)), 16)
}

// Fresh reports whether output was emitted from the same hash and still exists.
func (b *BuildInfo) Fresh(source, hash, output string) bool {
	b.mu.Lock()
	stored, ok := b.Files[source]
	b.mu.Unlock()
	if !ok || stored != hash {
		return false
	}
	_, err := os.Stat(output)
	return err == nil
}

// Record stores the hash an emitted source was built from.
func (b *BuildInfo) Record(source, hash string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Files[source] != hash {
		b.Files[source] = hash
		b.dirty = true
	}
}

// Forget drops a source whose emit failed.
func (b *BuildInfo) Forget(source string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.Files[source]; ok {
		delete(b.Files, source)
		b.dirty = true
	}
}

// Save writes the record if anything changed.
func (b *BuildInfo) Save() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dirty {
		return nil
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return err
	}
	b.dirty = false
	return nil
}
