package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/morezero/native-share/pkg/capability"
)

const (
	dirLogPrefix      = "gallery:dirstore"
	authorizationFile = "authorization.json"
	metaSuffix        = ".meta.json"
)

// DirStore keeps assets as files under a root directory, each with a JSON
// metadata sidecar, and the authorization state in authorization.json.
type DirStore struct {
	root string
	mu   sync.Mutex
}

// NewDirStore creates root if needed.
func NewDirStore(root string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%s - create %s: %w", dirLogPrefix, root, err)
	}
	return &DirStore{root: root}, nil
}

// Root returns the directory assets are written to.
func (s *DirStore) Root() string { return s.root }

// Backend implements AssetStore.
func (s *DirStore) Backend() string { return "dir" }

// Put implements AssetStore.
func (s *DirStore) Put(_ context.Context, rec AssetRecord, data []byte) (AssetRecord, error) {
	rec.ID = uuid.NewString()
	rec.Created = time.Now().UTC()

	if err := writeFileAtomic(filepath.Join(s.root, rec.ID+extension(rec.Format)), data); err != nil {
		return AssetRecord{}, fmt.Errorf("%s - write asset: %w", dirLogPrefix, err)
	}
	meta, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return AssetRecord{}, fmt.Errorf("%s - encode metadata: %w", dirLogPrefix, err)
	}
	if err := writeFileAtomic(filepath.Join(s.root, rec.ID+metaSuffix), meta); err != nil {
		return AssetRecord{}, fmt.Errorf("%s - write metadata: %w", dirLogPrefix, err)
	}
	return rec, nil
}

// List implements AssetStore.
func (s *DirStore) List(_ context.Context, limit int) ([]AssetRecord, int, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, "*"+metaSuffix))
	if err != nil {
		return nil, 0, fmt.Errorf("%s - list: %w", dirLogPrefix, err)
	}
	recs := make([]AssetRecord, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, 0, fmt.Errorf("%s - read %s: %w", dirLogPrefix, m, err)
		}
		var rec AssetRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, 0, fmt.Errorf("%s - decode %s: %w", dirLogPrefix, m, err)
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Created.After(recs[j].Created) })

	total := len(recs)
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, total, nil
}

// LoadState implements StateStore.
func (s *DirStore) LoadState(_ context.Context, scope string) (capability.AuthorizationState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	states, err := s.readStates()
	if err != nil {
		return capability.Undetermined, false, err
	}
	name, ok := states[scope]
	if !ok {
		return capability.Undetermined, false, nil
	}
	state, err := capability.ParseAuthorizationState(name)
	if err != nil {
		return capability.Undetermined, false, err
	}
	return state, true, nil
}

// SaveState implements StateStore.
func (s *DirStore) SaveState(_ context.Context, scope string, state capability.AuthorizationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	states, err := s.readStates()
	if err != nil {
		return err
	}
	states[scope] = state.String()
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return fmt.Errorf("%s - encode authorization: %w", dirLogPrefix, err)
	}
	return writeFileAtomic(filepath.Join(s.root, authorizationFile), data)
}

// Clear removes every asset and the stored authorization state.
func (s *DirStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("%s - clear: %w", dirLogPrefix, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, e.Name())); err != nil {
			return fmt.Errorf("%s - clear %s: %w", dirLogPrefix, e.Name(), err)
		}
	}
	return nil
}

func (s *DirStore) readStates() (map[string]string, error) {
	states := map[string]string{}
	data, err := os.ReadFile(filepath.Join(s.root, authorizationFile))
	if errors.Is(err, fs.ErrNotExist) {
		return states, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - read authorization: %w", dirLogPrefix, err)
	}
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, fmt.Errorf("%s - decode authorization: %w", dirLogPrefix, err)
	}
	return states, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func extension(format string) string {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return ".jpg"
	case "":
		return ".img"
	default:
		return "." + strings.ToLower(format)
	}
}
