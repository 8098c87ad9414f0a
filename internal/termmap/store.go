package termmap

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"
)

type cachedMap struct {
	modTime time.Time
	terms   TermMap
}

// Store keeps one glossary file per language pair under a directory and
// re-reads a file only when it changed on disk
type Store struct {
	dir string

	mu    sync.Mutex
	cache map[string]cachedMap
}

func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		cache: make(map[string]cachedMap),
	}
}

// Lookup returns the glossary of a language pair. A missing file is an
// empty glossary.
func (s *Store) Lookup(sourceLang, targetLang string) (TermMap, error) {
	if strings.TrimSpace(sourceLang) == "" || strings.TrimSpace(targetLang) == "" {
		return TermMap{}, nil
	}
	path := FilePath(s.dir, sourceLang, targetLang)

	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		delete(s.cache, path)
		return TermMap{}, nil
	}
	if err != nil {
		return nil, err
	}
	if cached, ok := s.cache[path]; ok && cached.modTime.Equal(info.ModTime()) {
		return cloneMap(cached.terms), nil
	}

	tm, err := Load(path)
	if err != nil {
		return nil, err
	}
	s.cache[path] = cachedMap{modTime: info.ModTime(), terms: tm}
	return cloneMap(tm), nil
}

// Put replaces the glossary of a language pair. An empty map removes the
// file.
func (s *Store) Put(sourceLang, targetLang string, tm TermMap) error {
	path := FilePath(s.dir, sourceLang, targetLang)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, path)

	if len(tm) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return Save(path, tm)
}

func cloneMap(tm TermMap) TermMap {
	ret := make(TermMap, len(tm))
	for k, v := range tm {
		ret[k] = v
	}
	return ret
}
