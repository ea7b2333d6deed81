package pipeline

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DumpStore persists a loader's full dump.
type DumpStore interface {
	Save(docs map[string]*Document) error
	Load() (map[string]*Document, error)
}

// FileStore keeps the dump as a YAML file.
type FileStore struct {
	Path string
}

// Save writes the dump, replacing the previous file content.
func (s *FileStore) Save(docs map[string]*Document) error {
	raw, err := yaml.Marshal(docs)
	if err != nil {
		return errors.Wrap(err, "unable to marshal pipeline dump")
	}

	err = os.WriteFile(s.Path, raw, 0o644)
	if err != nil {
		return errors.Wrapf(err, "unable to write pipeline dump to %s", s.Path)
	}

	return nil
}

// Load reads the dump file. A missing file is an empty dump.
func (s *FileStore) Load() (map[string]*Document, error) {
	raw, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]*Document{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read pipeline dump from %s", s.Path)
	}

	docs := map[string]*Document{}
	err = yaml.Unmarshal(raw, &docs)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse pipeline dump from %s", s.Path)
	}

	return docs, nil
}

// NewLoaderFromStore creates a loader backed by store, loads every persisted
// document, and re-binds dependency references so that load order does not
// matter. Further adds and removes persist back into the store.
func NewLoaderFromStore(store DumpStore, opts ...LoaderOption) (*Loader, error) {
	docs, err := store.Load()
	if err != nil {
		return nil, err
	}

	loader := NewLoader(opts...)
	for _, doc := range docs {
		_, err := FromDocument(loader, doc)
		if err != nil {
			return nil, err
		}
	}
	loader.rebind()

	loader.store = store

	return loader, nil
}
