// Package filelist is a database read from a yaml file list.
//
// A file list looks like:
//
//	name: synthetic
//	files:
//	  - id: world/c9/img1
//	    client: c9
//	    group: world
//	    purpose: world
//	  - id: dev/c1/probe1
//	    client: c1
//	    group: dev
//	    purpose: probe
//	    protocols: [male]
//	    models: [c1, c2]       # omit to compare with every model
//	    attributes: {pose: frontal}
package filelist

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"slices"

	"github.com/pombredanne/facereclib/pkg/database"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Entry is a file in a file list.
type Entry struct {
	ID         string            `yaml:"id"`
	Client     string            `yaml:"client"`
	Group      string            `yaml:"group"`
	Purpose    string            `yaml:"purpose"`
	Protocols  []string          `yaml:"protocols,omitempty"`
	Models     []string          `yaml:"models,omitempty"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
}

type list struct {
	Name  string  `yaml:"name"`
	Files []Entry `yaml:"files"`
}

// DB is a database.Database over entries in memory.
type DB struct {
	name    string
	entries []Entry
}

var _ database.Database = &DB{}

// Load reads a file list.
func Load(path string) (*DB, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, xe.Configuration("file list is not found: %s", path)
	} else if err != nil {
		return nil, xe.Wrap(err)
	}
	return Unmarshal(content)
}

// Unmarshal parses a file list.
func Unmarshal(content []byte) (*DB, error) {
	l := list{}
	if err := yaml.Unmarshal(content, &l); err != nil {
		return nil, xe.Configuration("broken file list: %v", err)
	}
	return New(l.Name, l.Files)
}

// New validates entries and builds a DB.
func New(name string, entries []Entry) (*DB, error) {
	seen := map[string]struct{}{}
	for i, e := range entries {
		if e.ID == "" || e.Client == "" {
			return nil, xe.Configuration("files[%d]: id and client are required", i)
		}
		if _, ok := seen[e.ID]; ok {
			return nil, xe.Configuration("files[%d]: duplicated id: %s", i, e.ID)
		}
		seen[e.ID] = struct{}{}

		switch e.Purpose {
		case database.PurposeWorld:
			if e.Group != database.World {
				return nil, xe.Configuration("files[%d]: world file in group %s", i, e.Group)
			}
		case database.PurposeEnrol, database.PurposeProbe, database.PurposeTNorm, database.PurposeZNorm:
			if e.Group != database.Dev && e.Group != database.Eval {
				return nil, xe.Configuration("files[%d]: %s file in group %s", i, e.Purpose, e.Group)
			}
		default:
			return nil, xe.Configuration("files[%d]: unknown purpose: %s", i, e.Purpose)
		}
	}
	return &DB{name: name, entries: slices.Clone(entries)}, nil
}

func (db *DB) Name() string {
	return db.name
}

// Entries returns a copy of every entry.
func (db *DB) Entries() []Entry {
	return slices.Clone(db.entries)
}

func (db *DB) Files(ctx context.Context, q database.Query) ([]database.File, error) {
	return db.files(ctx, q, q.Purposes)
}

func (db *DB) TFiles(ctx context.Context, q database.Query) ([]database.File, error) {
	return db.files(ctx, q, []string{database.PurposeTNorm})
}

func (db *DB) Objects(ctx context.Context, q database.Query) ([]database.File, error) {
	return db.files(ctx, q, []string{database.PurposeProbe})
}

func (db *DB) ZObjects(ctx context.Context, q database.Query) ([]database.File, error) {
	return db.files(ctx, q, []string{database.PurposeZNorm})
}

func (db *DB) Models(ctx context.Context, q database.ModelQuery) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := []string{}
	for _, e := range db.entries {
		switch e.Purpose {
		case database.PurposeEnrol, database.PurposeWorld:
		default:
			continue
		}
		if e.Purpose == database.PurposeWorld && len(q.Groups) == 0 {
			continue
		}
		if !anyOf(q.Groups, e.Group) || !inProtocols(e, q.Protocols) || !q.Options.Match(e.Attributes) {
			continue
		}
		ids = append(ids, e.Client)
	}
	return database.SortedIDs(ids), nil
}

func (db *DB) TModels(ctx context.Context, q database.ModelQuery) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := []string{}
	for _, e := range db.entries {
		if e.Purpose != database.PurposeTNorm {
			continue
		}
		if !anyOf(q.Groups, e.Group) || !inProtocols(e, q.Protocols) || !q.Options.Match(e.Attributes) {
			continue
		}
		ids = append(ids, e.Client)
	}
	return database.SortedIDs(ids), nil
}

func (db *DB) files(ctx context.Context, q database.Query, purposes []string) ([]database.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found := []database.File{}
	for _, e := range db.entries {
		if !anyOf(q.Groups, e.Group) || !anyOf(purposes, e.Purpose) {
			continue
		}
		if !inProtocols(e, q.Protocols) || !q.Options.Match(e.Attributes) {
			continue
		}
		if !ofModels(e, q.ModelIDs) {
			continue
		}
		found = append(found, database.File{ID: e.ID, ClientID: e.Client})
	}
	return database.Finalize(found, q), nil
}

// anyOf tells v is in candidates. Empty candidates accept anything.
func anyOf(candidates []string, v string) bool {
	return len(candidates) == 0 || slices.Contains(candidates, v)
}

func inProtocols(e Entry, protocols []string) bool {
	if len(e.Protocols) == 0 || len(protocols) == 0 {
		return true
	}
	for _, p := range protocols {
		if slices.Contains(e.Protocols, p) {
			return true
		}
	}
	return false
}

func ofModels(e Entry, modelIDs []string) bool {
	if len(modelIDs) == 0 {
		return true
	}
	switch e.Purpose {
	case database.PurposeZNorm:
		return true
	case database.PurposeProbe:
		if len(e.Models) == 0 {
			return true
		}
		for _, m := range modelIDs {
			if slices.Contains(e.Models, m) {
				return true
			}
		}
		return false
	default:
		return slices.Contains(modelIDs, e.Client)
	}
}
