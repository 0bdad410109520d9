// Package database is the contract between the toolchain and a biometric
// database: which files exist, which identities they belong to, and which
// of them are enrolment, probe, T-norm or Z-norm material.
package database

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
)

// Groups of a biometric database.
const (
	World = "world"
	Dev   = "dev"
	Eval  = "eval"
)

// Purposes of a file.
const (
	PurposeWorld = "world"
	PurposeEnrol = "enrol"
	PurposeProbe = "probe"
	PurposeTNorm = "tnorm"
	PurposeZNorm = "znorm"
)

// File is one biometric sample.
type File struct {
	// unique key: a relative path without extension.
	ID string

	// identity the sample belongs to.
	ClientID string

	// Directory/ID+Extension of the query which found this file.
	Path string
}

// Query selects files.
//
// Empty fields do not restrict the result.
type Query struct {
	Directory string
	Extension string

	Protocols []string
	Groups    []string
	Purposes  []string

	// for enrolment, world and T-norm files: the file's client.
	// for probes: the models the probe is compared with.
	ModelIDs []string

	Options Options
}

// ModelQuery selects identities.
type ModelQuery struct {
	Protocols []string
	Groups    []string
	Options   Options
}

// Database answers queries on a biometric database.
//
// Files are returned sorted by ID without duplicates.
// Model ids are returned sorted without duplicates.
type Database interface {
	// Files returns samples of any purpose.
	Files(ctx context.Context, q Query) ([]File, error)

	// Models returns client ids which have enrolment files in the groups.
	// For the world group, it returns clients having world files.
	Models(ctx context.Context, q ModelQuery) ([]string, error)

	// TModels returns ids of T-norm cohort models.
	TModels(ctx context.Context, q ModelQuery) ([]string, error)

	// TFiles returns enrolment files of T-norm cohort models.
	TFiles(ctx context.Context, q Query) ([]File, error)

	// Objects returns probe files.
	Objects(ctx context.Context, q Query) ([]File, error)

	// ZObjects returns Z-norm probe files.
	ZObjects(ctx context.Context, q Query) ([]File, error)
}

// Finalize sorts files by ID, drops duplicated IDs and sets their Path
// after q's directory and extension.
func Finalize(files []File, q Query) []File {
	slices.SortFunc(files, func(a, b File) int { return strings.Compare(a.ID, b.ID) })
	files = slices.CompactFunc(files, func(a, b File) bool { return a.ID == b.ID })
	for i := range files {
		files[i].Path = filepath.Join(q.Directory, files[i].ID+q.Extension)
	}
	return files
}

// SortedIDs sorts ids and drops duplicates, in place.
func SortedIDs(ids []string) []string {
	slices.Sort(ids)
	return slices.Compact(ids)
}

// IDs of files, in order.
func IDs(files []File) []string {
	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	return ids
}
