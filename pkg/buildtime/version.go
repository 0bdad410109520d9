// Package buildtime tells which build this binary is.
//
// Set values with
//
//	go build -ldflags "-X github.com/pombredanne/facereclib/pkg/buildtime.version=v1.2.3 -X github.com/pombredanne/facereclib/pkg/buildtime.revision=$(git rev-parse HEAD)"
package buildtime

var (
	version  = "dev"
	revision = "unknown"
)

func VERSION() string {
	return version
}

func GIT_REVISION() string {
	return revision
}

func VersionString() string {
	return version + " (commit: " + revision + ")"
}
