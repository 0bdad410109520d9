// Package images resolves the worker image in a registry.
//
// Workers of one experiment should run the same build, so a tag in the
// experiment config is pinned to its digest once, before jobs spawn.
package images

import (
	"context"

	gcrname "github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	xe "github.com/pombredanne/facereclib/pkg/errors"
)

// Pinned is an image reference fixed to a digest.
type Pinned struct {
	// as written in the config.
	Requested string

	// repository@sha256:...
	Ref string

	Entrypoint []string
	Cmd        []string
}

type option struct {
	insecure bool
	remote   []remote.Option
}

type Option func(*option)

// Insecure allows plain http registries.
func Insecure() Option {
	return func(o *option) { o.insecure = true }
}

func WithRemoteOptions(opts ...remote.Option) Option {
	return func(o *option) { o.remote = append(o.remote, opts...) }
}

// Pin looks up image in its registry and returns its digest reference.
//
// An image already given by digest is verified to exist.
func Pin(ctx context.Context, image string, options ...Option) (Pinned, error) {
	opt := &option{}
	for _, o := range options {
		o(opt)
	}

	nameopts := []gcrname.Option{}
	if opt.insecure {
		nameopts = append(nameopts, gcrname.Insecure)
	}
	ref, err := gcrname.ParseReference(image, nameopts...)
	if err != nil {
		return Pinned{}, xe.Configuration("bad worker image %q: %v", image, err)
	}

	ropts := append([]remote.Option{remote.WithContext(ctx)}, opt.remote...)
	img, err := remote.Image(ref, ropts...)
	if err != nil {
		return Pinned{}, xe.WrapWithNote(image, err)
	}
	digest, err := img.Digest()
	if err != nil {
		return Pinned{}, xe.WrapWithNote(image, err)
	}
	cf, err := img.ConfigFile()
	if err != nil {
		return Pinned{}, xe.WrapWithNote(image, err)
	}

	return Pinned{
		Requested:  image,
		Ref:        ref.Context().Digest(digest.String()).String(),
		Entrypoint: cf.Config.Entrypoint,
		Cmd:        cf.Config.Cmd,
	}, nil
}
