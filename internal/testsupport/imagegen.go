package testsupport

import (
	"context"
	"os"
	"sync"
	"testing"

	"memeflow/internal/fileutil"
	"memeflow/internal/services/imagegen"
)

// FakeImageGen writes small PNG artifacts in place of the image service and
// records every request.
type FakeImageGen struct {
	t testing.TB

	mu       sync.Mutex
	Brands   []imagegen.BrandRequest
	Renders  []imagegen.RenderRequest
	Animates []imagegen.AnimateRequest
	// Err, when set, is returned by every call.
	Err error
}

// NewFakeImageGen returns a fake bound to t.
func NewFakeImageGen(t testing.TB) *FakeImageGen {
	return &FakeImageGen{t: t}
}

func (f *FakeImageGen) Brand(_ context.Context, req imagegen.BrandRequest, dest string) (imagegen.Artifact, error) {
	f.mu.Lock()
	f.Brands = append(f.Brands, req)
	f.mu.Unlock()
	return f.write(dest, "image/png")
}

func (f *FakeImageGen) Render(_ context.Context, req imagegen.RenderRequest, dest string) (imagegen.Artifact, error) {
	f.mu.Lock()
	f.Renders = append(f.Renders, req)
	f.mu.Unlock()
	return f.write(dest, "image/png")
}

func (f *FakeImageGen) Animate(_ context.Context, req imagegen.AnimateRequest, dest string) (imagegen.Artifact, error) {
	f.mu.Lock()
	f.Animates = append(f.Animates, req)
	f.mu.Unlock()
	return f.write(dest, "image/gif")
}

func (f *FakeImageGen) write(dest, contentType string) (imagegen.Artifact, error) {
	if f.Err != nil {
		return imagegen.Artifact{}, f.Err
	}
	WritePNG(f.t, dest, 8, 8)
	data, err := os.ReadFile(dest)
	if err != nil {
		return imagegen.Artifact{}, err
	}
	return imagegen.Artifact{
		Path:        dest,
		ContentType: contentType,
		Bytes:       len(data),
		SHA256:      fileutil.HashBytes(data),
	}, nil
}
