package glshim

import (
	"bytes"
	"testing"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/math/f32"
)

// newTestDrawUtils builds utilities on a mock device, skipping when the
// embedded shaders hit a translator limitation.
func newTestDrawUtils(t *testing.T, device *mockDevice, invalidator StateInvalidator) *DrawUtils {
	t.Helper()
	u, err := NewDrawUtils(device, invalidator)
	skipIfUnsupported(t, err)
	if err != nil {
		t.Fatalf("NewDrawUtils: %v", err)
	}
	return u
}

func testBlitSource(flipped bool) TextureSource {
	return TextureSource{View: &mockTextureView{}, SrcYFlipped: flipped}
}

// =============================================================================
// Clear
// =============================================================================

func TestClearNoOpBeforeAnyWork(t *testing.T) {
	device := &mockDevice{}
	u := newTestDrawUtils(t, device, nil)
	defer u.Destroy()

	pass := &mockPass{}
	writer := &mockWriter{}
	color := f32.Vec4{1, 0, 0, 1}

	tests := []struct {
		name    string
		targets RenderTargets
		params  ClearParams
	}{
		{"no attachments", RenderTargets{}, ClearParams{Color: &color}},
		{"nothing requested", fullTargets(), ClearParams{}},
		{"color requested, depth-only pass",
			RenderTargets{DepthFormat: gputypes.TextureFormatDepth24PlusStencil8, Width: 4, Height: 4},
			ClearParams{Color: &color}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := u.Clear(pass, writer, tt.targets, tt.params); err != nil {
				t.Fatalf("Clear: %v", err)
			}
		})
	}

	if pass.draws != 0 {
		t.Errorf("no-op clears issued %d draws", pass.draws)
	}
	if device.buffersCreated != 0 {
		t.Errorf("no-op clears created %d buffers", device.buffersCreated)
	}
	clear, _ := u.PipelineCounts()
	if clear != 0 {
		t.Errorf("no-op clears cached %d pipelines", clear)
	}
}

func TestClearDrawsQuad(t *testing.T) {
	device := &mockDevice{}
	inv := &mockInvalidator{}
	u := newTestDrawUtils(t, device, inv)
	defer u.Destroy()

	pass := &mockPass{}
	writer := &mockWriter{}
	color := f32.Vec4{0, 1, 0, 1}
	depth := float32(0.5)

	err := u.Clear(pass, writer, fullTargets(), ClearParams{Color: &color, Depth: &depth})
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if pass.draws != 1 {
		t.Fatalf("draws = %d, want 1", pass.draws)
	}
	if pass.lastVertices != 6 {
		t.Errorf("vertex count = %d, want 6", pass.lastVertices)
	}
	// Uniform and quad uploads.
	if writer.count() != 2 {
		t.Errorf("buffer writes = %d, want 2", writer.count())
	}
	if inv.calls != 1 {
		t.Errorf("invalidations = %d, want 1", inv.calls)
	}

	// A second identical clear reuses the pipeline variant.
	if err := u.Clear(pass, writer, fullTargets(), ClearParams{Color: &color, Depth: &depth}); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	clear, _ := u.PipelineCounts()
	if clear != 1 {
		t.Errorf("clear pipelines = %d, want 1", clear)
	}
	if inv.calls != 2 {
		t.Errorf("invalidations = %d, want 2", inv.calls)
	}
}

func TestClearDepthOnly(t *testing.T) {
	device := &mockDevice{}
	u := newTestDrawUtils(t, device, nil)
	defer u.Destroy()

	pass := &mockPass{}
	depth := float32(0)
	targets := RenderTargets{
		DepthFormat: gputypes.TextureFormatDepth24PlusStencil8,
		Width:       16,
		Height:      16,
	}
	if err := u.Clear(pass, &mockWriter{}, targets, ClearParams{Depth: &depth}); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if pass.draws != 1 {
		t.Errorf("draws = %d, want 1", pass.draws)
	}
}

// =============================================================================
// Blit
// =============================================================================

func TestBlitNoColorTargetIsNoOp(t *testing.T) {
	device := &mockDevice{}
	u := newTestDrawUtils(t, device, nil)
	defer u.Destroy()

	pass := &mockPass{}
	targets := RenderTargets{DepthFormat: gputypes.TextureFormatDepth24PlusStencil8, Width: 4, Height: 4}
	if err := u.Blit(pass, &mockWriter{}, targets, testBlitSource(false), BlitParams{}); err != nil {
		t.Fatalf("Blit: %v", err)
	}
	if pass.draws != 0 {
		t.Errorf("no-op blit issued %d draws", pass.draws)
	}
}

func TestBlitNilSourceIsNoOp(t *testing.T) {
	device := &mockDevice{}
	u := newTestDrawUtils(t, device, nil)
	defer u.Destroy()

	// An empty source selects nothing to copy; like a clear with no
	// attachments it returns before touching any cache or resource.
	pass := &mockPass{}
	if err := u.Blit(pass, &mockWriter{}, fullTargets(), TextureSource{}, BlitParams{}); err != nil {
		t.Fatalf("Blit: %v", err)
	}
	if pass.draws != 0 {
		t.Errorf("nil-source blit issued %d draws", pass.draws)
	}
	if device.buffersCreated != 0 {
		t.Errorf("nil-source blit created %d buffers", device.buffersCreated)
	}
	_, blit := u.PipelineCounts()
	for mode, size := range blit {
		if size != 0 {
			t.Errorf("nil-source blit cached %d pipelines for alpha mode %d", size, mode)
		}
	}
}

func TestBlitRejectsBadInput(t *testing.T) {
	u := newTestDrawUtils(t, &mockDevice{}, nil)
	defer u.Destroy()

	if err := u.Blit(&mockPass{}, &mockWriter{}, fullTargets(), testBlitSource(false), BlitParams{Alpha: 99}); err == nil {
		t.Error("unknown alpha mode accepted")
	}
}

func TestBlitFlipComposition(t *testing.T) {
	tests := []struct {
		name        string
		srcFlipped  bool
		unpackFlipY bool
		wantFlip    bool
	}{
		{"upright copy", false, false, false},
		{"flipped source", true, false, true},
		{"requested flip", false, true, true},
		{"double flip cancels", true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newTestDrawUtils(t, &mockDevice{}, nil)
			defer u.Destroy()

			writer := &mockWriter{}
			err := u.Blit(&mockPass{}, writer, fullTargets(),
				testBlitSource(tt.srcFlipped), BlitParams{UnpackFlipY: tt.unpackFlipY})
			if err != nil {
				t.Fatalf("Blit: %v", err)
			}

			// The quad upload carries the composed flip in its V coords.
			want := floatBytes(blitQuadVertices(0, 0, 1, 1, tt.wantFlip))
			if !bytes.Equal(writer.last().data, want) {
				t.Error("uploaded quad does not match the composed flip")
			}
		})
	}
}

func TestBlitSourceRect(t *testing.T) {
	u := newTestDrawUtils(t, &mockDevice{}, nil)
	defer u.Destroy()

	src := testBlitSource(false)
	src.Width, src.Height = 64, 32
	writer := &mockWriter{}
	params := BlitParams{SrcRect: &SourceRect{X: 16, Y: 8, Width: 32, Height: 16}}
	if err := u.Blit(&mockPass{}, writer, fullTargets(), src, params); err != nil {
		t.Fatalf("Blit: %v", err)
	}

	want := floatBytes(blitQuadVertices(0.25, 0.25, 0.75, 0.75, false))
	if !bytes.Equal(writer.last().data, want) {
		t.Error("uploaded quad does not match the normalized source rect")
	}

	// A rect without level dimensions cannot be normalized.
	bad := testBlitSource(false)
	if err := u.Blit(&mockPass{}, writer, fullTargets(), bad, params); err == nil {
		t.Error("source rect without dimensions accepted")
	}
}

func TestBlitQuadVerticesFlip(t *testing.T) {
	straight := blitQuadVertices(0, 0, 1, 1, false)
	flipped := blitQuadVertices(0, 0, 1, 1, true)
	if len(straight) != 24 {
		t.Fatalf("vertex data length = %d, want 24", len(straight))
	}
	for v := 0; v < 6; v++ {
		// Positions and U stay put, V inverts.
		for c := 0; c < 3; c++ {
			if straight[v*4+c] != flipped[v*4+c] {
				t.Errorf("vertex %d component %d changed by flip", v, c)
			}
		}
		if straight[v*4+3] != 1-flipped[v*4+3] {
			t.Errorf("vertex %d V coord not inverted", v)
		}
	}
}

func TestBlitPerAlphaModeCaches(t *testing.T) {
	u := newTestDrawUtils(t, &mockDevice{}, nil)
	defer u.Destroy()

	writer := &mockWriter{}
	for _, mode := range []AlphaMode{AlphaPassthrough, AlphaPremultiply, AlphaUnmultiply} {
		err := u.Blit(&mockPass{}, writer, fullTargets(), testBlitSource(false), BlitParams{Alpha: mode})
		if err != nil {
			t.Fatalf("Blit alpha %d: %v", mode, err)
		}
	}

	// The modes share a pipeline key, so each needs its own cache.
	_, blit := u.PipelineCounts()
	for mode, size := range blit {
		if size != 1 {
			t.Errorf("alpha mode %d cache size = %d, want 1", mode, size)
		}
	}
}

// =============================================================================
// Frame Lifetime
// =============================================================================

func TestEndFrameReleasesTransients(t *testing.T) {
	device := &mockDevice{}
	u := newTestDrawUtils(t, device, nil)
	defer u.Destroy()

	color := f32.Vec4{1, 1, 1, 1}
	if err := u.Clear(&mockPass{}, &mockWriter{}, fullTargets(), ClearParams{Color: &color}); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := u.Blit(&mockPass{}, &mockWriter{}, fullTargets(), testBlitSource(false), BlitParams{}); err != nil {
		t.Fatalf("Blit: %v", err)
	}

	created := device.buffersCreated
	groups := device.bindGroupsCreated
	if created == 0 || groups == 0 {
		t.Fatal("draws created no transient resources")
	}

	u.EndFrame()
	if device.buffersDestroyed != created {
		t.Errorf("buffers destroyed = %d, want %d", device.buffersDestroyed, created)
	}
	if device.bindGroupsFreed != groups {
		t.Errorf("bind groups destroyed = %d, want %d", device.bindGroupsFreed, groups)
	}

	// A second EndFrame has nothing left to release.
	u.EndFrame()
	if device.buffersDestroyed != created {
		t.Error("EndFrame released resources twice")
	}
}

func TestDrawUtilsDestroy(t *testing.T) {
	device := &mockDevice{}
	u := newTestDrawUtils(t, device, nil)

	u.Destroy()
	if device.modulesDestroyed != 2 {
		t.Errorf("shader modules destroyed = %d, want 2", device.modulesDestroyed)
	}

	// Stats queries stay safe after teardown and report empty caches.
	clear, blit := u.PipelineCounts()
	if clear != 0 {
		t.Errorf("clear pipelines after Destroy = %d, want 0", clear)
	}
	for mode, size := range blit {
		if size != 0 {
			t.Errorf("blit pipelines after Destroy = %d for alpha mode %d, want 0", size, mode)
		}
	}
}
