package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/qmuntal/gltf"
	"github.com/rs/zerolog"

	"github.com/normanking/cortexblob/internal/blob"
	"github.com/normanking/cortexblob/internal/deform"
	"github.com/normanking/cortexblob/internal/emotion"
)

func newEngine(t testing.TB, clock clockwork.Clock, w, h, points int) *blob.Engine {
	t.Helper()

	store, err := emotion.NewPresetStore(emotion.DefaultPresets())
	if err != nil {
		t.Fatal(err)
	}
	mesh, err := deform.NewPolarSphere(1, w, h)
	if err != nil {
		t.Fatal(err)
	}
	cloud, err := deform.NewPointCloud(1, points, 7)
	if err != nil {
		t.Fatal(err)
	}

	e, err := blob.NewEngine(blob.Options{
		Presets:       store,
		Router:        emotion.DefaultRouter(),
		Field:         deform.NewField(deform.NewNoise(7)),
		Mesh:          mesh,
		Cloud:         cloud,
		NeutralPreset: "Neutrality",
		Clock:         clock,
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func stepFor(t testing.TB, e *blob.Engine, d time.Duration) blob.Frame {
	t.Helper()
	const dt = 1.0 / 60
	var f blob.Frame
	for elapsed := 0.0; elapsed < d.Seconds(); elapsed += dt {
		var err error
		if f, err = e.Step(context.Background(), dt); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func TestConversationSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := newEngine(t, clock, 16, 8, 500)
	stepFor(t, e, 2*time.Second)

	if _, err := e.StartSession(); err != nil {
		t.Fatal(err)
	}

	// A classifier reporting every 500ms.
	labels := []string{"joy", "JOY", "unknown-label", "anger", "neutral", "Anger"}
	for _, label := range labels {
		e.OnSentiment(label)
		stepFor(t, e, 100*time.Millisecond)
		clock.Advance(500 * time.Millisecond)
	}

	summary, err := e.EndSession()
	if err != nil {
		t.Fatal(err)
	}

	got := summary.Percentages()
	want := map[string]string{"Joy": "50.0", "Anger": "50.0"}
	if len(got) != len(want) {
		t.Fatalf("percentages = %v, want %v", got, want)
	}
	for label, pct := range want {
		if got[label] != pct {
			t.Errorf("%s = %q, want %q", label, got[label], pct)
		}
	}

	f := stepFor(t, e, 2*time.Second)
	if f.Preset != "Neutrality" || f.Transitioning {
		t.Errorf("after session: preset %q transitioning %v, want settled Neutrality", f.Preset, f.Transitioning)
	}
}

func TestTransitionReachesPresetExactly(t *testing.T) {
	e := newEngine(t, clockwork.NewFakeClock(), 16, 8, 100)

	for _, name := range []string{"Fear", "Love", "Sadness", "Neutrality"} {
		e.ApplyPreset(name)
		f := stepFor(t, e, 1100*time.Millisecond)

		want, err := e.Preset(name)
		if err != nil {
			t.Fatal(err)
		}
		if f.Live != want {
			t.Errorf("%s: live vector did not settle on the preset", name)
		}
		wantKind := deform.KindMesh
		if want.PointMode {
			wantKind = deform.KindPointCloud
		}
		if f.Visible != wantKind {
			t.Errorf("%s: visible = %s, want %s", name, f.Visible, wantKind)
		}
	}
}

func TestExportedSceneMatchesGeometry(t *testing.T) {
	e := newEngine(t, clockwork.NewFakeClock(), 32, 16, 1000)
	e.ApplyPreset("Surprise")
	stepFor(t, e, 1500*time.Millisecond)

	path := filepath.Join(t.TempDir(), "surprise.glb")
	if err := e.ExportGLB(path); err != nil {
		t.Fatal(err)
	}

	doc, err := gltf.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Meshes) != 2 {
		t.Fatalf("meshes = %d, want 2", len(doc.Meshes))
	}

	counts := []int{33 * 17, 1000}
	for i, mesh := range doc.Meshes {
		pos := doc.Accessors[mesh.Primitives[0].Attributes[gltf.POSITION]]
		if pos.Count != counts[i] {
			t.Errorf("%s: %d positions, want %d", mesh.Name, pos.Count, counts[i])
		}
	}
}

func BenchmarkStepDefaultGeometry(b *testing.B) {
	e := newEngine(b, clockwork.NewFakeClock(), 64, 64, 50000)
	e.ApplyPreset("Joy")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Step(context.Background(), 1.0/60); err != nil {
			b.Fatal(err)
		}
	}
}
