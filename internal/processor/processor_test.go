package processor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascbridge/internal/clock"
	"github.com/roach88/cascbridge/internal/exchange"
	"github.com/roach88/cascbridge/internal/journal"
	"github.com/roach88/cascbridge/internal/keyframes"
	"github.com/roach88/cascbridge/internal/trigger"
	"github.com/roach88/cascbridge/internal/watcher"
)

type report struct {
	Level Level
	Msg   string
}

// fakeHost records every call it receives.
type fakeHost struct {
	mu      sync.Mutex
	calls   []string
	reports []report
	marks   *keyframes.Set
	fail    error
}

func (h *fakeHost) call(format string, args ...any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, fmt.Sprintf(format, args...))
	return h.fail
}

func (h *fakeHost) ImportObject(_ context.Context, fbxPath, objectName string) error {
	return h.call("import_object %s %s", fbxPath, objectName)
}

func (h *fakeHost) ImportAnimation(_ context.Context, fbxPath, objectName string, marks *keyframes.Set) error {
	h.mu.Lock()
	h.marks = marks
	h.mu.Unlock()
	return h.call("import_animation %s %s", fbxPath, objectName)
}

func (h *fakeHost) ImportScene(_ context.Context, fbxPath string) error {
	return h.call("import_scene %s", fbxPath)
}

func (h *fakeHost) CleanKeyframes(_ context.Context, marks *keyframes.Set) error {
	h.mu.Lock()
	h.marks = marks
	h.mu.Unlock()
	return h.call("clean_keyframes %s", marks)
}

func (h *fakeHost) Report(level Level, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reports = append(h.reports, report{level, msg})
}

func (h *fakeHost) levels() []Level {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Level, len(h.reports))
	for i, r := range h.reports {
		out[i] = r.Level
	}
	return out
}

type fixture struct {
	fs      afero.Fs
	host    *fakeHost
	loop    *Loop
	journal *journal.Journal
	proc    *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	f := &fixture{
		fs:      afero.NewMemMapFs(),
		host:    &fakeHost{},
		loop:    NewLoop(quietLogger()),
		journal: j,
	}
	f.proc = New(f.fs, f.host, f.loop,
		WithJournal(j),
		WithClock(clock.NewFake(time.Unix(1_700_000_000, 0))),
		WithLogger(quietLogger()),
	)
	return f
}

func (f *fixture) touch(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(f.fs, path, []byte(body), 0o644))
}

func (f *fixture) handle(t *testing.T, action string, data map[string]any) {
	t.Helper()
	d := trigger.Delivery{
		Name:   "trigger_" + action + "_1000.json",
		Path:   "/ex/blender_triggers/trigger_" + action + "_1000.json",
		Record: trigger.Record{Action: action, Timestamp: 1000, Data: data},
	}
	require.NoError(t, f.proc.Handle(context.Background(), d))
	f.loop.Pump(context.Background())
}

func (f *fixture) outcomes(t *testing.T) []journal.Outcome {
	t.Helper()
	entries, err := f.journal.List(context.Background(), 0)
	require.NoError(t, err)
	out := make([]journal.Outcome, len(entries))
	for i, e := range entries {
		out[i] = e.Outcome
	}
	return out
}

func TestHandle_RunsOnlyOnTheMainLoop(t *testing.T) {
	f := newFixture(t)
	f.touch(t, "/tmp/x.fbx", "fbx")

	d := trigger.Delivery{
		Name:   "trigger_import_object_1000.json",
		Record: trigger.Record{Action: "import_object", Timestamp: 1000, Data: map[string]any{"fbx_path": "/tmp/x.fbx", "object_name": "Hero"}},
	}
	require.NoError(t, f.proc.Handle(context.Background(), d))

	assert.Empty(t, f.host.calls, "host must not be called from the watcher goroutine")
	assert.Equal(t, 1, f.loop.Len())

	f.loop.Pump(context.Background())
	assert.Equal(t, []string{"import_object /tmp/x.fbx Hero"}, f.host.calls)
	assert.Equal(t, []Level{LevelInfo}, f.host.levels())
	assert.Equal(t, []journal.Outcome{journal.OutcomeHandled}, f.outcomes(t))
}

func TestHandle_MissingInputIsReportedAndHandled(t *testing.T) {
	f := newFixture(t)

	f.handle(t, "import_object", map[string]any{"fbx_path": "/tmp/gone.fbx", "object_name": "Hero"})

	assert.Empty(t, f.host.calls)
	require.Len(t, f.host.reports, 1)
	assert.Equal(t, LevelWarning, f.host.reports[0].Level)
	assert.Contains(t, f.host.reports[0].Msg, "/tmp/gone.fbx")
	assert.Equal(t, []journal.Outcome{journal.OutcomeMissingInput}, f.outcomes(t))
}

func TestHandle_UnknownActionIsIgnored(t *testing.T) {
	f := newFixture(t)

	f.handle(t, "summon_dragon", map[string]any{})

	assert.Empty(t, f.host.calls)
	assert.Empty(t, f.host.reports)
	entries, err := f.journal.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.OutcomeIgnored, entries[0].Outcome)
	assert.Contains(t, entries[0].Detail, "UNKNOWN_ACTION")
}

func TestHandle_InvalidPayloadIsRejected(t *testing.T) {
	f := newFixture(t)

	f.handle(t, "import_object", map[string]any{"fbx_path": "/tmp/x.fbx"})
	f.handle(t, "import_scene", map[string]any{"fbx_path": 42})

	assert.Empty(t, f.host.calls)
	assert.Equal(t, []Level{LevelError, LevelError}, f.host.levels())
	assert.Contains(t, f.host.reports[0].Msg, "object_name")
	assert.Equal(t, []journal.Outcome{journal.OutcomeRejected, journal.OutcomeRejected}, f.outcomes(t))
}

func TestHandle_ImportAnimationLoadsMarks(t *testing.T) {
	f := newFixture(t)
	f.touch(t, "/ex/fbx/anim.fbx", "fbx")
	f.touch(t, "/ex/json/anim.json", `{"12": {}, "40": {}}`)

	f.handle(t, "import_animation", map[string]any{
		"fbx_path": "/ex/fbx/anim.fbx", "json_path": "/ex/json/anim.json", "object_name": "Rig",
	})

	assert.Equal(t, []string{"import_animation /ex/fbx/anim.fbx Rig"}, f.host.calls)
	require.NotNil(t, f.host.marks)
	assert.Equal(t, []int{12, 40}, f.host.marks.MarkedFrames())
}

func TestHandle_ImportAnimationBadMetadata(t *testing.T) {
	f := newFixture(t)
	f.touch(t, "/ex/fbx/anim.fbx", "fbx")
	f.touch(t, "/ex/json/anim.json", `[1, 2]`)

	f.handle(t, "import_animation", map[string]any{
		"fbx_path": "/ex/fbx/anim.fbx", "json_path": "/ex/json/anim.json", "object_name": "Rig",
	})

	assert.Empty(t, f.host.calls)
	assert.Equal(t, []Level{LevelError}, f.host.levels())
	assert.Equal(t, []journal.Outcome{journal.OutcomeFailed}, f.outcomes(t))
}

func TestHandle_ImportAllScenesSkipsMissing(t *testing.T) {
	f := newFixture(t)
	f.touch(t, "/ex/fbx/a.fbx", "a")
	f.touch(t, "/ex/fbx/c.fbx", "c")

	f.handle(t, "import_all_scenes", map[string]any{
		"fbx_paths": []any{"/ex/fbx/a.fbx", "/ex/fbx/b.fbx", "/ex/fbx/c.fbx"},
	})

	assert.Equal(t, []string{"import_scene /ex/fbx/a.fbx", "import_scene /ex/fbx/c.fbx"}, f.host.calls)
	assert.Equal(t, []Level{LevelWarning, LevelInfo}, f.host.levels())

	entries, err := f.journal.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.OutcomeHandled, entries[0].Outcome)
	assert.Equal(t, "imported 2 of 3 scenes", entries[0].Detail)
}

func TestHandle_ImportAllScenesNothingFound(t *testing.T) {
	f := newFixture(t)

	f.handle(t, "import_all_scenes", map[string]any{"fbx_paths": []any{"/nope.fbx"}})

	assert.Empty(t, f.host.calls)
	assert.Equal(t, []journal.Outcome{journal.OutcomeMissingInput}, f.outcomes(t))
}

func TestHandle_CleanKeyframes(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		f := newFixture(t)
		f.handle(t, "clean_keyframes", map[string]any{
			"keyframes": map[string]any{"5": map[string]any{}, "1": map[string]any{}},
		})
		assert.Equal(t, []string{"clean_keyframes 1,5"}, f.host.calls)
		assert.Equal(t, []journal.Outcome{journal.OutcomeHandled}, f.outcomes(t))
	})

	t.Run("from metadata file", func(t *testing.T) {
		f := newFixture(t)
		f.touch(t, "/ex/json/k.json", `{"3": {}}`)
		f.handle(t, "clean_keyframes", map[string]any{"json_path": "/ex/json/k.json"})
		assert.Equal(t, []string{"clean_keyframes 3"}, f.host.calls)
	})

	t.Run("missing metadata file", func(t *testing.T) {
		f := newFixture(t)
		f.handle(t, "clean_keyframes", map[string]any{"json_path": "/ex/json/none.json"})
		assert.Empty(t, f.host.calls)
		assert.Equal(t, []Level{LevelWarning}, f.host.levels())
		assert.Equal(t, []journal.Outcome{journal.OutcomeMissingInput}, f.outcomes(t))
	})

	t.Run("invalid frame", func(t *testing.T) {
		f := newFixture(t)
		f.handle(t, "clean_keyframes", map[string]any{"keyframes": map[string]any{"one": map[string]any{}}})
		assert.Empty(t, f.host.calls)
		assert.Equal(t, []journal.Outcome{journal.OutcomeRejected}, f.outcomes(t))
	})
}

func TestHandle_HostFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.host.fail = errors.New("fbx importer crashed")
	f.touch(t, "/tmp/s.fbx", "fbx")

	f.handle(t, "import_scene", map[string]any{"fbx_path": "/tmp/s.fbx"})

	require.Len(t, f.host.reports, 1)
	assert.Equal(t, LevelError, f.host.reports[0].Level)
	assert.Contains(t, f.host.reports[0].Msg, "fbx importer crashed")
	assert.Equal(t, []journal.Outcome{journal.OutcomeFailed}, f.outcomes(t))
}

func TestHandle_ClosedLoopKeepsTrigger(t *testing.T) {
	f := newFixture(t)
	f.loop.Close()

	err := f.proc.Handle(context.Background(), trigger.Delivery{
		Name:   "trigger_import_scene_1.json",
		Record: trigger.Record{Action: "import_scene", Data: map[string]any{"fbx_path": "/a.fbx"}},
	})
	assert.ErrorIs(t, err, ErrLoopClosed)
}

func TestHandle_WithoutJournal(t *testing.T) {
	fs := afero.NewMemMapFs()
	host := &fakeHost{}
	loop := NewLoop(quietLogger())
	p := New(fs, host, loop, WithLogger(quietLogger()))

	require.NoError(t, p.Handle(context.Background(), trigger.Delivery{
		Name:   "trigger_import_scene_1.json",
		Record: trigger.Record{Action: "import_scene", Data: map[string]any{"fbx_path": "/a.fbx"}},
	}))
	assert.Equal(t, 1, loop.Pump(context.Background()))
	assert.Equal(t, []Level{LevelWarning}, host.levels())
}

func TestProcessor_WatcherEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.touch(t, "/tmp/x.fbx", "fbx")

	layout := exchange.Layout{Root: "/ex"}
	writer := exchange.NewWriter(f.fs, layout, exchange.RoleBlender,
		exchange.WithWriterClock(clock.NewFake(time.Unix(1000, 0))))
	path, err := writer.WriteCommand(&trigger.ImportObject{FBXPath: "/tmp/x.fbx", ObjectName: "Hero"})
	require.NoError(t, err)

	w := watcher.New(f.fs, layout, exchange.RoleBlender, f.proc.Handle,
		watcher.WithClock(clock.NewFake(time.Unix(2000, 0))),
		watcher.WithLogger(quietLogger()),
	)
	res := w.Poll(context.Background())
	assert.Equal(t, 1, res.Delivered)

	ok, err := afero.Exists(f.fs, path+".processed")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Empty(t, f.host.calls)
	f.loop.Pump(context.Background())
	assert.Equal(t, []string{"import_object /tmp/x.fbx Hero"}, f.host.calls)

	entries, err := f.journal.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "trigger_import_object_1000.json", entries[0].Name)
	assert.Equal(t, trigger.MustDigest(trigger.Record{
		Action:    "import_object",
		Timestamp: 1000,
		Data:      map[string]any{"fbx_path": "/tmp/x.fbx", "object_name": "Hero"},
	}), entries[0].Digest)
}
