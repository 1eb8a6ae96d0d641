package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FullRecord(t *testing.T) {
	data := []byte(`{"action":"import_object","timestamp":1000,"data":{"fbx_path":"/tmp/x.fbx","object_name":"Hero"}}`)

	rec, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "import_object", rec.Action)
	assert.Equal(t, float64(1000), rec.Timestamp)
	assert.Equal(t, map[string]any{"fbx_path": "/tmp/x.fbx", "object_name": "Hero"}, rec.Data)
}

func TestParse_DefaultsOptionalFields(t *testing.T) {
	rec, err := Parse([]byte(`{"action":"clean_keyframes","data":null}`))
	require.NoError(t, err)
	assert.Zero(t, rec.Timestamp)
	assert.NotNil(t, rec.Data)
	assert.Empty(t, rec.Data)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `this is not json`},
		{"truncated", `{"action":"import_obj`},
		{"missing action", `{"timestamp":1}`},
		{"empty action", `{"action":""}`},
		{"action wrong type", `{"action":42}`},
		{"data wrong type", `{"action":"x","data":[1,2]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestEncode_ParseRoundTrip(t *testing.T) {
	rec := NewRecord("import_animation", time.Unix(1700000000, 250_000_000), map[string]any{
		"fbx_path":    "/x/fbx/a&b.fbx",
		"json_path":   "/x/json/a.json",
		"object_name": "Hero",
	})

	data, err := Encode(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"/x/fbx/a&b.fbx"`, "HTML characters must not be escaped")
	assert.NotEqual(t, byte('\n'), data[len(data)-1])

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, rec, back)
}

func TestEncode_NilDataBecomesObject(t *testing.T) {
	data, err := Encode(Record{Action: "noop", Timestamp: 5})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"action\": \"noop\",\n  \"timestamp\": 5,\n  \"data\": {}\n}", string(data))
}

func TestNewRecord_CopiesPayload(t *testing.T) {
	payload := map[string]any{"fbx_path": "/a.fbx"}
	rec := NewRecord("import_scene", time.Unix(10, 0), payload)
	payload["fbx_path"] = "/changed.fbx"

	assert.Equal(t, "/a.fbx", rec.Data["fbx_path"])
	assert.Equal(t, float64(10), rec.Timestamp)
	assert.Equal(t, time.Unix(10, 0), rec.Time())
}

func TestFileNames(t *testing.T) {
	name := FileName("import_object", time.Unix(1000, 999))
	assert.Equal(t, "trigger_import_object_1000.json", name)
	assert.True(t, IsPending(name))
	assert.False(t, IsProcessed(name))

	processed := ProcessedPath("/ex/blender_triggers/" + name)
	assert.Equal(t, "/ex/blender_triggers/trigger_import_object_1000.json.processed", processed)
	assert.False(t, IsPending("trigger_import_object_1000.json.processed"))
	assert.True(t, IsProcessed(processed))

	alt := CollisionName(name, 2)
	assert.Equal(t, "trigger_import_object_1000-2.json", alt)
	assert.True(t, IsPending(alt))

	assert.False(t, IsPending("notes.json"))
	assert.False(t, IsPending("trigger_x.txt"))
}

func TestValidActionName(t *testing.T) {
	for _, name := range []string{"import_object", "clean_keyframes", "a1"} {
		assert.True(t, ValidActionName(name), name)
	}
	for _, name := range []string{"", "../x", "a/b", "Import", "a-b", "a.b", "é"} {
		assert.False(t, ValidActionName(name), name)
	}
}
