package job

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanwarp/internal/geometry"
)

func TestID_EchoesRawToken(t *testing.T) {
	tests := []struct {
		name string
		json string
		str  string
	}{
		{"string", `"job-7"`, "job-7"},
		{"integer", `42`, "42"},
		{"float", `4.50`, "4.50"},
		{"null", `null`, "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id ID
			require.NoError(t, json.Unmarshal([]byte(tt.json), &id))
			assert.Equal(t, tt.str, id.String())
			out, err := json.Marshal(id)
			require.NoError(t, err)
			assert.Equal(t, tt.json, string(out))
		})
	}

	var bad ID
	assert.Error(t, bad.UnmarshalJSON([]byte(`{`)))

	assert.True(t, ID{}.IsZero())
	assert.False(t, StringID("x").IsZero())
	assert.Equal(t, "17", NumberID(17).String())
}

func TestDecodeRequest(t *testing.T) {
	j, err := DecodeRequest([]byte(`{
		"id": 3,
		"sourceRef": "https://example.test/a.jpg",
		"name": "a.jpg",
		"operation": "warp",
		"points": [{"x":0,"y":0},{"x":10,"y":0},{"x":10,"y":10},{"x":0,"y":10},
		           {"x":5,"y":0},{"x":10,"y":5},{"x":5,"y":10},{"x":0,"y":5}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "3", j.ID.String())
	assert.Equal(t, "https://example.test/a.jpg", j.SourceRef)
	assert.Equal(t, "a.jpg", j.Name)
	assert.Equal(t, OpWarp, j.Operation)
	assert.Len(t, j.Points, 8)
}

func TestDecodeRequest_Aliases(t *testing.T) {
	j, err := DecodeRequest([]byte(`{"id":"x","url":"blob.png","op":"grayscale"}`))
	require.NoError(t, err)
	assert.Equal(t, "blob.png", j.SourceRef)
	assert.Equal(t, OpGrayscale, j.Operation)
	assert.Equal(t, "grayscale", j.RawOperation)

	j, err = DecodeRequest([]byte(`{"id":"y","sourceRef":"s","operation":"emboss"}`))
	require.NoError(t, err)
	assert.Equal(t, OpPassthrough, j.Operation)
	assert.Equal(t, "emboss", j.RawOperation)

	_, err = DecodeRequest([]byte(`not json`))
	assert.Error(t, err)
}

func TestResponseWireShapes(t *testing.T) {
	pts := geometry.FullFrame(4, 2).Points()
	tests := []struct {
		name string
		in   Result
		want string
	}{
		{
			name: "done",
			in:   Done{ID: StringID("a"), SourceRef: "s.png", Name: "s"},
			want: `{"tag":"done","id":"a","sourceRef":"s.png","name":"s"}`,
		},
		{
			name: "doneBlob",
			in:   DoneImage{ID: NumberID(1), MIME: "image/png", Blob: []byte{1, 2, 3}},
			want: `{"tag":"doneBlob","id":1,"mime":"image/png","blob":"AQID"}`,
		},
		{
			name: "error",
			in:   Failure{ID: NumberID(2), Reason: "boom"},
			want: `{"tag":"error","id":2,"reason":"boom"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := EncodeResult(tt.in)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(out))
		})
	}

	out, err := EncodeResult(Detected{ID: StringID("d"), Points: pts, Width: 4, Height: 2})
	require.NoError(t, err)
	var resp Response
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, TagDetected, resp.Tag)
	assert.Len(t, resp.Points, 8)
	assert.Equal(t, 4, resp.Width)
}

func TestResponseResult(t *testing.T) {
	for _, in := range []Result{
		Done{ID: StringID("a"), SourceRef: "s"},
		DoneImage{ID: StringID("b"), MIME: "image/png", Blob: []byte("x")},
		Detected{ID: StringID("c"), Points: geometry.FullFrame(2, 2).Points(), Width: 2, Height: 2},
		Failure{ID: StringID("d"), Reason: "r"},
	} {
		back, err := NewResponse(in).Result()
		require.NoError(t, err)
		assert.Equal(t, in, back)
	}

	_, err := Response{Tag: "weird"}.Result()
	assert.Error(t, err)
	_, err = Response{}.Result()
	assert.Error(t, err)
	_, err = Response{Tag: TagDetected, Points: make([]geometry.Point, 3)}.Result()
	assert.Error(t, err)
}
