package stories

import (
	"testing"
	"time"

	"datakit/core/reconcile"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_InputKey(t *testing.T) {
	tests := []struct {
		name      string
		in        Payload
		want      int64
		malformed bool
	}{
		{"Number", Payload{"id": json.Number("8863")}, 8863, false},
		{"Int", Payload{"id": 7}, 7, false},
		{"Null Fields", Payload{"id": 1, "title": nil, "url": nil}, 1, false},
		{"Missing", Payload{"title": "x"}, 0, true},
		{"Null", Payload{"id": nil}, 0, true},
		{"String", Payload{"id": "8863"}, 0, true},
		{"Fraction", Payload{"id": json.Number("1.5")}, 0, true},
		{"Bad Title", Payload{"id": 1, "title": json.Number("3")}, 0, true},
		{"Bad Time", Payload{"id": 1, "time": "yesterday"}, 0, true},
		{"Bad Score", Payload{"id": 1, "score": "high"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Adapter{}.InputKey(tt.in)
			if tt.malformed {
				assert.ErrorIs(t, err, reconcile.ErrMalformedInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdapter_Apply(t *testing.T) {
	story := Adapter{}.NewRecord(8863)
	Adapter{}.Apply(story, Payload{
		"id":    json.Number("8863"),
		"time":  json.Number("1175714200"),
		"title": "My YC app: Dropbox - Throw away your USB drive",
		"url":   "http://www.getdropbox.com/u/2/screencast.html",
		"by":    "dhouston",
		"score": json.Number("111"),
		"type":  "story",
	})

	assert.Equal(t, int64(8863), story.StoryID)
	assert.True(t, story.Time.Equal(time.Unix(1175714200, 0)))
	assert.Equal(t, "dhouston", story.By)
	assert.Equal(t, int64(111), story.Score)

	// Absent fields reset to defaults.
	Adapter{}.Apply(story, Payload{"id": json.Number("8863"), "title": "Dropbox"})
	assert.Equal(t, "Dropbox", story.Title)
	assert.True(t, story.Time.IsZero())
	assert.Empty(t, story.URL)
	assert.Empty(t, story.By)
	assert.Zero(t, story.Score)
	assert.Equal(t, int64(8863), story.StoryID)
}

func TestAdapter_Equal(t *testing.T) {
	at := time.Unix(1175714200, 0)
	a := &Story{StoryID: 1, Time: at.UTC(), Title: "t"}
	b := &Story{StoryID: 1, Time: at.In(time.FixedZone("CET", 3600)), Title: "t"}

	assert.True(t, Adapter{}.Equal(a, b))

	b.Score = 1
	assert.False(t, Adapter{}.Equal(a, b))
}

func TestStory_PayloadRoundTrip(t *testing.T) {
	original := &Story{
		StoryID: 42,
		Time:    time.Unix(1700000000, 0).UTC(),
		Title:   "Show HN",
		By:      "pg",
		Score:   9,
	}

	p := original.Payload()
	_, hasURL := p["url"]
	assert.False(t, hasURL)

	key, err := Adapter{}.InputKey(p)
	require.NoError(t, err)

	restored := Adapter{}.NewRecord(key)
	Adapter{}.Apply(restored, p)
	assert.True(t, Adapter{}.Equal(original, restored))
}

func TestDecodePayloads(t *testing.T) {
	payloads, err := DecodePayloads([]byte(`[{"id": 1, "score": 5}, null, {"id": 2}]`))
	require.NoError(t, err)
	require.Len(t, payloads, 2)
	assert.Equal(t, json.Number("1"), payloads[0]["id"])
	assert.Equal(t, json.Number("2"), payloads[1]["id"])

	p, err := DecodePayload([]byte(`null`))
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = DecodePayloads([]byte(`{"id": 1}`))
	assert.Error(t, err)
}
