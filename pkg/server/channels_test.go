package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestChannelRegistry(t *testing.T) {
	r := NewChannelRegistry([]SeedChannel{{Name: "general", Topic: "hi"}}, false)

	name, topic, err := r.Join("  general ")
	require.NoError(t, err)
	assert.Equal(t, "general", name)
	assert.Equal(t, "hi", topic)

	_, _, err = r.Join("other")
	assert.ErrorIs(t, err, ErrNoSuchChannel)
	_, _, err = r.Join("")
	assert.ErrorIs(t, err, ErrNoChannelName)

	require.NoError(t, r.SetTopic("general", "new"))
	got, ok := r.Topic("general")
	assert.True(t, ok)
	assert.Equal(t, "new", got)
	assert.ErrorIs(t, r.SetTopic("missing", "x"), ErrNoSuchChannel)
}

func TestChannelRegistryNamesSortedAndUnique(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewChannelRegistry(nil, true)
		names := rapid.SliceOf(rapid.StringMatching(`[a-z]{1,6}`)).Draw(t, "names")
		for _, n := range names {
			if _, _, err := r.Join(n); err != nil {
				t.Fatalf("join %q: %v", n, err)
			}
		}

		got := r.Names()
		for i := 1; i < len(got); i++ {
			if got[i-1] >= got[i] {
				t.Fatalf("names not strictly sorted: %v", got)
			}
		}
		for _, n := range names {
			if _, ok := r.Topic(n); !ok {
				t.Fatalf("channel %q missing", n)
			}
		}
	})
}
