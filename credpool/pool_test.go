package credpool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teranos/kcore-analytics/upstream"
)

func TestPool_NextCyclesRoundRobin(t *testing.T) {
	p := New("http://127.0.0.1:1", []upstream.Credential{
		{ID: "a"}, {ID: "b"}, {ID: "c"},
	})
	assert.Equal(t, 3, p.Len())

	assert.Equal(t, "a", p.creds[0].ID)
	assert.Equal(t, "b", p.creds[1].ID)
	assert.Equal(t, "c", p.creds[2].ID)

	// Next advances the index before it dials, so the advance is observable
	// even though connecting to the unreachable base URL fails.
	for _, want := range []int{1, 2, 0, 1} {
		_, err := p.Next(t.Context())
		assert.Error(t, err)
		assert.Equal(t, want, p.next)
	}
}

func TestPool_EmptyPoolLen(t *testing.T) {
	p := New("https://bsky.social", nil)
	assert.Equal(t, 0, p.Len())
}
