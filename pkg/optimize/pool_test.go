package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytePoolHandsOutConfiguredSize(t *testing.T) {
	p := NewBytePool(64)

	b := p.Get()
	assert.Len(t, b, 64)
	assert.Equal(t, 64, p.Size())

	// A shortened slice comes back at full size after a round trip.
	p.Put(b[:10])
	assert.Len(t, p.Get(), 64)
}

func TestBytePoolDropsUndersizedSlices(t *testing.T) {
	p := NewBytePool(64)

	p.Put(make([]byte, 8))

	assert.Len(t, p.Get(), 64)
}
