package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingSub struct{ closed int }

func (s *countingSub) Close() error {
	s.closed++
	return nil
}

func TestScope_CloseClosesAll(t *testing.T) {
	s := newScope()
	a, b := &countingSub{}, &countingSub{}
	s.Add(a)
	s.Add(b)
	assert.Equal(t, 2, s.Len())

	s.Close()
	s.Close()
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed)
	assert.Zero(t, s.Len())
}

func TestScope_AddAfterCloseClosesImmediately(t *testing.T) {
	s := newScope()
	s.Close()

	late := &countingSub{}
	s.Add(late)
	assert.Equal(t, 1, late.closed)
	assert.Zero(t, s.Len())
}
