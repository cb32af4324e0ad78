package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_PublishInOrder(t *testing.T) {
	b := New()

	var got []string
	b.Subscribe("sample_reported", func(e any) { got = append(got, "a:"+e.(string)) })
	b.Subscribe("sample_reported", func(e any) { got = append(got, "b:"+e.(string)) })
	b.Subscribe("other", func(e any) { got = append(got, "other") })

	b.Publish("sample_reported", "x")

	assert.Equal(t, []string{"a:x", "b:x"}, got)
}

func TestBus_PanickingHandlerIsContained(t *testing.T) {
	b := New()

	var panics []string
	b.OnPanic = func(name string, err error) { panics = append(panics, name+": "+err.Error()) }

	called := false
	b.Subscribe("e", func(any) { panic("bad") })
	b.Subscribe("e", func(any) { called = true })

	assert.NotPanics(t, func() { b.Publish("e", nil) })
	assert.True(t, called)
	assert.Equal(t, []string{"e: event handler panic: bad"}, panics)
}
