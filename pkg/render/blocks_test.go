package render

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestAccumulatorNestedPrefixes(t *testing.T) {
	a := NewAccumulator()
	err := a.Quoted("> ", func() error {
		a.Line("outer")
		return a.Quoted("> ", func() error {
			a.Line("inner")
			return nil
		})
	})
	require.NoError(t, err)
	require.Equal(t, "> outer\n> > inner", a.String())
}

func TestAccumulatorPrefixPoppedOnError(t *testing.T) {
	a := NewAccumulator()
	err := a.Quoted("> ", func() error {
		return errors.New("boom")
	})
	require.Error(t, err)

	a.Line("after")
	require.Equal(t, "after", a.String())
}

func TestAccumulatorSplitsEmbeddedNewlines(t *testing.T) {
	a := NewAccumulator()
	_ = a.Quoted("> ", func() error {
		a.Line("one\ntwo")
		return nil
	})
	require.Equal(t, "> one\n> two", a.String())
}

func TestAccumulatorBlankTrimsTrailingSpace(t *testing.T) {
	a := NewAccumulator()
	_ = a.Quoted("> ", func() error {
		a.Line("x")
		a.Blank()
		a.Line("y")
		return nil
	})
	require.Equal(t, "> x\n>\n> y", a.String())
}

func TestAccumulatorSeparateOnlyWhenNotEmpty(t *testing.T) {
	a := NewAccumulator()
	require.True(t, a.Empty())

	a.Separate()
	require.True(t, a.Empty())

	a.Line("x")
	a.Separate()
	a.Line("y")
	require.Equal(t, "x\n\ny", a.String())
}
