package machine

import (
	"math"
	"testing"

	"github.com/orivej/ukern/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	m := NewMemory(DefaultLayout())

	cases := []struct {
		addr  uint32
		write bool
		cause fault.Cause
	}{
		{0, true, fault.CausePageFault},
		{20, true, fault.CausePageFault},
		{1, false, fault.CauseAddressError},
		{0x400, true, fault.CauseReadOnly},
		{0xFFFC, false, fault.CausePageFault},
		{0x10000, false, fault.CauseBusError},
		{0xFFFE, false, fault.CauseBusError},
	}
	for _, c := range cases {
		ex := m.Check(c.addr, c.write)
		require.NotNil(t, ex, "%#x", c.addr)
		assert.Equal(t, c.cause, ex.Cause, "%#x", c.addr)
		assert.Equal(t, c.addr, ex.Addr)
		assert.Equal(t, c.write, ex.Write)
	}
	assert.Nil(t, m.Check(0x400, false))
	assert.Nil(t, m.Check(0x2000, true))
}

func TestBusBoundaryIsConfigurable(t *testing.T) {
	l := DefaultLayout()
	l.Size = 0xC000
	require.NoError(t, l.Validate())
	ex := NewMemory(l).Check(65532, false)
	require.NotNil(t, ex)
	assert.Equal(t, fault.CauseBusError, ex.Cause)
}

func TestLoadStore(t *testing.T) {
	m := NewMemory(DefaultLayout())
	require.Nil(t, m.StoreWord(0x2004, -7))
	v, ex := m.LoadWord(0x2004)
	require.Nil(t, ex)
	assert.Equal(t, int32(-7), v)

	_, ex = m.LoadWord(0)
	require.NotNil(t, ex)
	assert.Equal(t, fault.CausePageFault, ex.Cause)
}

func TestTransfers(t *testing.T) {
	m := NewMemory(DefaultLayout())
	assert.Equal(t, 6, m.WriteAt(0x2000, []byte("hello\x00")))
	s, ok := m.ReadString(0x2000, 256)
	require.True(t, ok)
	assert.Equal(t, "hello", s)

	// Copies run across adjacent regions and stop at unmapped memory.
	buf := make([]byte, 8)
	assert.Equal(t, 4, m.WriteAt(0xBFFC, []byte("abcdefgh")))
	assert.Equal(t, 4, m.ReadAt(0xBFFC, buf))
	assert.Equal(t, 8, m.WriteAt(0x7FFC, []byte("abcdefgh")))
	assert.Equal(t, 0, m.WriteAt(0x400, []byte("x")))
	assert.Equal(t, 0, m.ReadAt(0, buf))

	_, ok = m.ReadString(0, 16)
	assert.False(t, ok)
}

func TestSpan(t *testing.T) {
	m := NewMemory(DefaultLayout())
	assert.Equal(t, 10, m.Span(0x3000, 10, true))
	assert.Equal(t, 4, m.Span(0xBFFC, 10, true))
	assert.Equal(t, 8, m.Span(0x7FFC, 8, true))
	assert.Equal(t, 0, m.Span(0x400, 4, true))
	assert.Equal(t, 4, m.Span(0x400, 4, false))
	assert.Equal(t, 0, m.Span(0, 4, false))
	assert.Equal(t, 0xC000-0x400, m.Span(0x400, math.MaxInt32, false))
	assert.Equal(t, 0, m.Span(0x3000, 0, true))
}

func TestDiv(t *testing.T) {
	q, ex := Div(7, 2)
	require.Nil(t, ex)
	assert.Equal(t, int32(3), q)

	_, ex = Div(1, 0)
	require.NotNil(t, ex)
	assert.Equal(t, fault.CauseDivideByZero, ex.Cause)

	_, ex = Div(math.MinInt32, -1)
	require.NotNil(t, ex)
	assert.Equal(t, fault.CauseOverflow, ex.Cause)
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultLayout().Validate())

	l := DefaultLayout()
	l.Regions = append(l.Regions, Region{Name: "dup", Start: 0x1000, End: 0x3000})
	assert.Error(t, l.Validate())

	l = DefaultLayout()
	l.WordSize = 3
	assert.Error(t, l.Validate())

	l = DefaultLayout()
	l.Size = 0x8000
	assert.Error(t, l.Validate())

	l = DefaultLayout()
	l.Regions[1].End = 0x7FFE
	assert.Error(t, l.Validate())

	l = DefaultLayout()
	l.Regions = append(l.Regions, Region{Name: "odd", Start: 0xC001, End: 0xD000})
	assert.Error(t, l.Validate())
}
