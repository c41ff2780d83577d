package fault

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		cause Cause
		kind  Kind
	}{
		{CausePageFault, IllegalMemoryAccess},
		{CauseTLBMiss, IllegalMemoryAccess},
		{CauseReadOnly, IllegalMemoryAccess},
		{CauseAddressError, IllegalMemoryAccess},
		{CauseOverflow, ArithmeticFault},
		{CauseDivideByZero, ArithmeticFault},
		{CauseBusError, BusError},
	}
	for _, c := range cases {
		f, err := Classify(Exception{Cause: c.cause, Addr: 20})
		require.NoError(t, err, c.cause.String())
		assert.Equal(t, c.kind, f.Kind, c.cause.String())
		assert.Equal(t, uint32(20), f.Addr)
	}
}

func TestClassifyRejects(t *testing.T) {
	_, err := Classify(Exception{Cause: CauseSyscall})
	assert.True(t, errors.Is(err, ErrNotFault))

	_, err = Classify(Exception{Cause: CauseIllegalInstruction})
	assert.True(t, errors.Is(err, ErrUnknownCause))

	_, err = Classify(Exception{Cause: Cause(99)})
	assert.True(t, errors.Is(err, ErrUnknownCause))
	assert.Contains(t, err.Error(), "cause 99")
}

func TestKindStatus(t *testing.T) {
	assert.Equal(t, 128+int(unix.SIGSEGV), IllegalMemoryAccess.Status())
	assert.Equal(t, 128+int(unix.SIGFPE), ArithmeticFault.Status())
	assert.Equal(t, 128+int(unix.SIGBUS), BusError.Status())
	assert.Panics(t, func() { Kind(0).Signal() })
}

func TestDiagnostic(t *testing.T) {
	f, err := Classify(Exception{Cause: CauseReadOnly, Addr: 0x14, Write: true})
	require.NoError(t, err)
	assert.Equal(t, "illegal memory access (read-only) on write of 0x00000014 (SIGSEGV)", f.Error())

	f, err = Classify(Exception{Cause: CauseDivideByZero})
	require.NoError(t, err)
	assert.Equal(t, "arithmetic fault (divide by zero, SIGFPE)", f.Error())
}
