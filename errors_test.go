package pmemobj

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewErrorFormatsOpAndCode(t *testing.T) {
	err := NewError("tx.Alloc", ErrCodeOutOfMemory, "arena exhausted")
	require.Equal(t, "pmemobj: arena exhausted (op=tx.Alloc)", err.Error())
	require.True(t, IsCode(err, ErrCodeOutOfMemory))
	require.False(t, IsCode(err, ErrCodeInvalidArgument))
}

func TestWrapErrorPreservesCodeFromInnerPmemobjError(t *testing.T) {
	inner := NewError("Heap.Reserve", ErrCodeOutOfMemory, "no free block")
	wrapped := WrapError("tx.Alloc", inner)
	require.True(t, IsCode(wrapped, ErrCodeOutOfMemory))
	require.Equal(t, "tx.Alloc", wrapped.Op)
}

func TestWrapErrorMapsErrnoToCode(t *testing.T) {
	wrapped := WrapError("Open", syscall.ENOSPC)
	require.True(t, IsCode(wrapped, ErrCodeOutOfMemory))
	require.True(t, IsErrno(wrapped, syscall.ENOSPC))
}

func TestWrapErrorNilReturnsNil(t *testing.T) {
	require.Nil(t, WrapError("op", nil))
}

func TestErrorIsMatchesByCodeOnly(t *testing.T) {
	a := NewError("opA", ErrCodeBusy, "lane busy")
	b := NewError("opB", ErrCodeBusy, "different message")
	require.True(t, errors.Is(a, b))

	c := NewError("opC", ErrCodeTimedOut, "lane busy")
	require.False(t, errors.Is(a, c))
}

func TestFatalErrorMessage(t *testing.T) {
	err := FatalError{Op: "tx.Commit", Msg: "redo apply failed after publish"}
	require.Contains(t, err.Error(), "tx.Commit")
	require.Contains(t, err.Error(), "redo apply failed after publish")
}
