package pipe

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPipeCloexec(t *testing.T) {
	p, err := New("test")
	require.NoError(t, err)
	defer p.Close()

	for _, f := range []interface{ Fd() uintptr }{p.Reader, p.Writer} {
		flags, err := unix.FcntlInt(f.Fd(), unix.F_GETFD, 0)
		require.NoError(t, err)
		require.NotZero(t, flags&unix.FD_CLOEXEC)
	}
}

func TestPipeTransfer(t *testing.T) {
	p, err := New("test")
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Writer.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, p.CloseWriter())

	b, err := io.ReadAll(p.Reader)
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))
}

func TestPipeCloseIdempotent(t *testing.T) {
	p, err := New("test")
	require.NoError(t, err)

	require.NoError(t, p.CloseWriter())
	require.NoError(t, p.CloseWriter())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	require.Nil(t, p.Reader)
	require.Nil(t, p.Writer)
}
