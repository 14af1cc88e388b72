package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func collect(r *Reader) []string {
	var out []string
	for r.Next() {
		out = append(out, r.Fragment())
	}
	return out
}

// afterDone fails the test if anything reads past the sentinel.
type afterDone struct {
	t *testing.T
	r io.Reader
}

func (a *afterDone) Read(p []byte) (int, error) {
	n, err := a.r.Read(p)
	if errors.Is(err, io.EOF) {
		a.t.Fatal("read past the sentinel")
	}
	return n, err
}

func TestReader(t *testing.T) {
	body := frame("Hel") + ": ping\n" + frame("lo") + "data: [DONE]\n"

	t.Run("whole body", func(t *testing.T) {
		r := NewReader(strings.NewReader(body))
		require.Equal(t, []string{"Hel", "lo"}, collect(r))
		require.NoError(t, r.Err())
	})

	t.Run("one byte reads", func(t *testing.T) {
		r := NewReader(iotest.OneByteReader(strings.NewReader(body)))
		require.Equal(t, []string{"Hel", "lo"}, collect(r))
		require.NoError(t, r.Err())
	})

	t.Run("data and eof together", func(t *testing.T) {
		r := NewReader(iotest.DataErrReader(strings.NewReader(frame("a") + frame("b"))))
		require.Equal(t, []string{"a", "b"}, collect(r))
		require.NoError(t, r.Err())
	})

	t.Run("stops at sentinel", func(t *testing.T) {
		src := &afterDone{t: t, r: strings.NewReader(frame("a") + "data: [DONE]\n")}
		r := NewReader(iotest.OneByteReader(src))
		require.Equal(t, []string{"a"}, collect(r))
		require.False(t, r.Next())
	})

	t.Run("end without sentinel", func(t *testing.T) {
		r := NewReader(strings.NewReader(frame("a") + `data: {"choices":[{"delta":{"content":"cut`))
		require.Equal(t, []string{"a"}, collect(r))
		require.NoError(t, r.Err())
	})

	t.Run("transport failure", func(t *testing.T) {
		boom := errors.New("connection reset")
		src := io.MultiReader(
			strings.NewReader(frame("partial")),
			iotest.ErrReader(boom),
		)
		r := NewReader(src)
		require.Equal(t, []string{"partial"}, collect(r))
		require.ErrorIs(t, r.Err(), boom)
		require.False(t, r.Next())
	})

	t.Run("upstream error event", func(t *testing.T) {
		r := NewReader(strings.NewReader(frame("a") + `data: {"error":{"message":"overloaded"}}` + "\n"))
		require.Equal(t, []string{"a"}, collect(r))
		require.EqualError(t, r.Err(), "upstream error: overloaded")
	})

	t.Run("dropped", func(t *testing.T) {
		r := NewReader(strings.NewReader("data: nope\n" + frame("a")))
		require.Equal(t, []string{"a"}, collect(r))
		require.Equal(t, 1, r.Dropped())
	})
}
