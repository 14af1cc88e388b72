package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func frame(content string) string {
	return `data: {"choices":[{"delta":{"content":"` + content + `"}}]}` + "\n"
}

func feedAll(d *Decoder, chunks ...string) []string {
	var out []string
	for _, c := range chunks {
		out = append(out, d.Feed([]byte(c))...)
	}
	return append(out, d.Finish()...)
}

func TestDecoder(t *testing.T) {
	t.Run("split mid json", func(t *testing.T) {
		d := NewDecoder()
		out := feedAll(
			d,
			`data: {"choices":[{"delta":{"content":"Hel`,
			`lo"}}]}`+"\ndata: [DONE]\n",
		)
		require.Equal(t, []string{"Hello"}, out)
		require.True(t, d.Done())
	})

	t.Run("blank and malformed lines", func(t *testing.T) {
		d := NewDecoder()
		out := feedAll(
			d,
			frame("first")+"\n"+"data: {not json\n"+frame("second"),
		)
		require.Equal(t, []string{"first", "second"}, out)
		require.Equal(t, 1, d.Dropped())
	})

	t.Run("comments and other fields", func(t *testing.T) {
		d := NewDecoder()
		out := feedAll(
			d,
			": OPENROUTER PROCESSING\n",
			"event: message\nid: 1\nretry: 10\n",
			frame("ok"),
		)
		require.Equal(t, []string{"ok"}, out)
		require.Zero(t, d.Dropped())
	})

	t.Run("nothing after sentinel", func(t *testing.T) {
		d := NewDecoder()
		out := d.Feed([]byte(frame("a") + "data: [DONE]\n" + frame("b")))
		require.Equal(t, []string{"a"}, out)
		require.True(t, d.Done())
		require.Empty(t, d.Feed([]byte(frame("c"))))
	})

	t.Run("finish discards residue", func(t *testing.T) {
		d := NewDecoder()
		require.Equal(t, []string{"a"}, d.Feed([]byte(frame("a")+`data: {"choices":[{"delta":{"content":"tail"}}]}`)))
		require.Empty(t, d.Finish())
		require.True(t, d.Done())
		require.Zero(t, d.Dropped())
		require.Empty(t, d.Feed([]byte("\n")))
	})

	t.Run("absent null and empty content", func(t *testing.T) {
		d := NewDecoder()
		out := feedAll(
			d,
			`data: {"choices":[{"delta":{"role":"assistant"}}]}`+"\n",
			`data: {"choices":[{"delta":{"content":null}}]}`+"\n",
			`data: {"choices":[{"delta":{"content":""}}]}`+"\n",
			`data: {"choices":[]}`+"\n",
			`data: {}`+"\n",
			frame("x"),
		)
		require.Equal(t, []string{"x"}, out)
		require.Zero(t, d.Dropped())
	})

	t.Run("only first choice", func(t *testing.T) {
		d := NewDecoder()
		out := feedAll(d, `data: {"choices":[{"delta":{"content":"a"}},{"delta":{"content":"b"}}]}`+"\n")
		require.Equal(t, []string{"a"}, out)
	})

	t.Run("non object payloads are dropped", func(t *testing.T) {
		d := NewDecoder()
		out := feedAll(d, "data: 42\n", "data: \"str\"\n", "data:\n", frame("ok"))
		require.Equal(t, []string{"ok"}, out)
		require.Equal(t, 3, d.Dropped())
	})

	t.Run("crlf and no space after prefix", func(t *testing.T) {
		d := NewDecoder()
		out := feedAll(d, `data:{"choices":[{"delta":{"content":"a"}}]}`+"\r\n", "data: [DONE]\r\n")
		require.Equal(t, []string{"a"}, out)
		require.True(t, d.Done())
	})

	t.Run("content keeps whitespace and escapes", func(t *testing.T) {
		d := NewDecoder()
		out := feedAll(d, frame(`  line\nnext \"q\" `))
		require.Equal(t, []string{"  line\nnext \"q\" "}, out)
	})

	t.Run("error event", func(t *testing.T) {
		d := NewDecoder()
		out := feedAll(
			d,
			frame("partial"),
			`data: {"error":{"code":502,"message":"provider disconnected"},"choices":[{"delta":{"content":""},"finish_reason":"error"}]}`+"\n",
		)
		require.Equal(t, []string{"partial"}, out)
		var eerr *EventError
		require.ErrorAs(t, d.Err(), &eerr)
		require.Equal(t, "provider disconnected", eerr.Message)
		require.EqualError(t, d.Err(), "upstream error 502: provider disconnected")
	})

	t.Run("no error", func(t *testing.T) {
		d := NewDecoder()
		feedAll(d, frame("a"))
		require.NoError(t, d.Err())
	})
}

func TestDecoderChunkBoundaries(t *testing.T) {
	input := strings.Join([]string{
		": keep-alive",
		"",
		`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
		`data: {"choices":[{"delta":{"content":"Grüße, "}}]}`,
		"data: {broken",
		"",
		`data: {"choices":[{"delta":{"content":"日本語 "}}]}`,
		`data: {"choices":[{"delta":{"content":"🙂 done"}}]}`,
		"data: [DONE]",
		frame("ignored"),
	}, "\n")
	expected := []string{"Grüße, ", "日本語 ", "🙂 done"}

	require.Equal(t, expected, feedAll(NewDecoder(), input))

	t.Run("byte at a time", func(t *testing.T) {
		d := NewDecoder()
		var out []string
		for i := range len(input) {
			out = append(out, d.Feed([]byte{input[i]})...)
		}
		out = append(out, d.Finish()...)
		require.Equal(t, expected, out)
	})

	t.Run("every split point", func(t *testing.T) {
		for i := 0; i <= len(input); i++ {
			out := feedAll(NewDecoder(), input[:i], input[i:])
			require.Equal(t, expected, out, "split at %d", i)
		}
	})

	t.Run("three way splits", func(t *testing.T) {
		for i := 0; i <= len(input); i += 7 {
			for j := i; j <= len(input); j += 11 {
				out := feedAll(NewDecoder(), input[:i], input[i:j], input[j:])
				require.Equal(t, expected, out, "split at %d and %d", i, j)
			}
		}
	})
}

func TestDecoderReconstructsMessage(t *testing.T) {
	parts := []string{"The ", "quick ", "brown ", "fox"}
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(frame(p))
	}
	sb.WriteString("data: [DONE]\n")

	out := feedAll(NewDecoder(), sb.String())
	require.Equal(t, "The quick brown fox", strings.Join(out, ""))
}

func TestDecodersAreIndependent(t *testing.T) {
	a, b := NewDecoder(), NewDecoder()
	require.Empty(t, a.Feed([]byte(`data: {"choices":[{"delta":{"content":"from a`)))
	require.Equal(t, []string{"from b"}, b.Feed([]byte(frame("from b"))))
	require.Equal(t, []string{"from a"}, a.Feed([]byte(`"}}]}`+"\n")))
}
