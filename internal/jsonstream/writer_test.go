package jsonstream

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteObjectWithTwoFields(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)
	w.OpenObject()
	w.WriteField("a")
	w.WriteString("1")
	w.WriteField("b")
	w.WriteJSON(2)
	w.CloseObject()
	require.NoError(t, w.Flush())
	require.Equal(t, `{"a":"1","b":2}`, buf.String())
}

func TestWriteArrayOfObjects(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)
	w.OpenArray()
	w.OpenObject()
	w.WriteField("x")
	w.WriteJSON(1)
	w.CloseObject()
	w.OpenObject()
	w.WriteField("x")
	w.WriteJSON(2)
	w.CloseObject()
	w.CloseArray()
	require.NoError(t, w.Flush())
	require.Equal(t, `[{"x":1},{"x":2}]`, buf.String())
}

func TestWriteNestedArrayField(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)
	w.OpenObject()
	w.WriteField("a")
	w.WriteString("1")
	w.WriteField("b")
	w.OpenArray()
	w.WriteJSON(2)
	w.WriteJSON(3)
	w.CloseArray()
	w.CloseObject()
	require.NoError(t, w.Flush())
	require.Equal(t, `{"a":"1","b":[2,3]}`, buf.String())
}

func TestEmptyObjectAndArray(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)
	w.OpenObject()
	w.CloseObject()
	require.NoError(t, w.Flush())
	require.Equal(t, `{}`, buf.String())

	buf.Reset()
	w = New(&buf)
	w.OpenArray()
	w.CloseArray()
	require.NoError(t, w.Flush())
	require.Equal(t, `[]`, buf.String())
}
