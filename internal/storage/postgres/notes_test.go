package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotesCodec(t *testing.T) {
	notes := map[string]string{"address": `12 "Main" St`, "gift": "yes"}

	raw := encodeNotes(notes)
	assert.JSONEq(t, `{"address":"12 \"Main\" St","gift":"yes"}`, string(raw))

	got, err := decodeNotes(raw)
	require.NoError(t, err)
	assert.Equal(t, notes, got)

	empty, err := decodeNotes(encodeNotes(nil))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = decodeNotes([]byte(`{"n":1}`))
	assert.Error(t, err)
}
