package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageCursorRoundTrip(t *testing.T) {
	encoded := EncodePageCursor(1700000000, "conv-1")

	pc, err := DecodePageCursor(encoded)
	assert.NoError(t, err)
	assert.Equal(t, int64(1700000000), pc.Ts)
	assert.Equal(t, "conv-1", pc.ID)
}

func TestPageCursorEmptyIsFirstPage(t *testing.T) {
	pc, err := DecodePageCursor("")
	assert.NoError(t, err)
	assert.Nil(t, pc)
}

func TestPageCursorInvalid(t *testing.T) {
	_, err := DecodePageCursor("not-base64!!!")
	assert.Error(t, err)

	_, err = DecodePageCursor("aGVsbG8") // 沒有分隔的內容
	assert.Error(t, err)
}

func TestSeqCursorRoundTrip(t *testing.T) {
	seq, err := DecodeSeqCursor(EncodeSeqCursor(42))
	assert.NoError(t, err)
	assert.Equal(t, int64(42), seq)

	seq, err = DecodeSeqCursor("")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	_, err = DecodeSeqCursor("!!!")
	assert.Error(t, err)
}
