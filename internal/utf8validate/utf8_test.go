package utf8validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Userfrom1995/pgagroal/internal/logging"
)

func TestValidate_ASCIIFastPath(t *testing.T) {
	out, ok := Validate([]byte("pgagroal-test-password"), "password", logging.NewDiscard())
	require.True(t, ok)
	assert.Equal(t, "pgagroal-test-password", out)
}

func TestValidate_ValidMultiByte(t *testing.T) {
	// mixes 2-, 3- and 4-byte sequences: "héllo", a CJK character, an emoji
	in := "héllo-中文-\U0001F600"
	out, ok := Validate([]byte(in), "password", logging.NewDiscard())
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestValidate_RejectsOverlongEncoding(t *testing.T) {
	// a 2-byte overlong encoding of NUL (0xC0 0x80): illegal per strict UTF-8
	_, ok := Validate([]byte{0xC0, 0x80}, "password", logging.NewDiscard())
	assert.False(t, ok)
}

func TestValidate_RejectsSurrogateHalf(t *testing.T) {
	// 0xED 0xA0 0x80 encodes U+D800, a UTF-16 surrogate half with no valid
	// UTF-8 representation
	_, ok := Validate([]byte{0xED, 0xA0, 0x80}, "password", logging.NewDiscard())
	assert.False(t, ok)
}

func TestValidate_RejectsTruncatedSequence(t *testing.T) {
	// 0xE4 0xB8 begins a 3-byte sequence but is missing its final byte
	_, ok := Validate([]byte{0xE4, 0xB8}, "password", logging.NewDiscard())
	assert.False(t, ok)
}

func TestValidate_RejectsStrayContinuationByte(t *testing.T) {
	_, ok := Validate([]byte{0x80}, "password", logging.NewDiscard())
	assert.False(t, ok)
}

func TestValidate_NilBufferRejected(t *testing.T) {
	_, ok := Validate(nil, "password", logging.NewDiscard())
	assert.False(t, ok)
}

func TestValidate_EmptyBufferIsValidASCII(t *testing.T) {
	out, ok := Validate([]byte{}, "password", logging.NewDiscard())
	require.True(t, ok)
	assert.Equal(t, "", out)
}

func TestValidate_NilLoggerIsSafe(t *testing.T) {
	out, ok := Validate([]byte("plain"), "password", nil)
	require.True(t, ok)
	assert.Equal(t, "plain", out)
}
