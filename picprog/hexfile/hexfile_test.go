package hexfile

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-picprog/picprog/memory"
)

const memorySize = 0x8000

func TestDecode(t *testing.T) {
	t.Run("single word", func(t *testing.T) {
		img := memory.NewImage(memorySize)
		n, err := Decode(strings.NewReader(":020000040000FA\n:02000A003412AE\n:00000001FF\n"), img)
		require.NoError(t, err)

		assert.Equal(t, 1, n)
		assert.Equal(t, 1, img.FilledCount())
		word, ok := img.Get(5)
		assert.True(t, ok)
		assert.Equal(t, uint16(0x1234), word)
	})

	t.Run("configuration word via linear address", func(t *testing.T) {
		img := memory.NewImage(memorySize)
		// byte address 0x400E is word 0x2007
		_, err := Decode(strings.NewReader(":020000040000FA\n:02400E00A43FCD\n:00000001FF\n"), img)
		require.NoError(t, err)

		word, ok := img.Get(0x2007)
		assert.True(t, ok)
		assert.Equal(t, uint16(0x3FA4), word)
	})

	t.Run("half word keeps the other byte erased", func(t *testing.T) {
		img := memory.NewImage(memorySize)
		_, err := Decode(strings.NewReader(":0100010012EC\n:00000001FF\n"), img)
		require.NoError(t, err)

		word, ok := img.Get(0)
		assert.True(t, ok)
		assert.Equal(t, uint16(0x12FF), word)
	})

	t.Run("start address records are ignored", func(t *testing.T) {
		img := memory.NewImage(memorySize)
		_, err := Decode(strings.NewReader(":0400000500000000F7\n:00000001FF\n"), img)
		require.NoError(t, err)
		assert.Equal(t, 0, img.FilledCount())
	})

	t.Run("blank lines are skipped", func(t *testing.T) {
		img := memory.NewImage(memorySize)
		_, err := Decode(strings.NewReader("\n:02000A003412AE\r\n\n:00000001FF\n"), img)
		require.NoError(t, err)
		assert.Equal(t, 1, img.FilledCount())
	})
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"missing start code", "02000A003412AE\n", 1},
		{"bad checksum", ":02000A003412AF\n", 1},
		{"bad digits", ":02000A00341ZAE\n", 1},
		{"length mismatch", ":03000A003412B6\n", 1},
		{"too short", ":0000\n", 1},
		{"unknown record", ":00000006FA\n", 1},
		{"outside of memory", ":020000040001F9\n:020000003412B8\n", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input), memory.NewImage(memorySize))
			require.Error(t, err)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.line, perr.Line)
		})
	}

	t.Run("missing end of file", func(t *testing.T) {
		_, err := Decode(strings.NewReader(":02000A003412AE\n"), memory.NewImage(memorySize))
		assert.ErrorContains(t, err, "end of file")
	})
}

func TestEncode(t *testing.T) {
	t.Run("empty image", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, memory.NewImage(memorySize)))
		assert.Equal(t, ":020000040000FA\n:00000001FF\n", buf.String())
	})

	t.Run("single word", func(t *testing.T) {
		img := memory.NewImage(memorySize)
		img.Set(5, 0x1234)

		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, img))
		assert.Equal(t, ":020000040000FA\n:02000A003412AE\n:00000001FF\n", buf.String())
	})

	t.Run("records split on 16 byte boundaries", func(t *testing.T) {
		img := memory.NewImage(memorySize)
		for addr := 4; addr < 12; addr++ {
			img.Set(addr, uint16(addr))
		}

		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, img))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 4)
		assert.True(t, strings.HasPrefix(lines[1], ":08000800"), lines[1])
		assert.True(t, strings.HasPrefix(lines[2], ":08001000"), lines[2])
	})
}

func TestRoundTrip(t *testing.T) {
	img := memory.NewImage(memorySize)
	for addr := 0; addr < 0x40; addr += 3 {
		img.Set(addr, uint16(addr*0x91)&0x3FFF)
	}
	img.Set(0x2007, 0x3FA4)

	path := filepath.Join(t.TempDir(), "out.hex")
	require.NoError(t, Store(path, img))

	loaded := memory.NewImage(memorySize)
	n, err := Load(path, loaded)
	require.NoError(t, err)
	assert.Equal(t, img.FilledCount(), n)

	img.Each(func(addr int, word uint16) {
		got, ok := loaded.Get(addr)
		assert.True(t, ok, "addr 0x%04X", addr)
		assert.Equal(t, word, got, "addr 0x%04X", addr)
	})
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.hex"), memory.NewImage(memorySize))
	assert.ErrorContains(t, err, "cannot open")
}
