package icon

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/malt3/peicon/internal/testpe"
	"github.com/malt3/peicon/pkg/iconerr"
	"github.com/malt3/peicon/pkg/rsrc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGroup(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	data := testpe.GroupIcon([]testpe.GroupEntry{
		{Width: 16, Height: 16, BitCount: 32, ByteLength: 1128, ID: 1},
		{Width: 0, Height: 0, BitCount: 32, ByteLength: 40000, ID: 2},
	})
	g, err := ParseGroup(data)
	require.NoError(err)
	require.Len(g.Entries, 2)

	assert.Equal(GroupEntry{Width: 16, Height: 16, Planes: 1, BitCount: 32, ByteLength: 1128, ID: 1}, g.Entries[0])
	assert.Equal(256, g.Entries[1].Width)
	assert.Equal(256, g.Entries[1].Height)
	assert.Equal(uint16(2), g.Entries[1].ID)
}

func TestParseGroupRejects(t *testing.T) {
	valid := testpe.GroupIcon([]testpe.GroupEntry{{Width: 16, Height: 16, BitCount: 32, ID: 1}})

	testCases := map[string][]byte{
		"empty":      nil,
		"short":      valid[:4],
		"no entries": testpe.GroupIcon(nil),
		"cursor group": func() []byte {
			d := bytes.Clone(valid)
			binary.LittleEndian.PutUint16(d[2:], 2)
			return d
		}(),
		"count beyond data": func() []byte {
			d := bytes.Clone(valid)
			binary.LittleEndian.PutUint16(d[4:], 3)
			return d
		}(),
	}
	for name, data := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGroup(data)
			assert.ErrorIs(t, err, iconerr.ErrFormat)
		})
	}
}

func entry(w, h int, bpp uint16) GroupEntry {
	return GroupEntry{Width: w, Height: h, BitCount: bpp}
}

func TestSelect(t *testing.T) {
	assert := assert.New(t)

	// 16*16*4 = 1024, 32*32*4 = 4096, 48*48*2 = 4608
	best, ok := Select(&Group{Entries: []GroupEntry{entry(16, 16, 32), entry(32, 32, 32), entry(48, 48, 8)}})
	assert.True(ok)
	assert.Equal(entry(48, 48, 8), best)

	best, ok = Select(&Group{Entries: []GroupEntry{entry(16, 16, 32), entry(32, 32, 32), entry(32, 32, 24)}})
	assert.True(ok)
	assert.Equal(entry(32, 32, 32), best)

	_, ok = Select(&Group{})
	assert.False(ok)
	_, ok = Select(nil)
	assert.False(ok)
}

func TestSelectTieKeepsFirst(t *testing.T) {
	first := GroupEntry{Width: 32, Height: 32, BitCount: 8, ID: 1}  // 2048
	second := GroupEntry{Width: 64, Height: 32, BitCount: 4, ID: 2} // 2048
	best, ok := Select(&Group{Entries: []GroupEntry{first, second}})
	require.True(t, ok)
	assert.Equal(t, uint16(1), best.ID)
}

func TestSelectMaximizesScore(t *testing.T) {
	depths := []uint16{1, 4, 8, 16, 24, 32}
	sizes := []int{16, 24, 32, 48, 64, 256}
	rng := rand.New(rand.NewSource(1))

	for round := 0; round < 200; round++ {
		g := &Group{}
		for i := 0; i < 1+rng.Intn(8); i++ {
			s := sizes[rng.Intn(len(sizes))]
			g.Entries = append(g.Entries, GroupEntry{Width: s, Height: s, BitCount: depths[rng.Intn(len(depths))], ID: uint16(i)})
		}
		best, ok := Select(g)
		require.True(t, ok)

		max, firstMax := 0, -1
		for i, e := range g.Entries {
			if Score(e) > max {
				max, firstMax = Score(e), i
			}
		}
		assert.Equal(t, max, Score(best))
		assert.Equal(t, uint16(firstMax), best.ID)
	}
}

func TestBitWeight(t *testing.T) {
	assert.Equal(t, 4, BitWeight(32))
	assert.Equal(t, 3, BitWeight(24))
	assert.Equal(t, 2, BitWeight(8))
	assert.Equal(t, 1, BitWeight(4))
	assert.Equal(t, 1, BitWeight(16))
}

func pngBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	t.Run("png", func(t *testing.T) {
		data := pngBytes(t, 256, 256, color.NRGBA{R: 1, G: 2, B: 3, A: 200})
		assert.True(t, IsPNG(data))
		img, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, 256, img.Width)
		assert.Equal(t, [4]byte{1, 2, 3, 200}, img.At(255, 255))
	})

	t.Run("bitmap", func(t *testing.T) {
		data := testpe.DIB32(32, 32, 9, 8, 7, 255)
		assert.False(t, IsPNG(data))
		img, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, 32, img.Height)
		assert.Equal(t, [4]byte{9, 8, 7, 255}, img.At(0, 31))
	})

	t.Run("corrupt png", func(t *testing.T) {
		data := pngBytes(t, 4, 4, color.NRGBA{A: 255})
		_, err := Decode(data[:len(data)/2])
		assert.ErrorIs(t, err, iconerr.ErrDecode)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := Decode([]byte{1, 2, 3})
		assert.ErrorIs(t, err, iconerr.ErrDecode)
	})
}

func TestLoadGroupAndImage(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	small := testpe.DIB32(16, 16, 1, 1, 1, 255)
	large := testpe.DIB32(32, 32, 2, 2, 2, 255)
	data := testpe.Build([]testpe.Resource{
		{Type: TypeIcon, ID: 1, Lang: 0x409, Data: small},
		{Type: TypeIcon, ID: 2, Lang: 0x409, Data: large},
		{Type: TypeGroupIcon, ID: 101, Lang: 0x409, Data: testpe.GroupIcon([]testpe.GroupEntry{
			{Width: 16, Height: 16, BitCount: 32, ByteLength: uint32(len(small)), ID: 1},
			{Width: 32, Height: 32, BitCount: 32, ByteLength: uint32(len(large)), ID: 2},
		})},
		// only the first group is considered
		{Type: TypeGroupIcon, ID: 102, Lang: 0x409, Data: []byte("not a group")},
	})
	w, err := rsrc.Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(err)

	g, err := LoadGroup(w)
	require.NoError(err)
	require.Len(g.Entries, 2)

	best, ok := Select(g)
	require.True(ok)
	assert.Equal(uint16(2), best.ID)

	raw, err := LoadImageData(w, best)
	require.NoError(err)
	assert.Equal(large, raw)

	_, err = LoadImageData(w, GroupEntry{ID: 9})
	assert.ErrorIs(err, iconerr.ErrResourceNotFound)
}

func TestLoadGroupMissing(t *testing.T) {
	data := testpe.Build([]testpe.Resource{{Type: TypeIcon, ID: 1, Data: []byte{0}}})
	w, err := rsrc.Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	_, err = LoadGroup(w)
	assert.ErrorIs(t, err, iconerr.ErrResourceNotFound)
}

func TestDecodeRejectsOversizedPNG(t *testing.T) {
	testCases := map[string][]byte{
		"huge":     testpe.PNGHeader(1<<29, 1<<29),
		"too wide": testpe.PNGHeader(4097, 1),
		"too high": testpe.PNGHeader(16, 4097),
	}
	for name, data := range testCases {
		t.Run(name, func(t *testing.T) {
			require.True(t, IsPNG(data))
			var err error
			assert.NotPanics(t, func() { _, err = Decode(data) })
			assert.ErrorIs(t, err, iconerr.ErrDecode)
		})
	}
}
