package extract

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/malt3/peicon/internal/testpe"
	"github.com/malt3/peicon/pkg/iconerr"
	"github.com/malt3/peicon/pkg/raster"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iconExe(images ...[]byte) []byte {
	var entries []testpe.GroupEntry
	resources := []testpe.Resource{}
	for i, img := range images {
		id := uint16(i + 1)
		resources = append(resources, testpe.Resource{Type: testpe.TypeIcon, ID: uint32(id), Lang: 0x409, Data: img})
		entries = append(entries, testpe.GroupEntry{ByteLength: uint32(len(img)), ID: id})
	}
	return groupExe(entries, resources)
}

func groupExe(entries []testpe.GroupEntry, resources []testpe.Resource) []byte {
	resources = append(resources, testpe.Resource{
		Type: testpe.TypeGroupIcon, ID: 1, Lang: 0x409, Data: testpe.GroupIcon(entries),
	})
	return testpe.Build(resources)
}

func pngIcon(t *testing.T, size int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestHasIconFalse(t *testing.T) {
	testCases := map[string][]byte{
		"zero-byte file":           {},
		"dos stub only":            append([]byte("MZ"), make([]byte, 62)...),
		"empty resource directory": testpe.Build(nil),
		"no group":                 testpe.Build([]testpe.Resource{{Type: testpe.TypeIcon, ID: 1, Data: []byte{1}}}),
		"group without entries":    groupExe(nil, nil),
	}
	for name, data := range testCases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, HasIcon(writeFile(t, "app.exe", data)))
		})
	}

	assert.False(t, HasIcon(filepath.Join(t.TempDir(), "missing.exe")))
	assert.False(t, HasIcon(t.TempDir()))
}

func TestHasIcon(t *testing.T) {
	exe := iconExe(testpe.DIB32(16, 16, 1, 2, 3, 255))
	assert.True(t, HasIcon(writeFile(t, "app.exe", exe)))
}

func TestExtractIconToImage(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	small := testpe.DIB32(16, 16, 1, 1, 1, 255)
	large := testpe.DIB32(32, 32, 200, 100, 50, 255)
	exe := groupExe([]testpe.GroupEntry{
		{Width: 16, Height: 16, BitCount: 32, ByteLength: uint32(len(small)), ID: 1},
		{Width: 32, Height: 32, BitCount: 32, ByteLength: uint32(len(large)), ID: 2},
	}, []testpe.Resource{
		{Type: testpe.TypeIcon, ID: 1, Lang: 0x409, Data: small},
		{Type: testpe.TypeIcon, ID: 2, Lang: 0x409, Data: large},
	})

	img, err := ExtractIconToImage(writeFile(t, "app.exe", exe))
	require.NoError(err)
	assert.Equal(32, img.Width)
	assert.Equal(32, img.Height)
	for i := 0; i < len(img.Pix); i += 4 {
		require.Equal([]byte{200, 100, 50, 255}, img.Pix[i:i+4])
	}
}

func TestExtractPNGIcon(t *testing.T) {
	data := pngIcon(t, 64, color.NRGBA{R: 10, G: 20, B: 30, A: 128})
	exe := groupExe([]testpe.GroupEntry{
		{BitCount: 32, ByteLength: uint32(len(data)), ID: 7},
	}, []testpe.Resource{{Type: testpe.TypeIcon, ID: 7, Lang: 0x409, Data: data}})

	img, err := New().ExtractFrom(bytes.NewReader(exe), int64(len(exe)))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Width)
	assert.Equal(t, [4]byte{10, 20, 30, 128}, img.At(63, 0))
}

func TestExtractErrors(t *testing.T) {
	testCases := map[string]struct {
		data    []byte
		wantErr error
	}{
		"empty": {
			data:    nil,
			wantErr: iconerr.ErrFormat,
		},
		"no resources": {
			data:    testpe.Build(nil),
			wantErr: iconerr.ErrResourceNotFound,
		},
		"missing icon image": {
			data:    groupExe([]testpe.GroupEntry{{Width: 16, Height: 16, BitCount: 32, ID: 9}}, nil),
			wantErr: iconerr.ErrResourceNotFound,
		},
		"corrupt png": {
			data: groupExe([]testpe.GroupEntry{{ID: 1}}, []testpe.Resource{
				{Type: testpe.TypeIcon, ID: 1, Data: []byte("\x89PNG\r\n\x1a\nbroken")},
			}),
			wantErr: iconerr.ErrDecode,
		},
		"compressed bitmap": {
			data: groupExe([]testpe.GroupEntry{{ID: 1}}, []testpe.Resource{
				{Type: testpe.TypeIcon, ID: 1, Data: func() []byte {
					d := testpe.DIB32(4, 4, 0, 0, 0, 255)
					d[16] = 1 // BI_RLE8
					return d
				}()},
			}),
			wantErr: iconerr.ErrDecode,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := New().ExtractFrom(bytes.NewReader(tc.data), int64(len(tc.data)))
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	_, err := ExtractIconToImage(filepath.Join(t.TempDir(), "missing.exe"))
	assert.ErrorIs(t, err, iconerr.ErrIO)
}

func TestExtractIconToFile(t *testing.T) {
	exe := writeFile(t, "app.exe", iconExe(testpe.DIB32(16, 16, 5, 6, 7, 255)))

	for _, ext := range []string{".png", ".ico", ".bmp"} {
		t.Run(ext, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "icon"+ext)
			require.True(t, ExtractIconToFile(exe, out))

			f, err := os.Open(out)
			require.NoError(t, err)
			defer f.Close()
			img, err := raster.Decode(f)
			require.NoError(t, err)
			assert.Equal(t, 16, img.Width)
			assert.Equal(t, [4]byte{5, 6, 7, 255}, img.At(8, 8))
		})
	}
}

func TestExtractIconToFileFailures(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, ExtractIconToFile(writeFile(t, "app.exe", testpe.Build(nil)), filepath.Join(dir, "out.png")))
	assert.NoFileExists(t, filepath.Join(dir, "out.png"))

	exe := writeFile(t, "app.exe", iconExe(testpe.DIB32(16, 16, 5, 6, 7, 255)))
	assert.False(t, ExtractIconToFile(exe, filepath.Join(dir, "missing", "out.png")))
}

func TestExtractAndUpscale(t *testing.T) {
	assert := assert.New(t)

	exe := writeFile(t, "app.exe", iconExe(testpe.DIB32(16, 16, 5, 6, 7, 255)))
	out := filepath.Join(t.TempDir(), "icon.png")
	x := New()
	assert.True(x.ExtractIconToFile(exe, out))
	assert.True(x.NeedsUpscale(out))

	up := x.Upscale(out)
	assert.Equal(filepath.Join(filepath.Dir(out), "icon_upscaled.png"), up)
	assert.FileExists(up)

	assert.Equal("", Upscale(filepath.Join(t.TempDir(), "missing.png")))
	assert.False(NeedsUpscale(filepath.Join(t.TempDir(), "missing.png")))
}

func TestLogging(t *testing.T) {
	logger, hook := test.NewNullLogger()
	x := New(WithLogger(logger))

	_, err := x.ExtractIconToImage(writeFile(t, "app.exe", testpe.Build(nil)))
	require.Error(t, err)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Message, "resource not found")

	hook.Reset()
	assert.True(t, x.HasIcon(writeFile(t, "app.exe", iconExe(testpe.DIB32(16, 16, 0, 0, 0, 255)))))
	assert.Empty(t, hook.AllEntries())
}

func TestInspect(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	pngData := pngIcon(t, 48, color.NRGBA{A: 255})
	dib := testpe.DIB32(32, 32, 0, 0, 0, 255)
	exe := groupExe([]testpe.GroupEntry{
		{Width: 32, Height: 32, BitCount: 32, ByteLength: uint32(len(dib)), ID: 1},
		{Width: 48, Height: 48, BitCount: 32, ByteLength: uint32(len(pngData)), ID: 2},
		{Width: 48, Height: 48, BitCount: 32, ByteLength: uint32(len(pngData)), ID: 2},
	}, []testpe.Resource{
		{Type: testpe.TypeIcon, ID: 1, Lang: 0x409, Data: dib},
		{Type: testpe.TypeIcon, ID: 2, Lang: 0x409, Data: pngData},
	})

	rep, err := New().Inspect(bytes.NewReader(exe), int64(len(exe)))
	require.NoError(err)
	assert.False(rep.Is64)
	require.Len(rep.Sections, 2)
	assert.Equal(".rsrc", rep.Sections[1].Name)
	require.NotNil(rep.Resource)
	assert.Equal(int64(testpe.RsrcFileOffset), rep.Resource.FileOffset)
	assert.Len(rep.Resources, 3)
	require.Len(rep.Group, 3)
	assert.Equal(32*32*4, rep.Group[0].Score)
	assert.Equal(48*48*4, rep.Group[1].Score)
	assert.Equal(1, rep.Selected)
	assert.Equal("png", rep.Payload)
}

func TestInspectPartial(t *testing.T) {
	exe := testpe.Build(nil)
	rep, err := New().Inspect(bytes.NewReader(exe), int64(len(exe)))
	assert.ErrorIs(t, err, iconerr.ErrResourceNotFound)
	require.NotNil(t, rep)
	assert.Len(t, rep.Sections, 2)
	assert.NotNil(t, rep.Resource)
	assert.Empty(t, rep.Group)
	assert.Equal(t, -1, rep.Selected)
}

func TestOversizedIconIsRejected(t *testing.T) {
	assert := assert.New(t)

	exe := writeFile(t, "app.exe", iconExe(testpe.PNGHeader(1<<29, 1<<29)))
	_, err := New().ExtractIconToImage(exe)
	assert.ErrorIs(err, iconerr.ErrDecode)

	out := filepath.Join(t.TempDir(), "icon.png")
	assert.NotPanics(func() { assert.False(ExtractIconToFile(exe, out)) })
	assert.NoFileExists(out)

	oversized := writeFile(t, "big.png", testpe.PNGHeader(1<<29, 1<<29))
	assert.NotPanics(func() { assert.Equal("", Upscale(oversized)) })
}
