package canvas

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func TestDecodeImageData(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(3, 2, color.White)); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	std := base64.StdEncoding.EncodeToString(raw)

	inputs := map[string]string{
		"data url":   "data:image/png;base64," + std,
		"bare":       std,
		"unpadded":   strings.TrimRight(std, "="),
		"whitespace": "  data:image/png;base64," + std + "\n",
	}
	for name, in := range inputs {
		img, format, err := DecodeImageData(in)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if format != "png" {
			t.Errorf("%s: format %q", name, format)
		}
		if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
			t.Errorf("%s: bounds %v", name, b)
		}
	}
}

func TestDecodeImageData_Errors(t *testing.T) {
	if _, _, err := DecodeImageData(""); !errors.Is(err, ErrNoImage) {
		t.Errorf("empty: %v", err)
	}
	bad := []string{
		"data:image/png;base64",
		"data:text/plain,hello",
		"data:image/png;base64,!!!!",
		"data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("plain text")),
	}
	for _, in := range bad {
		if _, _, err := DecodeImageData(in); err == nil {
			t.Errorf("DecodeImageData(%q) succeeded", in)
		}
	}
}

// pngHeader — сигнатура и IHDR без пикселей: DecodeConfig этого достаточно.
func pngHeader(w, h uint32) string {
	var ihdr bytes.Buffer
	ihdr.WriteString("IHDR")
	binary.Write(&ihdr, binary.BigEndian, w)
	binary.Write(&ihdr, binary.BigEndian, h)
	ihdr.Write([]byte{8, 6, 0, 0, 0})

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(ihdr.Len()-4))
	buf.Write(ihdr.Bytes())
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr.Bytes()))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeImageData_RejectsOversizedImages(t *testing.T) {
	tests := []struct {
		name string
		w, h uint32
	}{
		{"too many pixels", 12000, 12000},
		{"too wide", MaxImageSide + 1, 10},
		{"too tall", 10, MaxImageSide + 1},
	}
	for _, tt := range tests {
		data := pngHeader(tt.w, tt.h)
		if _, err := CheckImageData(data); !errors.Is(err, ErrImageTooLarge) {
			t.Errorf("%s: CheckImageData = %v", tt.name, err)
		}
		if _, _, err := DecodeImageData(data); !errors.Is(err, ErrImageTooLarge) {
			t.Errorf("%s: DecodeImageData = %v", tt.name, err)
		}
	}
}

func TestCheckImageData(t *testing.T) {
	cfg, err := CheckImageData(pngHeader(MaxImageSide, 100))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != MaxImageSide || cfg.Height != 100 {
		t.Errorf("config %dx%d", cfg.Width, cfg.Height)
	}
	if _, err := CheckImageData("data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("nope"))); err == nil {
		t.Error("garbage accepted")
	}
}

func TestEncodeDataURL(t *testing.T) {
	got := EncodeDataURL("image/webp", []byte{1, 2, 3})
	if got != "data:image/webp;base64,AQID" {
		t.Errorf("got %q", got)
	}
	raw, err := ImageBytes(got)
	if err != nil || !bytes.Equal(raw, []byte{1, 2, 3}) {
		t.Errorf("ImageBytes = %v, %v", raw, err)
	}
}
