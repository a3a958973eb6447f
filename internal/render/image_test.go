package render

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodeTestImage(t *testing.T, format string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, nil)
	}
	if err != nil {
		t.Fatalf("encode %s: %v", format, err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeImage_WithDataPrefix(t *testing.T) {
	encoded := "data:image/png;base64," + encodeTestImage(t, "png")

	out, err := decodeImage(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(out)); err != nil {
		t.Errorf("output is not valid PNG: %v", err)
	}
}

func TestDecodeImage_BareBase64(t *testing.T) {
	out, err := decodeImage(encodeTestImage(t, "png"))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(out) == 0 {
		t.Error("expected PNG bytes")
	}
}

func TestDecodeImage_JPEGNormalizedToPNG(t *testing.T) {
	out, err := decodeImage(encodeTestImage(t, "jpeg"))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(out)); err != nil {
		t.Errorf("JPEG input must re-encode to PNG: %v", err)
	}
}

func TestDecodeImage_InvalidBase64(t *testing.T) {
	if _, err := decodeImage("data:image/png;base64,!!!not-base64!!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestDecodeImage_NotAnImage(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("plain text, not pixels"))
	if _, err := decodeImage(payload); err == nil {
		t.Error("expected error for a payload that is not an image")
	}
}
