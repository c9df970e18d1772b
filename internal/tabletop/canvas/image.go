package canvas

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ============================================================
// Image payload
// ============================================================

// Ограничения на размер карты: сторона и общее число пикселей.
const (
	MaxImageSide   = 16384
	MaxImagePixels = 100_000_000
)

var (
	ErrNoImage       = errors.New("no image data")
	ErrImageTooLarge = errors.New("image too large")
)

// DecodeImageData разбирает data URL ("data:image/png;base64,...") или голый base64
// и декодирует изображение (png, jpeg, gif, webp, bmp).
// Размеры проверяются по заголовку до декодирования пикселей.
func DecodeImageData(data string) (image.Image, string, error) {
	raw, err := ImageBytes(data)
	if err != nil {
		return nil, "", err
	}
	if _, err := imageConfig(raw); err != nil {
		return nil, "", err
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// CheckImageData проверяет data URL без декодирования пикселей: формат известен, размеры в пределах лимита.
func CheckImageData(data string) (image.Config, error) {
	raw, err := ImageBytes(data)
	if err != nil {
		return image.Config{}, err
	}
	return imageConfig(raw)
}

func imageConfig(raw []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return image.Config{}, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return image.Config{}, fmt.Errorf("decode image: empty %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Width > MaxImageSide || cfg.Height > MaxImageSide || cfg.Width*cfg.Height > MaxImagePixels {
		return image.Config{}, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	return cfg, nil
}

// ImageBytes возвращает байты изображения из data URL.
func ImageBytes(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, ErrNoImage
	}

	payload := data
	if strings.HasPrefix(data, "data:") {
		comma := strings.IndexByte(data, ',')
		if comma < 0 {
			return nil, fmt.Errorf("malformed data url")
		}
		meta := data[len("data:"):comma]
		payload = data[comma+1:]
		if !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("data url is not base64 encoded")
		}
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Некоторые клиенты отдают base64 без паддинга.
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
	}
	return raw, nil
}

// EncodeDataURL упаковывает байты изображения обратно в data URL.
func EncodeDataURL(mime string, raw []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw)
}
