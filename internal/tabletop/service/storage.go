package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ============================================================
// Preview Storage
// ============================================================

// PreviewStorage раскладывает отрендеренные превью карт по каталогам комнат.
type PreviewStorage struct {
	root string
}

func NewPreviewStorage(root string) *PreviewStorage {
	return &PreviewStorage{root: root}
}

func (s *PreviewStorage) RoomDir(roomCode string) string {
	return filepath.Join(s.root, safeName(strings.ToUpper(roomCode)))
}

func (s *PreviewStorage) MapDir(roomCode, mapID string) string {
	return filepath.Join(s.RoomDir(roomCode), safeName(mapID))
}

// PreviewPath — файл превью для конкретной ревизии карты и размера поверхности.
func (s *PreviewStorage) PreviewPath(roomCode, mapID string, revision, width, height int, format string) string {
	return filepath.Join(s.MapDir(roomCode, mapID), fmt.Sprintf("r%d_%dx%d.%s", revision, width, height, format))
}

// ThumbnailPath — файл миниатюры изображения карты.
func (s *PreviewStorage) ThumbnailPath(roomCode, mapID string, revision, size int) string {
	return filepath.Join(s.MapDir(roomCode, mapID), fmt.Sprintf("r%d_thumb%d.png", revision, size))
}

func (s *PreviewStorage) EnsureMapDir(roomCode, mapID string) error {
	path := s.MapDir(roomCode, mapID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir preview dir: %w", err)
	}
	return nil
}

// SaveFile пишет через временный файл, чтобы параллельный читатель не увидел половину превью.
func (s *PreviewStorage) SaveFile(roomCode, mapID, target string, data []byte) error {
	if err := s.EnsureMapDir(roomCode, mapID); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".preview-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// ReadFile возвращает (nil, nil), если файла нет.
func (s *PreviewStorage) ReadFile(target string) ([]byte, error) {
	data, err := os.ReadFile(target)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, err
}

// PruneMap удаляет файлы устаревших ревизий карты.
func (s *PreviewStorage) PruneMap(roomCode, mapID string, keepRevision int) error {
	entries, err := os.ReadDir(s.MapDir(roomCode, mapID))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	keep := fmt.Sprintf("r%d_", keepRevision)
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), keep) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := os.Remove(filepath.Join(s.MapDir(roomCode, mapID), e.Name())); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (s *PreviewStorage) RemoveMap(roomCode, mapID string) error {
	return os.RemoveAll(s.MapDir(roomCode, mapID))
}

func (s *PreviewStorage) RemoveRoom(roomCode string) error {
	return os.RemoveAll(s.RoomDir(roomCode))
}

// safeName не даёт выйти из корня через ".." или разделители в id.
func safeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if name == "" {
		return "_"
	}
	return name
}
