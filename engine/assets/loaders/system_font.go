package loaders

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font/opentype"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// SystemFontLoader loads TrueType/OpenType files, either directly or
// through a .fontcfg file made of "file=" and "face=" lines.
type SystemFontLoader struct{}

func (fl *SystemFontLoader) Load(path string) (*metadata.Resource, error) {
	rd := &metadata.SystemFontResourceData{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}

	fontPath := path
	if filepath.Ext(path) == ".fontcfg" {
		cfg, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		file, face, err := parseFontConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		fontPath = filepath.Join(filepath.Dir(path), file)
		if face != "" {
			rd.Name = face
		}
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, err
	}
	if _, err := opentype.Parse(data); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrInvalidFont, fontPath, err)
	}
	rd.Binary = data

	return &metadata.Resource{
		Name:     rd.Name,
		FullPath: fontPath,
		Type:     metadata.ResourceTypeSystemFont,
		Data:     rd,
	}, nil
}

func (fl *SystemFontLoader) Unload(res *metadata.Resource) error {
	res.Data = nil
	return nil
}

func parseFontConfig(cfg []byte) (file, face string, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(cfg))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip comments and empty lines
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "file=") {
			file = strings.TrimPrefix(line, "file=")
		} else if strings.HasPrefix(line, "face=") && face == "" {
			face = strings.TrimPrefix(line, "face=")
		}
	}
	if err := scanner.Err(); err != nil {
		return "", "", err
	}
	if file == "" {
		return "", "", fmt.Errorf("%w: missing file= entry", core.ErrInvalidFont)
	}
	return file, face, nil
}
