package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const fingerprintLength = 12

// ObjectKey computes the remote key of the file at localPath: its slash-separated path
// relative to the staging directory, under prefix. When fingerprint is set, the first
// characters of the SHA-256 of the content are inserted before the extension, so that
// replacing an image yields a new URL ("logo.png" becomes "logo-0f1e2d3c4b5a.png").
func ObjectKey(cfg Config, localPath, prefix string, fingerprint bool) (string, error) {
	key := filepath.Base(localPath)
	if cfg.ImagesDir != "" {
		rel, err := filepath.Rel(cfg.ImagesDir, localPath)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			key = filepath.ToSlash(rel)
		}
	}

	if fingerprint {
		sum, err := fileDigest(cfg.FS(), localPath)
		if err != nil {
			return "", err
		}
		ext := path.Ext(key)
		key = strings.TrimSuffix(key, ext) + "-" + sum[:fingerprintLength] + ext
	}

	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		key = prefix + "/" + key
	}

	return key, nil
}

// JoinURL appends the escaped key to baseURL.
func JoinURL(baseURL, key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}

	return strings.TrimRight(baseURL, "/") + "/" + strings.Join(segments, "/")
}

func fileDigest(fsys afero.Fs, filePath string) (string, error) {
	file, err := fsys.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("can't open file %s: %w", filePath, err)
	}
	defer func() {
		_ = file.Close()
	}()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("can't read file %s: %w", filePath, err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
