package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ScanDirectory walks root and returns every allowed file with its content hash.
// Files whose content repeats an earlier one are marked Deduplicated.
func ScanDirectory(ctx context.Context, root string, skipHidden bool) ([]Candidate, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []Candidate
	var stats DirStats
	seen := map[string]struct{}{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Candidate{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		ref, err := filepath.Rel(root, path)
		if err != nil {
			ref = filepath.Base(path)
		}
		c := Candidate{Path: path, Ref: filepath.ToSlash(ref)}
		c.HashHex, c.Size, err = hashFile(path)
		if err != nil {
			c.Err = err.Error()
			results = append(results, c)
			stats.Failed++
			return nil
		}
		if _, dup := seen[c.HashHex]; dup {
			c.Deduplicated = true
			stats.Deduplicated++
		}
		seen[c.HashHex] = struct{}{}
		results = append(results, c)
		return nil
	})

	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
