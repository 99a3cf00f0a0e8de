// Package runtime handles event production, propagation and worker
// wiring. It orchestrates the system without containing domain rules.
package runtime

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"

	"rentchat/errors"
)

//go:embed blocklist/*
var blocklistFolder embed.FS

// BlocklistData holds the deduplicated blocked terms and the list of
// language files they came from.
type BlocklistData struct {
	Languages []string
	Terms     []string
}

// LoadDefaultBlocklist reads the blocklist shipped inside the binary.
func LoadDefaultBlocklist() (BlocklistData, error) {
	return NewBlocklistLoader(blocklistFolder).LoadAll("blocklist")
}

type BlocklistLoader struct {
	fsys fs.FS
}

func NewBlocklistLoader(fsys fs.FS) BlocklistLoader {
	return BlocklistLoader{fsys: fsys}
}

// LoadAll reads every file under dir, one term per line. Blank lines
// and '#' comments are skipped; terms are deduplicated across files.
func (l BlocklistLoader) LoadAll(dir string) (BlocklistData, error) {
	entries, err := fs.ReadDir(l.fsys, dir)
	if err != nil {
		return BlocklistData{}, err
	}

	seen := make(map[string]struct{})
	var data BlocklistData
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := fs.ReadFile(l.fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return BlocklistData{}, err
		}
		lang := strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))
		data.Languages = append(data.Languages, lang)

		scanner := bufio.NewScanner(bytes.NewReader(content))
		for scanner.Scan() {
			term := strings.TrimSpace(scanner.Text())
			if term == "" || strings.HasPrefix(term, "#") {
				continue
			}
			term = strings.ToLower(term)
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			data.Terms = append(data.Terms, term)
		}
		if err := scanner.Err(); err != nil {
			return BlocklistData{}, err
		}
	}

	if len(data.Terms) == 0 {
		return BlocklistData{}, errors.ErrEmptyBlocklist
	}
	sort.Strings(data.Terms)
	return data, nil
}
