package command

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/protocol"
)

// FindFile opens the first file under the host's working directory whose
// relative path contains Pattern, ignoring case.
type FindFile struct {
	Pattern string `msgpack:"pattern"`
}

func (FindFile) Kind() string { return "find_file" }

func init() {
	protocol.Register(FindFile{})
}

type finderFile struct {
	Rel string
	Abs string
}

func shouldSkipFinderDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor":
		return true
	default:
		return false
	}
}

func collectFinderFiles(root string) ([]finderFile, error) {
	clean := filepath.Clean(root)
	var out []finderFile
	err := filepath.WalkDir(clean, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != clean && shouldSkipFinderDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(clean, path)
		if err != nil {
			rel = path
		}

		out = append(out, finderFile{
			Rel: filepath.ToSlash(rel),
			Abs: path,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Rel) < strings.ToLower(out[j].Rel)
	})
	return out, nil
}

// matchFile picks the best match for pattern: an exact base name first,
// then a base name containing it, then any path containing it. Ties go to
// the shortest path.
func matchFile(files []finderFile, pattern string) (finderFile, bool) {
	pattern = strings.ToLower(pattern)
	best, bestRank := finderFile{}, 0
	for _, f := range files {
		rel := strings.ToLower(f.Rel)
		base := strings.ToLower(filepath.Base(f.Rel))
		rank := 0
		switch {
		case base == pattern:
			rank = 3
		case strings.Contains(base, pattern):
			rank = 2
		case strings.Contains(rel, pattern):
			rank = 1
		}
		if rank > bestRank || (rank == bestRank && rank > 0 && len(f.Rel) < len(best.Rel)) {
			best, bestRank = f, rank
		}
	}
	return best, bestRank > 0
}

func findFile(client protocol.ClientIndex, cmd FindFile, u *editor.Utils, emit editor.Emit) {
	log := u.Log().WithFields(logrus.Fields{"client": client, "pattern": cmd.Pattern})
	root, err := os.Getwd()
	if err != nil {
		log.WithError(err).Warn("find file")
		return
	}
	files, err := collectFinderFiles(root)
	if err != nil {
		log.WithError(err).Warn("find file")
		return
	}
	f, ok := matchFile(files, cmd.Pattern)
	if !ok {
		log.Info("no file matches")
		return
	}
	emit(client, protocol.LoadFile{Path: f.Abs})
}
