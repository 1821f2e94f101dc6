package cfg

import (
	"os"

	"github.com/gaia-platform/gdev/pkg/memo"
	"github.com/gaia-platform/gdev/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spkg/bom"
)

// Loader reads and parses config files, each at most once per invocation
type Loader struct {
	Log    *logrus.Entry
	Layout Layout

	memo     *memo.Cache
	readFile func(string) ([]byte, error)
	readDir  func(string) ([]os.DirEntry, error)
}

// NewLoader returns a loader for the repo described by layout
func NewLoader(log *logrus.Entry, layout Layout, cache *memo.Cache) *Loader {
	return &Loader{
		Log:      log,
		Layout:   layout,
		memo:     cache,
		readFile: os.ReadFile,
		readDir:  os.ReadDir,
	}
}

// Load returns the parsed config file of target. A missing file is a
// ConfigNotFound error naming the file's repo relative path.
func (l *Loader) Load(target string) (*File, error) {
	target = NormalizeTarget(target)
	path := l.Layout.ConfigPath(target)

	return memo.Get(l.memo, memo.Key("cfg", path), func() (*File, error) {
		l.Log.WithField("path", path).Debug("loading config")

		content, err := l.readFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, utils.NewComplexError(utils.ConfigNotFound, "File %q must exist.", l.Layout.DisplayPath(target))
			}
			return nil, utils.WrapError(err)
		}

		file, err := Parse(target, string(bom.Clean(content)), l.Layout)
		if err != nil {
			return nil, err
		}

		entries, err := l.readDir(l.Layout.TargetDir(target))
		if err != nil {
			return nil, utils.WrapError(err)
		}
		for _, entry := range entries {
			if entry.Name() != l.Layout.ConfigFilename {
				file.HasSiblings = true
				break
			}
		}

		return file, nil
	})
}
