// Package cache decides whether an image has to be built, by comparing the
// labels we want on it with the labels of the image already there.
package cache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gaia-platform/gdev/pkg/memo"
	"github.com/gaia-platform/gdev/pkg/stage"
	"github.com/gaia-platform/gdev/pkg/utils"
	"github.com/opencontainers/go-digest"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// TaintedIdentity is the identity of anything built from a tree that differs
// from its commit
const TaintedIdentity = "tainted"

// labels we put on every image we build
const (
	GitHashLabel          = "GitHash"
	MixinsLabel           = "Mixins"
	DockerfileDigestLabel = "DockerfileDigest"
)

// Source answers the source control questions identity depends on
type Source interface {
	RevisionHash(ctx context.Context, repoRoot string) (string, error)
	Uncommitted(ctx context.Context, repoRoot string, dirs []string) ([]string, error)
}

// Images reads the labels off an existing image
type Images interface {
	ImageLabels(ctx context.Context, ref string) (map[string]string, bool, error)
}

// Tag is an image tag: the stage name, then the identity of the sources it was built from
type Tag struct {
	Name     string
	Identity string
}

func (t Tag) String() string {
	return t.Name + ":" + t.Identity
}

// Remote returns the tag's reference in registry
func (t Tag) Remote(registry string) string {
	return strings.TrimSuffix(registry, "/") + "/" + t.String()
}

// RemoteLatest returns the reference of the stage's latest image in registry
func (t Tag) RemoteLatest(registry string) string {
	return Tag{Name: t.Name, Identity: "latest"}.Remote(registry)
}

// Request is what a decision is made about
type Request struct {
	Dockerfile *stage.Dockerfile
	// Dirs are the repo relative directories whose changes taint the image
	Dirs   []string
	Mixins []string
	// Force builds whatever the labels say
	Force bool
	// Tainted marks the image tainted whatever git says
	Tainted bool
}

// Decision is the outcome of comparing the image we want with the image we have
type Decision struct {
	Tag    Tag
	Wanted map[string]string
	Actual map[string]string
	Exists bool
	// Uncommitted are the changed paths that tainted the image, if git tainted it
	Uncommitted []string
	// TaintedByFlag tells us the image is tainted because we were told so
	TaintedByFlag bool
	NeedsBuild    bool
}

// Tainted tells us the image isn't built from a commit
func (d *Decision) Tainted() bool {
	return d.Tag.Identity == TaintedIdentity
}

// CheckPush refuses to let a tainted image anywhere near a registry, whatever
// its labels say
func (d *Decision) CheckPush() error {
	if !d.Tainted() {
		return nil
	}
	if d.TaintedByFlag {
		return utils.NewComplexError(
			utils.TaintedUpload,
			"Refusing to push %s: it was built with --tainted and can't be reproduced from a commit",
			d.Tag,
		)
	}
	return utils.NewComplexError(
		utils.TaintedUpload,
		"Refusing to push %s: it was built from uncommitted changes to:\n  %s",
		d.Tag,
		strings.Join(d.Uncommitted, "\n  "),
	)
}

// WantedLabels returns the labels an image built from dockerfile at identity
// carries. The mixin order never matters.
func WantedLabels(identity string, mixins []string, dockerfile string) map[string]string {
	labels := map[string]string{
		GitHashLabel:          identity,
		DockerfileDigestLabel: digest.FromString(dockerfile).String(),
	}
	if len(mixins) > 0 {
		sorted := lo.Uniq(mixins)
		sort.Strings(sorted)
		labels[MixinsLabel] = strings.Join(sorted, ",")
	}
	return labels
}

// CacheFrom returns the registry images buildx may pull cached layers from:
// the latest image of every stage in the dockerfile
func CacheFrom(registry string, dockerfile *stage.Dockerfile) []string {
	if registry == "" {
		return nil
	}
	return lo.Map(dockerfile.Emitted, func(s *stage.Stage, _ int) string {
		return Tag{Name: s.Name}.RemoteLatest(registry)
	})
}

// Decider makes cache decisions for the repo at RepoRoot
type Decider struct {
	Log      *logrus.Entry
	Source   Source
	Images   Images
	RepoRoot string

	memo *memo.Cache
}

// NewDecider returns a decider querying source and images
func NewDecider(log *logrus.Entry, source Source, images Images, repoRoot string, cache *memo.Cache) *Decider {
	return &Decider{
		Log:      log,
		Source:   source,
		Images:   images,
		RepoRoot: repoRoot,
		memo:     cache,
	}
}

// Identity returns the revision hash of the repo, or TaintedIdentity when
// tainted is set or any of dirs has uncommitted changes. The two git queries
// run concurrently.
func (d *Decider) Identity(ctx context.Context, dirs []string, tainted bool) (string, []string, error) {
	if tainted {
		return TaintedIdentity, nil, nil
	}

	var hash string
	var uncommitted []string

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hash, err = d.Source.RevisionHash(ctx, d.RepoRoot)
		return err
	})
	g.Go(func() error {
		var err error
		uncommitted, err = d.Source.Uncommitted(ctx, d.RepoRoot, dirs)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", nil, err
	}

	if len(uncommitted) > 0 {
		d.Log.Debugf("revision %s has %d uncommitted paths", utils.WithShortSha(hash), len(uncommitted))
		return TaintedIdentity, uncommitted, nil
	}
	return hash, nil, nil
}

// Decide works out the tag for req's target stage and whether an image has to
// be built for it: when forced, when there is no image at that tag, or when
// the image's labels aren't the ones we want
func (d *Decider) Decide(ctx context.Context, req Request) (*Decision, error) {
	key := memo.Key(
		"cache.decide",
		req.Dockerfile.Target.Name,
		digest.FromString(req.Dockerfile.Text).String(),
		strings.Join(req.Dirs, ","),
		strings.Join(req.Mixins, ","),
		strconv.FormatBool(req.Force),
		strconv.FormatBool(req.Tainted),
	)

	return memo.Get(d.memo, key, func() (*Decision, error) {
		identity, uncommitted, err := d.Identity(ctx, req.Dirs, req.Tainted)
		if err != nil {
			return nil, err
		}

		tag := Tag{Name: req.Dockerfile.Target.Name, Identity: identity}
		actual, exists, err := d.Images.ImageLabels(ctx, tag.String())
		if err != nil {
			return nil, err
		}

		decision := &Decision{
			Tag:           tag,
			Wanted:        WantedLabels(identity, req.Mixins, req.Dockerfile.Text),
			Actual:        actual,
			Exists:        exists,
			Uncommitted:   uncommitted,
			TaintedByFlag: req.Tainted,
		}
		decision.NeedsBuild = req.Force || !exists || !labelsEqual(decision.Wanted, actual)

		d.Log.WithFields(logrus.Fields{
			"tag":        tag.String(),
			"exists":     exists,
			"needsBuild": decision.NeedsBuild,
		}).Debug(fmt.Sprintf("wanted labels %v, actual labels %v", decision.Wanted, actual))

		return decision, nil
	})
}

// labelsEqual compares the labels we manage. Anything else on the image, like
// the labels it inherits from the base image, is none of our business.
func labelsEqual(wanted map[string]string, actual map[string]string) bool {
	for _, key := range []string{GitHashLabel, MixinsLabel, DockerfileDigestLabel} {
		wantedValue, wantedOk := wanted[key]
		actualValue, actualOk := actual[key]
		if wantedOk != actualOk || wantedValue != actualValue {
			return false
		}
	}
	return true
}
