// Package mixin layers named overlays, each one a config tree of its own under
// the mixin directory, on top of a target's stage.
package mixin

import (
	"context"
	"os/user"
	"sort"

	"github.com/gaia-platform/gdev/pkg/cfg"
	"github.com/gaia-platform/gdev/pkg/config"
	"github.com/gaia-platform/gdev/pkg/graph"
	"github.com/gaia-platform/gdev/pkg/memo"
	"github.com/gaia-platform/gdev/pkg/stage"
	"github.com/gaia-platform/gdev/pkg/utils"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// HostUser is the user invoking gdev, as the host sees them
type HostUser struct {
	UID   string
	GID   string
	Login string
	Home  string
}

// CurrentUser returns the user we're running as
func CurrentUser() (HostUser, error) {
	current, err := user.Current()
	if err != nil {
		return HostUser{}, utils.WrapError(err)
	}
	return HostUser{
		UID:   current.Uid,
		GID:   current.Gid,
		Login: current.Username,
		Home:  current.HomeDir,
	}, nil
}

// GraphBuilder builds the dependency graph of a config tree
type GraphBuilder interface {
	Build(ctx context.Context, root string) (*graph.Graph, error)
}

// Composer builds custom stages out of a stage and a set of mixins
type Composer struct {
	Log     *logrus.Entry
	Builder GraphBuilder
	Layout  cfg.Layout
	Enables cfg.Enables
	Classes config.MixinConfig
	User    HostUser

	memo *memo.Cache
}

// NewComposer returns a composer resolving mixins with builder
func NewComposer(log *logrus.Entry, builder GraphBuilder, layout cfg.Layout, enables cfg.Enables, classes config.MixinConfig, user HostUser, cache *memo.Cache) *Composer {
	return &Composer{
		Log:     log,
		Builder: builder,
		Layout:  layout,
		Enables: enables,
		Classes: classes,
		User:    user,
		memo:    cache,
	}
}

// Composition is a custom stage and the graph everything in it comes from
type Composition struct {
	Stage *stage.Stage
	Graph *graph.Graph
}

// Compose returns a custom stage holding base's filesystem followed by that of
// every mixin, in name order. The mixin config trees are resolved
// concurrently and merged into g, g itself is left alone. With no mixins we
// get base and g straight back.
func (c *Composer) Compose(ctx context.Context, base *stage.Stage, g *graph.Graph, names []string) (*Composition, error) {
	names = lo.Uniq(names)
	sort.Strings(names)
	if len(names) == 0 {
		return &Composition{Stage: base, Graph: g}, nil
	}

	graphs := make([]*graph.Graph, len(names))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, name := range names {
		group.Go(func() error {
			mixinGraph, err := c.Builder.Build(groupCtx, c.Layout.MixinTarget(name))
			if err != nil {
				return err
			}
			graphs[i] = mixinGraph
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	merged := g.Merge(graphs...)
	model := stage.NewModel(c.Log, merged, c.Layout, c.Enables, c.memo)

	inputs := []*stage.Stage{}
	for _, name := range names {
		input, err := model.Stage(c.Layout.MixinTarget(name), stage.KindStage)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, input)
	}

	run := ""
	if c.NeedsHostIdentity(names) {
		run = HostIdentityCommands(c.User, c.Layout.BuildDir)
	}

	c.Log.WithField("mixins", names).Debugf("composing %s", base.Name)

	return &Composition{
		Stage: stage.NewCustom(base, inputs, run),
		Graph: merged,
	}, nil
}

// NeedsHostIdentity tells us whether any of names wants the host user inside the image
func (c *Composer) NeedsHostIdentity(names []string) bool {
	return HasAny(c.Classes.HostIdentity, names)
}

// HasAny tells us whether names holds any member of class
func HasAny(class []string, names []string) bool {
	for _, name := range names {
		if lo.Contains(class, name) {
			return true
		}
	}
	return false
}

// HostIdentityCommands returns the RUN line giving the image a user matching
// the host user, with passwordless sudo and ownership of the build dir
func HostIdentityCommands(hostUser HostUser, buildDir string) string {
	login := hostUser.Login
	return stage.JoinCommands(
		"groupadd -r -o -g "+hostUser.GID+" "+login,
		"useradd "+login+" -l -r -o -u "+hostUser.UID+" -g "+hostUser.GID+" -G sudo",
		"mkdir -p "+hostUser.Home,
		"chown "+login+":"+login+" "+hostUser.Home,
		`echo "`+login+` ALL=(ALL:ALL) NOPASSWD: ALL" >> /etc/sudoers`,
		"touch "+hostUser.Home+"/.sudo_as_admin_successful",
		"chown -R "+login+":"+login+" "+buildDir,
	)
}
