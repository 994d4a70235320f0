// Package orchestrator implements the InstallOrchestrator: the only
// component that writes to the filesystem. It runs the four-phase
// Plan/Ownership-check/Execute/Commit pipeline described in SPEC_FULL.md
// §4.7, fanning resolution out across a bounded worker pool (grounded on
// orbitals/gateway.go's BuildGateway multi-phase pipeline) and serializing
// all filesystem mutations.
package orchestrator

import (
	"context"
	"fmt"
	"os"

	"github.com/Lutra-Fs/sift/internal/cache"
	"github.com/Lutra-Fs/sift/internal/clients"
	"github.com/Lutra-Fs/sift/internal/config"
	"github.com/Lutra-Fs/sift/internal/resolver"
	"github.com/Lutra-Fs/sift/internal/scope"
)

// OpKind discriminates ExecutionPlan entries.
type OpKind int

const (
	OpEnsureSkillDelivery OpKind = iota
	OpUpsertManagedJSON
	OpRemoveManaged
)

// Op is one operation in the ExecutionPlan, per spec.md §4.7 Phase A.
type Op struct {
	Kind OpKind

	ClientID string
	Scope    config.Scope
	Name     string
	ResKind  config.Kind

	// OpEnsureSkillDelivery fields.
	LinkMode    clients.LinkMode
	CachePath   string
	DestDir     string
	DownloadURL string // non-empty when CachePath may still need a lazy fetch
	TreeHash    string // expected tree hash to verify a lazy fetch against

	// OpUpsertManagedJSON fields.
	JSONPlan *clients.ManagedJsonPlan

	// OpRemoveManaged: true when this removes a skill delivery row
	// instead of a managed-json row.
	RemoveIsSkill bool
}

// PlanWarning is a non-fatal diagnostic produced during planning (scope
// warn-skip, link-mode downgrade, VersionIgnored, source normalization).
type PlanWarning struct {
	Resource string
	Message  string
}

// ExecutionPlan is Phase A's output: an ordered list of operations plus
// the resolved references each resource ended up with (for the lockfile
// commit in Phase D) and any warnings collected along the way.
type ExecutionPlan struct {
	Ops      []Op
	Resolved map[config.ResourceKey]resolver.Resolved
	Warnings []PlanWarning
}

// Planner builds an ExecutionPlan for a DesiredState filtered to the
// current command's scope and selectors.
type Planner struct {
	Resolver  *resolver.Resolver
	Cache     *cache.Store
	Gate      *scope.Gate
	ClientIDs []string // clients to plan against; empty means all registered
	Env       clients.Environment
}

func NewPlanner(r *resolver.Resolver, c *cache.Store, g *scope.Gate) *Planner {
	env := clients.Environment{SiftHome: c.Home()}
	if home, err := os.UserHomeDir(); err == nil {
		env.HomeDir = home
	}
	return &Planner{Resolver: r, Cache: c, Gate: g, Env: env}
}

func (p *Planner) clientIDs() []string {
	if len(p.ClientIDs) > 0 {
		return p.ClientIDs
	}
	ids := make([]string, 0, len(clients.Registry))
	for id := range clients.Registry {
		ids = append(ids, id)
	}
	return ids
}

// Plan implements Phase A for one resource: resolve it, then for each
// eligible client obtain plans from C5 and pass them through C6.
func (p *Planner) Plan(ctx context.Context, key config.ResourceKey, entry config.Entry) (*ExecutionPlan, error) {
	plan := &ExecutionPlan{Resolved: map[config.ResourceKey]resolver.Resolved{}}

	resolved, err := p.Resolver.Resolve(ctx, entry.Resource)
	if err != nil {
		return nil, err
	}
	plan.Resolved[key] = resolved

	for _, clientID := range p.clientIDs() {
		if !scope.Eligible(entry.Resource, clientID) {
			continue
		}
		adapter, ok := clients.Lookup(clientID)
		if !ok {
			continue
		}

		decision, err := p.Gate.CheckScope(entry.Resource, entry.Scope, adapter)
		if err != nil {
			return nil, err
		}
		if !decision.Proceed {
			if decision.Warning != "" {
				plan.Warnings = append(plan.Warnings, PlanWarning{Resource: entry.Resource.Name, Message: decision.Warning})
			}
			continue
		}

		if err := p.planResourceForClient(ctx, plan, key, entry, resolved, adapter); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

func (p *Planner) planResourceForClient(ctx context.Context, plan *ExecutionPlan, key config.ResourceKey, entry config.Entry, resolved resolver.Resolved, adapter clients.Adapter) error {
	caps := adapter.Capabilities()

	if entry.Resource.Kind == config.KindMCP {
		if err := p.Gate.CheckTransport(entry.Resource, adapter); err != nil {
			plan.Warnings = append(plan.Warnings, PlanWarning{Resource: entry.Resource.Name, Message: err.Error()})
			return nil
		}
		jsonPlan, err := adapter.PlanJSON(entry.Scope, entry.Resource, resolved, p.Env)
		if err != nil {
			return fmt.Errorf("plan json for %s/%s: %w", adapter.ID(), entry.Resource.Name, err)
		}
		plan.Ops = append(plan.Ops, Op{
			Kind: OpUpsertManagedJSON, ClientID: adapter.ID(), Scope: entry.Scope,
			Name: entry.Resource.Name, ResKind: config.KindMCP, JSONPlan: jsonPlan,
		})
		return nil
	}

	if caps.SkillDelivery == clients.DeliveryNone {
		return nil
	}

	effective, downgraded := scope.DowngradeLinkMode(p.Gate.LinkModePolicy, caps.SymlinkAllowed, false)
	if downgraded {
		plan.Warnings = append(plan.Warnings, PlanWarning{
			Resource: entry.Resource.Name,
			Message:  fmt.Sprintf("%s: downgraded skill delivery to %s", adapter.ID(), effective),
		})
	}

	deliveryPlan, err := adapter.PlanSkillDelivery(entry.Scope, entry.Resource.Name, effective, p.Env)
	if err != nil {
		return fmt.Errorf("plan skill delivery for %s/%s: %w", adapter.ID(), entry.Resource.Name, err)
	}

	if entry.Scope == config.ProjectLocal {
		projectDir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine project directory for %s/%s: %w", adapter.ID(), entry.Resource.Name, err)
		}
		if err := p.Gate.CheckGitWorkingTree(projectDir, deliveryPlan.DestinationDir); err != nil {
			return err
		}
	}

	plan.Ops = append(plan.Ops, Op{
		Kind: OpEnsureSkillDelivery, ClientID: adapter.ID(), Scope: entry.Scope,
		Name: entry.Resource.Name, ResKind: config.KindSkill,
		LinkMode: deliveryPlan.RequestedMode, CachePath: resolved.CachePath, DestDir: deliveryPlan.DestinationDir,
		DownloadURL: resolved.DownloadURL, TreeHash: resolved.TreeHash,
	})
	_ = ctx
	return nil
}
