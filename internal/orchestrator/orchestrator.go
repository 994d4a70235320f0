package orchestrator

import (
	"context"
	"fmt"

	"github.com/Lutra-Fs/sift/internal/cache"
	"github.com/Lutra-Fs/sift/internal/clients"
	"github.com/Lutra-Fs/sift/internal/config"
	"github.com/Lutra-Fs/sift/internal/lockfile"
	"github.com/Lutra-Fs/sift/internal/resolver"
	"github.com/Lutra-Fs/sift/internal/scope"
	"github.com/Lutra-Fs/sift/internal/siferr"
)

// Orchestrator ties the four phases together for one CLI invocation.
// Phase A fans out across a bounded worker pool (default 8 per spec.md
// §5); Phase C executes strictly serially per (client, config_file) to
// keep the lockfile commit point well-defined.
type Orchestrator struct {
	Planner  *Planner
	Cache    *cache.Store
	PoolSize int
	Force    bool
}

func New(r *resolver.Resolver, c *cache.Store, g *scope.Gate) *Orchestrator {
	return &Orchestrator{Planner: NewPlanner(r, c, g), Cache: c, PoolSize: 8}
}

// Run executes the full Plan -> Ownership -> Execute -> Commit pipeline
// for the given DesiredState against lf, which the caller must have
// already Open'd (holding the advisory lock).
func (o *Orchestrator) Run(ctx context.Context, desired *config.DesiredState, lf *lockfile.Lockfile) *Report {
	report := &Report{}

	keys := make([]config.ResourceKey, 0, len(desired.Entries))
	for k := range desired.Entries {
		keys = append(keys, k)
	}

	plans := make([]*ExecutionPlan, len(keys))
	p := newPool(o.poolSize())
	errs := p.run(len(keys), func(i int) error {
		entry := desired.Entries[keys[i]]
		plan, err := o.Planner.Plan(ctx, keys[i], entry)
		if err != nil {
			return err
		}
		plans[i] = plan
		return nil
	})

	for i, err := range errs {
		if err == nil {
			continue
		}
		if sifErr, ok := err.(*siferr.Error); ok && sifErr.Kind.Fatal() {
			report.Fatal = err
			return report
		}
		report.AddFailure(keys[i].Name, err)
	}

	// Phase B/C run serially per (client, config_file) to keep write
	// ordering well-defined (spec.md §5 ordering guarantee 1).
	for i, plan := range plans {
		if plan == nil {
			continue
		}
		name := keys[i].Name
		report.Warnings = append(report.Warnings, plan.Warnings...)

		ok := true
		for _, op := range plan.Ops {
			if err := o.executeOp(op, lf, report); err != nil {
				report.AddFailure(name, err)
				ok = false
				continue
			}
		}
		if ok {
			o.commitResolved(keys[i], plan, lf)
		}
	}

	if err := lf.Commit(); err != nil {
		report.Fatal = siferr.New(siferr.IoError, "sift.lock", err)
	}
	return report
}

func (o *Orchestrator) poolSize() int {
	if o.PoolSize <= 0 {
		return 8
	}
	return o.PoolSize
}

func (o *Orchestrator) executeOp(op Op, lf *lockfile.Lockfile, report *Report) error {
	switch op.Kind {
	case OpUpsertManagedJSON:
		status, err := CheckOwnership(op, lf, o.Force)
		if err != nil {
			return err
		}
		if status == UserModified {
			report.AddWarning(PlanWarning{Resource: op.Name, Message: fmt.Sprintf("%s: %s is user-modified, skipping (use --force to override)", op.ClientID, op.Name)})
			return nil
		}
		if err := ExecuteJSON(op); err != nil {
			return err
		}
		hash, err := ContentHash(op.JSONPlan.RenderedValue)
		if err != nil {
			return err
		}
		id := lockfile.ClientEntryID{ClientID: op.ClientID, Scope: op.Scope.String(), Kind: op.ResKind.String(), Name: op.Name}
		lf.UpsertManagedConfig(id, lockfile.ManagedRecord{ContentHash: hash})
		return nil

	case OpEnsureSkillDelivery:
		if op.DownloadURL != "" {
			if err := o.Cache.EnsureCached(op.DownloadURL, op.CachePath, op.TreeHash); err != nil {
				return err
			}
		}
		actual, err := ExecuteSkillDelivery(op)
		if err != nil {
			return err
		}
		id := lockfile.SkillEntryID{ClientID: op.ClientID, Scope: op.Scope.String(), Name: op.Name}
		lf.UpsertManagedSkill(id, lockfile.ManagedSkillRecord{LinkModeActual: actual.String(), CachePath: op.CachePath})
		return nil

	case OpRemoveManaged:
		if op.RemoveIsSkill {
			id := lockfile.SkillEntryID{ClientID: op.ClientID, Scope: op.Scope.String(), Name: op.Name}
			lf.RemoveManagedSkill(id)
			return nil
		}
		if op.JSONPlan != nil {
			if err := ExecuteRemoveJSON(op); err != nil {
				return err
			}
		}
		id := lockfile.ClientEntryID{ClientID: op.ClientID, Scope: op.Scope.String(), Kind: op.ResKind.String(), Name: op.Name}
		lf.RemoveManagedConfig(id)
		return nil

	default:
		return fmt.Errorf("unknown op kind %d", op.Kind)
	}
}

// commitResolved records the resolved reference and, for skills, the tree
// hash into the lockfile's cache index, finishing the bookkeeping Phase D
// needs for invariant 3 (delivered tree hash == cache tree hash ==
// lockfile tree hash).
func (o *Orchestrator) commitResolved(key config.ResourceKey, plan *ExecutionPlan, lf *lockfile.Lockfile) {
	resolved, ok := plan.Resolved[key]
	if !ok {
		return
	}
	for _, op := range plan.Ops {
		if op.Kind != OpEnsureSkillDelivery {
			continue
		}
		id := lockfile.SkillEntryID{ClientID: op.ClientID, Scope: op.Scope.String(), Name: op.Name}
		record, _ := lf.ManagedSkill(id)
		record.TreeHash = resolved.TreeHash
		lf.UpsertManagedSkill(id, record)
		if resolved.TreeHash != "" {
			lf.IndexCachePath(resolved.TreeHash, op.CachePath)
		}
	}
	for _, op := range plan.Ops {
		if op.Kind != OpUpsertManagedJSON {
			continue
		}
		id := lockfile.ClientEntryID{ClientID: op.ClientID, Scope: op.Scope.String(), Kind: op.ResKind.String(), Name: op.Name}
		record, _ := lf.ManagedConfig(id)
		record.ResolvedRef = resolved.Ref()
		lf.UpsertManagedConfig(id, record)
	}
}

// ApplyOps executes a standalone list of ops against lf and folds any
// failures into report, without an accompanying Plan/commitResolved step.
// Used by `sift apply --prune` to remove orphaned managed entries
// (PruneOrphans' output) after the main reconciliation pass.
func (o *Orchestrator) ApplyOps(ops []Op, lf *lockfile.Lockfile, report *Report) {
	for _, op := range ops {
		if err := o.executeOp(op, lf, report); err != nil {
			report.AddFailure(op.Name, err)
		}
	}
}

// PruneOrphans builds RemoveManaged ops for lockfile rows with no
// corresponding entry in desired, for `sift apply --prune`/`sift
// uninstall` (`sift install` takes no --prune flag). Each orphaned config row is resolved back through its
// adapter's PlanRemoval so the op carries a JSONPlan and executeOp's
// OpRemoveManaged branch actually deletes the key from the client's
// config file, instead of only dropping the lockfile bookkeeping.
func PruneOrphans(lf *lockfile.Lockfile, desired *config.DesiredState, env clients.Environment) []Op {
	var ops []Op
	for _, id := range lf.OrphanedConfigs(desired) {
		kind := config.KindMCP
		if id.Kind == config.KindSkill.String() {
			kind = config.KindSkill
		}
		op := Op{Kind: OpRemoveManaged, ClientID: id.ClientID, Name: id.Name, ResKind: kind}
		if parsedScope, err := config.ParseScope(id.Scope); err == nil {
			op.Scope = parsedScope
			if adapter, ok := clients.Lookup(id.ClientID); ok {
				if jsonPlan, err := adapter.PlanRemoval(parsedScope, id.Name, env); err == nil {
					op.JSONPlan = jsonPlan
				}
			}
		}
		ops = append(ops, op)
	}
	for _, id := range lf.OrphanedSkills(desired) {
		parsedScope, _ := config.ParseScope(id.Scope)
		ops = append(ops, Op{Kind: OpRemoveManaged, ClientID: id.ClientID, Scope: parsedScope, Name: id.Name, ResKind: config.KindSkill, RemoveIsSkill: true})
	}
	return ops
}
