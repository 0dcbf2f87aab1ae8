package pipeline

import (
	"context"

	"github.com/daqhub/metriq/access"
	"github.com/daqhub/metriq/bus"
	"github.com/daqhub/metriq/entry"
	"github.com/daqhub/metriq/ledger"
	"github.com/daqhub/metriq/log"
)

// CreateEntry is the action name gated by Policy before a run starts.
const CreateEntry = "entry.create"

// Run executes the full entry creation pipeline for in (§4): build,
// populate hierarchy-only formulas, resolve instances against pctx.Oracle,
// apply the remaining formulas, and validate cardinality — atomically: any
// stage failing discards the partially built tree and returns its error
// untouched (§5 "All-or-nothing").
//
// policy gates the run under CreateEntry for user before any stage runs.
// On success or failure, a message is published to publisher so live
// listeners (dashboards, widget viewers) observe run outcomes as they
// happen, and an Event is appended to led recording the same outcome.
func Run(ctx context.Context, pctx *entry.PipelineContext, in *entry.MetricEntryInput, user string, policy access.Policy, publisher *bus.Hub, logger log.Logger, led *ledger.Ledger) (*entry.ResolvedEntry, error) {
	if policy != nil {
		if err := policy.Allow(user, CreateEntry); err != nil {
			return nil, err
		}
	}

	ids := entry.NewIDAllocator()
	root, err := Build(pctx.Registry, ids, in)
	if err != nil {
		publishFailure(publisher, user, err)
		recordFailure(led, in.DefinitionCode, user, err)
		return nil, err
	}

	def, ok := pctx.Registry.DefinitionByCode(in.DefinitionCode)
	if !ok {
		err := &FormulaError{Formula: in.DefinitionCode, Message: "unknown definition"}
		publishFailure(publisher, user, err)
		recordFailure(led, in.DefinitionCode, user, err)
		return nil, err
	}
	vectors := entry.NewVectors(pctx.Registry, def, in.Subdivision)
	state := &entry.PipelineState{Root: root, Ctx: pctx, Vectors: vectors, IDs: ids}

	stages := []func() error{
		func() error { return PopulateFromSubdivision(state) },
		func() error { return ConvertToInstances(ctx, state) },
		func() error { return ApplyFormulas(state) },
		func() error { return ValidateCardinality(state) },
	}
	for _, stage := range stages {
		if err := stage(); err != nil {
			if logger != nil {
				logger.Error("pipeline run failed", "user", user, "definition", in.DefinitionCode, "err", err)
			}
			publishFailure(publisher, user, err)
			recordFailure(led, in.DefinitionCode, user, err)
			return nil, err
		}
	}

	if logger != nil {
		logger.Debug("pipeline run succeeded", "user", user, "definition", in.DefinitionCode, "root_id", state.Root.Entry.ID)
	}
	publishSuccess(publisher, user, state.Root)
	recordSuccess(led, in.DefinitionCode, user, state.Root.Entry.ID)
	return state.Root, nil
}

func recordSuccess(led *ledger.Ledger, defCode, user string, rootID int64) {
	if led == nil {
		return
	}
	led.Append(ledger.Action{
		Sig: ledger.Sig{Top: "pipeline.run", Key: defCode},
		Cmd: "ok",
		Arg: map[string]interface{}{"user": user, "root_id": rootID},
	})
}

func recordFailure(led *ledger.Ledger, defCode, user string, err error) {
	if led == nil {
		return
	}
	kind := "UNKNOWN_ERROR"
	if pe, ok := err.(PipelineError); ok {
		kind = pe.Kind().String()
	}
	led.Append(ledger.Action{
		Sig: ledger.Sig{Top: "pipeline.run", Key: defCode},
		Cmd: "failed",
		Arg: map[string]interface{}{"user": user, "kind": kind, "error": err.Error()},
	})
}

func publishSuccess(publisher *bus.Hub, user string, root *entry.ResolvedEntry) {
	if publisher == nil {
		return
	}
	publisher.Publish(&bus.Msg{Subj: bus.SubjRunOK, Data: map[string]interface{}{"user": user, "root_id": root.Entry.ID}})
}

func publishFailure(publisher *bus.Hub, user string, err error) {
	if publisher == nil {
		return
	}
	kind := "UNKNOWN_ERROR"
	if pe, ok := err.(PipelineError); ok {
		kind = pe.Kind().String()
	}
	publisher.Publish(&bus.Msg{Subj: bus.SubjRunFailed, Data: map[string]interface{}{"user": user, "kind": kind, "error": err.Error()}})
}
