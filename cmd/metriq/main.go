// Command metriq wires the schema, entry pipeline, formula engine, and bus
// together into a running server: a demo schema, an in-memory store, a
// websocket bus broadcasting pipeline outcomes, and one pipeline run
// exercised at startup so the wiring is observable in the logs.
package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/daqhub/metriq/access"
	"github.com/daqhub/metriq/bus"
	"github.com/daqhub/metriq/bus/wsconn"
	"github.com/daqhub/metriq/config"
	"github.com/daqhub/metriq/entry"
	"github.com/daqhub/metriq/ledger"
	daqlog "github.com/daqhub/metriq/log"
	"github.com/daqhub/metriq/pipeline"
	"github.com/daqhub/metriq/schema"
	"github.com/daqhub/metriq/store"
)

func main() {
	cfg := config.FromFlags()

	logger, err := daqlog.NewDevelopment()
	if err != nil {
		log.Fatalf("metriq: building logger: %v", err)
	}

	reg := demoRegistry()
	mem := store.NewMemStore(reg)
	policy := demoPolicy()
	hub := bus.NewHub()
	go hub.Run(&bus.Broadcaster{Hub: hub})

	pctx := &entry.PipelineContext{Registry: reg, Oracle: mem}
	led := ledger.New()

	root, err := pipeline.Run(context.Background(), pctx, demoInput(), "demo", policy, hub, logger, led)
	if err != nil {
		logger.Error("demo pipeline run failed", "err", err)
	} else {
		mem.Put(root)
		logger.Debug("demo pipeline run succeeded", "root_id", root.Entry.ID)
	}
	for _, ev := range led.Events(nil) {
		logger.Debug("ledger event", "top", ev.Top, "key", ev.Key, "cmd", ev.Cmd, "rev", ev.Rev)
	}

	http.HandleFunc("/bus", wsconn.Serve(hub, logger))
	logger.Debug("metriq listening", "addr", cfg.BusAddr)
	if err := http.ListenAndServe(cfg.BusAddr, nil); err != nil {
		log.Fatalf("metriq: serving: %v", err)
	}
}

// demoRegistry builds the small EST/TIM schema from the worked KPI example
// (§8 scenario 2): a timing-capable EST metric with adv/project attribute
// fields, a tim field and a gross_productivity formula field, plus TIM's
// time_init/time_end/duration/time_type fields.
func demoRegistry() *schema.Registry {
	var id int64
	next := func() int64 { id++; return id }

	estID, timID := next(), next()
	advID, projectID := next(), next()
	timeInitID, timeEndID, durationID, timeTypeID := next(), next(), next(), next()
	intID, floatID, stringID, hierID := next(), next(), next(), next()

	defs := []*schema.Definition{
		{ID: intID, Code: "INT", Kind: schema.KindAttribute, Datatype: schema.Int},
		{ID: floatID, Code: "FLOAT", Kind: schema.KindAttribute, Datatype: schema.Float},
		{ID: stringID, Code: "STRING", Kind: schema.KindAttribute, Datatype: schema.String},
		{ID: hierID, Code: "HIER", Kind: schema.KindAttribute, Datatype: schema.Hierarchy},
		{ID: estID, Code: "EST", Kind: schema.KindMetric},
		{ID: timID, Code: "TIM", Kind: schema.KindMetric},
	}
	fields := []*schema.Field{
		{ID: advID, MetricID: estID, Name: "adv", BaseDefinitionID: intID, Cardinality: schema.Cardinality{Min: 0, Max: 1}, InputMode: schema.Input},
		{ID: projectID, MetricID: estID, Name: "project", BaseDefinitionID: stringID, Cardinality: schema.Cardinality{Min: 0, Max: 1}, InputMode: schema.Input},
		{ID: next(), MetricID: estID, Name: "tim", BaseDefinitionID: timID, Cardinality: schema.Cardinality{Min: 0, Max: 1}, InputMode: schema.Input},
		{ID: next(), MetricID: estID, Name: "gross_productivity", BaseDefinitionID: floatID, Cardinality: schema.Cardinality{Min: 0, Max: 1}, InputMode: schema.Formula, Formula: `self.tim.time("t") / self.tim.duration`},
		{ID: timeInitID, MetricID: timID, Name: "time_init", BaseDefinitionID: intID, Cardinality: schema.Cardinality{Min: 0, Max: 1}, InputMode: schema.Input},
		{ID: timeEndID, MetricID: timID, Name: "time_end", BaseDefinitionID: intID, Cardinality: schema.Cardinality{Min: 0, Max: 1}, InputMode: schema.Input},
		{ID: durationID, MetricID: timID, Name: "duration", BaseDefinitionID: intID, Cardinality: schema.Cardinality{Min: 0, Max: 1}, InputMode: schema.Input},
		{ID: timeTypeID, MetricID: timID, Name: "time_type", BaseDefinitionID: stringID, Cardinality: schema.Cardinality{Min: 1, Max: 0}, InputMode: schema.Input},
	}
	return schema.NewRegistry(defs, fields)
}

func demoPolicy() access.Policy {
	return access.NewPolicy().
		AddRole("demo", false).
		Grant("demo", pipeline.CreateEntry)
}

func demoInput() *entry.MetricEntryInput {
	advVal := int64(7)
	projectVal := "paper"
	timeInit := int64(840)
	timeEnd := int64(900)
	duration := int64(60)
	t, m, n := int64(30), int64(20), int64(10)
	tSub, mSub, nSub := "t", "m", "n"
	return &entry.MetricEntryInput{
		DefinitionCode: "EST",
		Timestamp:      time.Now(),
		Subdivision:    "research",
		Fields: []entry.FieldInput{
			{FieldName: "adv", Values: []entry.AttributeValueInput{{ValueInt: &advVal}}},
			{FieldName: "project", Values: []entry.AttributeValueInput{{ValueString: &projectVal}}},
			{FieldName: "tim", Values: []entry.AttributeValueInput{{Nested: &entry.MetricEntryInput{
				DefinitionCode: "TIM",
				Fields: []entry.FieldInput{
					{FieldName: "time_init", Values: []entry.AttributeValueInput{{ValueInt: &timeInit}}},
					{FieldName: "time_end", Values: []entry.AttributeValueInput{{ValueInt: &timeEnd}}},
					{FieldName: "duration", Values: []entry.AttributeValueInput{{ValueInt: &duration}}},
					{FieldName: "time_type", Values: []entry.AttributeValueInput{
						{ValueInt: &t, Subdivision: &tSub},
						{ValueInt: &m, Subdivision: &mSub},
						{ValueInt: &n, Subdivision: &nSub},
					}},
				},
			}}}},
		},
	}
}
