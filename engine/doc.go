// Package engine assembles the compute core from a single
// configuration. It constructs the scheduler, the tiered plan cache,
// the caching planner, and the warm-up orchestrator from a
// graphgate.Config and wires them into a graphgate.Core, so the
// embedding gateway deals with one constructor instead of five.
//
// The engine also owns deadline policy: NewToken mints cancellation
// tokens carrying the configured mode and plan timeout, and Plan uses
// them for every planning job it submits.
//
// Usage:
//
//	eng, err := engine.New(graphgate.DefaultConfig(), planFn, state, plannerCfg,
//		engine.WithLogger(logger),
//		engine.WithRedis(redisClient),
//	)
//	if err != nil { ... }
//	if err := eng.Start(ctx); err != nil { ... }
//	defer eng.Stop(context.Background())
//
//	plan, err := eng.Plan(ctx, op)
package engine
