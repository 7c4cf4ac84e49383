// Package coordinator schedules aggregation runs for the serve command.
//
// The coordinator runs the pipeline once on Start and then every
// serve.interval, with ±10% jitter so several mirrors started together do
// not hit the upstream registries at the same instant. Runs never overlap.
// The configuration is read afresh before every run, so edits picked up by
// the config watcher apply from the next run on.
//
// The outcome of the latest run is kept as a Snapshot for the HTTP status
// and readiness endpoints:
//
//	c := coordinator.New(manager, cfgManager.GetConfig)
//	go func() { _ = c.Start(ctx) }()
//	defer c.Stop()
//	snap := c.Status()
package coordinator
