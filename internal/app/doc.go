// Package app wires the SchoolPulse service together and manages its lifecycle.
//
// NewApplication builds every component from a loaded configuration:
//
//	1. Telemetry (tracer, meter, Prometheus exporter)
//	2. The snapshot store selected by store.driver
//	3. The WebSocket hub and the catalog service, with the optional Google Sheets source
//	4. The chi router with its middleware chain
//
// Serve restores the persisted workbook when store.restore_on_start is set, then
// runs the hub and the HTTP server under one errgroup. Cancelling the context
// drains in-flight requests, stops the hub, flushes telemetry and closes the store.
//
//	cfg, _ := config.Load()
//	a, err := app.NewApplication(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return a.Run(ctx)
//
// The package never calls os.Exit; the caller decides how to exit.
package app
