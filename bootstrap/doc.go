// Package bootstrap provides application initialization and lifecycle management.
// It wires configuration, MongoDB, the optional Redis rate limit store, the
// services and the HTTP API into a single App.
//
// Usage:
//
//	app, err := bootstrap.NewApp(configPath)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Shutdown()
//
//	if err := app.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Wait for shutdown signal
//	app.WaitForShutdown()
package bootstrap
