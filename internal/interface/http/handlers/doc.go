// Package handlers contains reusable HTTP building blocks for the API server.
//
// This package provides:
//   - Health checks for the store and the leaderboard cache
//   - API key authentication against bcrypt hashes
//   - Small middleware components (security headers, body limits, chaining)
//
// # Health Checks
//
// Checks are registered by name and run in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1")
//	checker.AddCheck("store", handlers.NewPingCheck(store))
//	checker.AddCheck("redis", handlers.NewPingCheck(cache))
//
//	status := checker.Check(ctx)
//
// # Authentication
//
// Keys are never stored in plain text. Operators hash a key with
// `classquest apikey hash <key>` and list the hash in http.api_key_hashes:
//
//	auth, err := handlers.NewAPIKeyAuth("X-API-Key", hashes, onDenied)
//	protected := auth.Middleware(api)
//
// An empty hash list disables authentication.
package handlers
