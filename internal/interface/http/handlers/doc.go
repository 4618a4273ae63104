// Package handlers contains the dependency checks behind GET /health and
// GET /ready.
//
//	checker := handlers.NewCompositeHealthChecker(version)
//	checker.AddCheck("postgres", handlers.PingCheck(conn))
//	checker.AddOptionalCheck("redis", handlers.PingCheck(cache))
//
// /health always answers 200 with every check's result. /ready answers 503
// while a critical check fails; optional checks only clear the healthy bit.
package handlers
