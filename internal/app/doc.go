// Package app is the composition root for kxapi.
//
// # Overview
//
// New loads the TOML config and builds every long-lived piece in dependency
// order: logger, token store, metrics registry, session, transport, client
// registry, the default client and the login orchestrator. Commands receive a
// *Runtime and never construct these themselves.
//
// # Components
//
//   - app.go: Options, Runtime, New, EnsureLoggedIn, PendingError, WriteMetrics
//   - poller.go: StartRetrier, which waits for KerbalX to become reachable
//     and then replays the request retained after a connection failure
//
// # Retry Behavior
//
// StartRetrier probes the test connection endpoint with a HEAD request while a
// request is retained after a connection failure. Each failed probe doubles the
// wait (capped at 30 seconds). Once a probe answers, the retained request is
// sent again exactly once. The goroutine runs until its context ends.
//
// # Usage Example
//
//	rt, err := app.New(app.Options{ConfigPath: path})
//	if err != nil {
//		return err
//	}
//	if ok, err := rt.EnsureLoggedIn(ctx); err != nil || !ok {
//		return err
//	}
//	craft, _, err := rt.Client.FetchUsersCraft(ctx)
//	if msg := rt.PendingError(); msg != "" {
//		fmt.Fprintln(os.Stderr, msg)
//	}
package app
