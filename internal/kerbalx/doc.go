// Package kerbalx implements the authenticated request pipeline used to talk
// to KerbalX.
//
// # Overview
//
// Requests are built as immutable Request values, dispatched by a Transport
// on their own goroutine, and classified by status code when they finish.
// Classification mutates the shared session.Session (auth token, last error)
// and decides whether the caller's ResultFunc runs.
//
// # Components
//
//   - request.go: Request builders (Get, Head, Post, PostMultipart) and the
//     empty-token header guard
//   - transport.go: asynchronous dispatch, Call handles, retry slot, Probe
//   - classify.go: status code policy
//   - registry.go, client.go: per-identity clients sharing one transport
//   - auth.go: credential login, token login, logout
//   - craft.go, geocache.go, general.go: typed endpoint wrappers
//
// # Classification
//
//	connection failure  -> ConnectionFailed; request retained for Retry; no callback
//	500                 -> ServerError(message); callback runs
//	426                 -> UpgradeRequired(upgrade_message); no callback
//	401 (default)       -> ServerError(auth failed); forced logout; no callback
//	401 (suppressed)    -> callback runs; session untouched
//	200, 400, 422       -> callback runs; session untouched
//	anything else       -> ServerError("Unknown Error!!" + body); callback runs
//
// Calls that skip the callback still resolve their *Call with an error:
// ErrConnectionFailed, ErrAuthFailed or *UpgradeRequiredError.
//
// # Usage Example
//
//	sess := session.New(cfg.BaseURL())
//	transport := kerbalx.NewTransport(sess, kerbalx.TransportOptions{Logger: log})
//	registry := kerbalx.NewRegistry(transport, kerbalx.RegistryOptions{Tokens: store})
//	client := registry.Register(kerbalx.NewIdentity("MyMod", "1.0.0"))
//
//	craft, status, err := client.FetchUsersCraft(ctx)
package kerbalx
