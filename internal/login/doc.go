// Package login coordinates the "ensure authenticated" sequence shared by
// every KerbalX client in the process.
//
// A sequence first tries the persisted token and, if that is rejected,
// prompts for credentials until a login succeeds or the user cancels.
// Concurrent callers queue a callback keyed by their identity and are all
// released, in registration order, when the sequence ends. Only the first
// caller starts a sequence, so the prompt is shown once no matter how many
// clients ask. The sequence runs on a context owned by the orchestrator: a
// caller whose context ends only gives up its own callback, and the sequence
// is abandoned when no callers remain.
//
//	Idle -> CheckingToken -> Authenticated
//	                      -> NeedsCredentials -> CredentialsSubmitted -> Authenticated
//	                                                                  -> Failed -> NeedsCredentials
//	NeedsCredentials -- cancel --> Idle
package login
