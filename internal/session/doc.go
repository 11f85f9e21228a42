// Package session holds the authentication state shared by every KerbalX
// client in the process.
//
// # Overview
//
// A Session carries the resolved base URL, the opaque auth token, the
// display username and a single-slot error channel. The transport writes
// errors into the slot while it classifies responses; presentation code
// reads them with ConsumeError, which clears the slot so each error is
// surfaced at most once.
//
// # Concurrency Model
//
// All access goes through a sync.RWMutex:
//
//   - SetAuth, ClearAuth, SetError, ConsumeError: write lock
//   - Token, Username, LoggedIn, HasError, Snapshot: read lock
//
// The lock is never held across network I/O.
//
// # Usage Example
//
//	sess := session.New("https://kerbalx.com")
//	sess.URLTo("api/login") // "https://kerbalx.com/api/login"
//
//	if err, ok := sess.ConsumeError(); ok {
//		fmt.Println(err.Message)
//	}
package session
