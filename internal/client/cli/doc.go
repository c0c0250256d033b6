// Package cli provides the interactive command-line client for user
// accounts.
//
// It wires configuration, the local session database, the backend and the
// session and profile controllers into a REPL. Typical flow: a splash banner
// is shown until the session state is known, then the commands of the
// reachable screens are accepted:
//
//   - Login / Register while signed out
//   - Home, profile refresh, profile editing and avatars while signed in
//   - Employee list administration
//   - Logout
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
