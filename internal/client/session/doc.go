// Package session gates which screens are reachable from the current
// authentication state.
//
// A Machine starts in Unknown behind a splash screen. The splash stays up
// until both the identity source has reported a state and the minimum splash
// duration has elapsed. After that the reachable group is Main ({Home,
// EditProfile}) when a session exists and Auth ({Login, Register}) otherwise.
// Subscribers hear only about changes of the reachable group, or of the
// identity while inside Main.
package session
