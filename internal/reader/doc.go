// Package reader implements a reading session: the page navigator, the token-gated
// translation controller and the narration player that follows along page by page.
//
// # Components
//
//   - [Navigator] : Owns the current page. Manual navigation and narration both write to it,
//     but only the driver that currently holds it is obeyed.
//   - [Translator] : Caches translations per page and runs at most one gateway call per page,
//     charging one token per call through the [Identity].
//   - [Player] : Generates a narration playlist for a chapter and voices it segment by segment
//     through a [services.Synthesizer], moving the navigator to the page being narrated.
//   - [Session] : Wires the three together for one chapter and tears them down on Close.
//
// # Concurrency
//
// Gateway calls and speech callbacks complete on their own goroutines. Each component guards its
// state with a mutex and every asynchronous completion carries a [Ticket]; a completion whose
// ticket has been revoked is ignored. Locks are only ever taken in the order Player, Navigator,
// Translator.
//
// Switching utterances always revokes the live ticket before stopping the backend and only then
// dispatches the next one, so a late completion of the old utterance can never advance playback.
//
// # Events
//
// State changes are published as [Event] values on [Session.Events]. Sends never block; a slow
// consumer misses intermediate events and should read current state from the components.
package reader
