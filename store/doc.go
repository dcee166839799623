// Package store implements a centralized, hierarchical, mutation-disciplined
// state container: a single tree of modules, each owning a slice of
// application state plus the mutations, actions, and getters that operate
// on that slice.
//
// # Architecture
//
// A Store is built from a nested ModuleConfig tree. Installation flattens
// the tree into a single namespace-qualified registry:
//
//   - Mutations and actions append to ordered handler lists; multiple
//     modules may register the same qualified type and all handlers run
//     in registration order (pre-order over the module tree).
//   - Getters register a single function per qualified key; duplicates
//     are logged and the first registrant wins.
//   - Each module receives a local context that scopes dispatch, commit,
//     getters, and state to its own namespace while routing through the
//     root registry.
//
// Structural changes (RegisterModule, UnregisterModule, HotUpdate) discard
// and rebuild the registry and local contexts wholesale; module state
// values survive every rebuild.
//
// # Mutation discipline
//
// State is only ever written inside a committed mutation. Commits run
// synchronously: all handlers for the type execute under the committing
// guard, then commit subscribers observe the result before any other
// commit can start. Dispatches are asynchronous orchestration: handlers
// may block, multiple handlers for one type run concurrently and join
// with fail-fast semantics, and before/after/error subscribers bracket
// every dispatch.
//
// # Concurrency model
//
// A read-write mutex guards the state tree: write-held during sanctioned
// writes, read-held during getter evaluation and scoped state reads. A
// separate commit mutex serializes each commit's handler execution and
// subscriber notification end to end, so no commit interleaves between
// another commit's mutations and its notification. Subscribers therefore
// must not commit or dispatch synchronously from their callbacks.
//
// Handlers receive live State maps. Callers that retain a State value
// across commits are responsible for their own synchronization.
//
// # Error handling
//
// Configuration problems fail fast with a ConfigError before any handler
// runs. Committing or dispatching an unregistered type is logged and
// degrades to a no-op; it never panics or returns an error. Subscriber
// panics are recovered and logged without interrupting the commit or
// dispatch they were observing. An action's error propagates to the
// dispatch caller after error subscribers (and the devtools hook, when
// configured) have been notified. No failure makes the Store unusable.
package store
