// Package ssr drives server-side rendering of trees that contain code-split
// sub-trees.
//
// A render primitive cannot await a module that is still loading, so the
// Loop renders the whole tree repeatedly. Each round, split placeholders
// register with the request's Registry: splits whose module is already in
// the process cache render immediately and their markup is frozen; the rest
// start loading. Between rounds the Loop waits (bounded) for loads to land,
// then renders again.
//
// The loop ends in one of four terminal states:
//
//   - Stable: every registered split is ready.
//   - BudgetExhausted: MaxRounds renders happened and splits are still
//     pending. Not an error; the best-known markup is emitted and the client
//     finishes the deferred fragments.
//   - NoProgress: a round discovered no new split and resolved none.
//   - RoundLimitZero: MaxRounds is 0, nothing is rendered.
//
// # Collaborators
//
// The view library is consumed through three narrow interfaces: Renderable
// produces markup from a RenderContext, StateSource produces a serializable
// snapshot of application state, HeadCollector produces head-tag metadata.
//
// # Usage
//
//	cache := splits.New[ssr.Renderable]()
//	cache.MustDefine("comments", "comments", loadComments)
//
//	loop := ssr.NewLoop(ssr.Config{Cache: cache, MaxRounds: 10})
//	rc := ssr.NewRenderContext(r, store)
//	res, err := loop.Run(r.Context(), app, rc)
package ssr
