// Package graph builds the dependency graph of a root recipe or of a set of
// command-line requirements.
//
// # Algorithm
//
// [Builder.Build] walks the graph breadth-first from the root. Each node
// goes through the states Pending, Evaluating, Expanded and Finalized; a
// failure moves it to Error and aborts the whole build, so callers never see
// a partial graph.
//
// A node is configured before it is queued. Its options are the recipe
// defaults, overlaid in order by the options of the edge that reached it, by
// the dependency options its ancestors imposed (the closest to the root
// last), and by the profile and command line. The recipe's Configure hook
// then runs on copies; it may change or remove values, except that it cannot
// change a value pinned with an important assignment. Only then is the node
// identity frozen: the reference without revision, the context, the options
// and the settings. A requirement whose configuration matches an existing
// node reuses it.
//
// When a node is dequeued its recipe declares its requirements, which are
// visited in declaration order:
//
//   - ranges are resolved through [ranges.Resolver]; a range that an
//     existing node for the same name already satisfies reuses that node;
//   - a requirement on a package already on the path from the root is a
//     loop (GRAPH_LOOP);
//   - a requirement on a different reference than the one already chosen
//     for the same name is a diamond conflict (VERSION_CONFLICT) unless the
//     requirement is an override or is forced, in which case the existing
//     edges are redirected to the new reference;
//   - overrides declared by an ancestor replace the reference before any of
//     this happens.
//
// # Visibility
//
// A requirement that is not visible (private, tool and test requirements)
// opens a private scope: diamonds are detected per scope, so a private
// dependency never conflicts with the visible graph. Identical
// configurations are still shared between scopes.
package graph
