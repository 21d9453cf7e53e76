// Package component implements kiln's component instances and the mount
// coordinator.
//
// A Definition pairs a setup function with a template:
//
//	counter := &component.Definition{
//		Name: "counter",
//		Setup: func(ctx *component.SetupContext) map[string]any {
//			count := reactive.NewSignal(ctx, 0)
//			return map[string]any{
//				"count": count,
//				"inc":   func() { count.Update(func(n int) int { return n + 1 }) },
//			}
//		},
//		Markup: `<button @click="inc">${count}</button>`,
//	}
//
//	handle, err := mounter.Mount(ctx, "#app", counter, nil)
//
// Setup runs once. Entries named beforeMount, mount, beforeUpdate, update
// and unmount are lifecycle hooks; a non-function under one of those names
// fails the mount. Everything else is the instance's data, resolved by the
// template on every render and by handlers when events fire.
//
// The instance subscribes to the signals in its data. A write enqueues the
// instance with the scheduler; the flush runs beforeUpdate, evaluates the
// template, diffs it against the previous tree, patches the document,
// reconciles child instances and runs update. An evaluation error is
// reported and leaves the live tree as it was.
//
// # Children
//
// Definition.Children maps selectors to child components. After every
// render the placeholders matching a selector are visited in document
// order: new ones are mounted, kept ones get fresh props, and instances
// whose placeholder disappeared are unmounted. Attributes and :prop values
// of a placeholder are the child's props. A child emits events on its
// placeholder with SetupContext.Emit, and the parent listens with @name.
//
// # Traversals
//
// Mount and Unmount requested from inside a hook, handler-triggered render
// or another mount run their setup or cancellation immediately and defer
// rendering, hooks and detaching until the outermost traversal finishes.
// Unmount always cancels pending renders and releases subscriptions before
// it returns.
package component
