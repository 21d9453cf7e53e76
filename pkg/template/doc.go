// Package template evaluates kiln component markup into vdom trees.
//
// Markup is ordinary HTML with a small set of additions:
//
//	<p class="count-${count}">Count: ${count}</p>
//	<li key="${item.ID}">...</li>
//	<input :value="name" @input="rename(event.Value)">
//	<button @click="inc">+</button>
//
// ${expr} is evaluated with expr-lang/expr against the component's
// resolution table and stringified into text or attribute values. Write
// \${ for a literal "${".
//
// @event binds a handler by name, or by an inline call whose arguments are
// evaluated when the event fires. The triggering event is available to the
// arguments as event. Handlers are resolved during evaluation but never
// invoked by it.
//
// :prop attaches a live value as a property instead of an attribute. The
// value is the expression in the attribute, or the single ${} it holds. An
// empty :prop is true.
//
// key and :key set the node's reconciliation key.
//
// Attribute and tag names are case-insensitive and normalized to lower
// case. Whitespace-only text is dropped outside pre and textarea.
//
// Elements that match one of the component's child selectors become
// component placeholders. Their content is skipped and is never evaluated.
//
// Any expression, handler or markup error fails the whole pass with an
// *Error carrying the report code for it.
package template
