// Package loader builds component definitions from declarative documents.
//
// A document is YAML or TOML:
//
//	name: counter
//	template: |
//	  <button @click="inc">+</button><span>${count}</span>
//	state:
//	  count: 0
//	actions:
//	  inc:
//	    set: count
//	    expr: count + 1
//	  add:
//	    params: [n]
//	    set: count
//	    expr: count + n
//	hooks:
//	  mount: inc
//
// State entries become signals owned by the instance. An action evaluates
// its expression against the current state, the instance props (as props),
// its parameters and the triggering event (as event), then writes the
// result to the signal named by set and, when emit is given, emits the
// result to the parent. Documents are read from a directory (Dir) or from
// an S3 bucket (S3Source); both hand out lazy component.Loader values.
package loader
