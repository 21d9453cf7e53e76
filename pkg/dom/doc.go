// Package dom is kiln's live visual tree.
//
// A Document wraps golang.org/x/net/html nodes and adds what a browser tree
// has and the HTML node type lacks: properties, event listeners with
// bubbling dispatch, stable node ids, CSS selector queries (cascadia) and
// mutation observers. The reconciler mutates the tree only through Document
// methods, so an observer sees every structural change; the live server
// turns those observations into wire frames.
package dom
