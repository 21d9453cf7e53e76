package component

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"time"

	"golang.org/x/net/html"

	"github.com/vango-dev/kiln/pkg/dom"
	"github.com/vango-dev/kiln/pkg/reactive"
	"github.com/vango-dev/kiln/pkg/report"
	"github.com/vango-dev/kiln/pkg/template"
	"github.com/vango-dev/kiln/pkg/vdom"
)

// Mounter is the mount coordinator. It resolves targets and component
// references, creates instances and drives their lifecycle.
//
// A Mounter belongs to one loop. Apart from the Registry it is not safe for
// concurrent use.
type Mounter struct {
	doc      *dom.Document
	sched    *reactive.Scheduler
	registry *Registry
	eval     *template.Evaluator
	reporter report.Reporter
	observer report.Observer
	differ   vdom.Differ

	// depth counts nested traversals. Mounts and unmounts requested while
	// it is non-zero run when the outermost traversal ends.
	depth    int
	deferred []func()

	roots []*Instance

	// current is the instance being diffed, for duplicate key reports.
	current *Instance
}

// Option configures a Mounter.
type Option func(*Mounter)

// WithRegistry sets the registry string refs are resolved against.
func WithRegistry(r *Registry) Option {
	return func(m *Mounter) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithEvaluator shares a template evaluator, and its expression cache,
// between mounters.
func WithEvaluator(e *template.Evaluator) Option {
	return func(m *Mounter) {
		if e != nil {
			m.eval = e
		}
	}
}

// WithReporter sets the error sink. The default is the scheduler's.
func WithReporter(r report.Reporter) Option {
	return func(m *Mounter) {
		if r != nil {
			m.reporter = r
		}
	}
}

// WithObserver receives render timings.
func WithObserver(o report.Observer) Option {
	return func(m *Mounter) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithDuplicateKeyWarnings controls whether duplicate keys in a rendered
// list are reported. They always fall back to positional matching.
func WithDuplicateKeyWarnings(on bool) Option {
	return func(m *Mounter) {
		if !on {
			m.differ.OnDuplicateKey = nil
		}
	}
}

// NewMounter creates a mounter rendering into doc and batching through
// sched.
func NewMounter(doc *dom.Document, sched *reactive.Scheduler, opts ...Option) *Mounter {
	m := &Mounter{
		doc:      doc,
		sched:    sched,
		registry: NewRegistry(),
		reporter: sched.Reporter(),
		observer: report.NopObserver,
	}
	m.differ.OnDuplicateKey = m.duplicateKey
	for _, opt := range opts {
		opt(m)
	}
	if m.eval == nil {
		m.eval = template.NewEvaluator(nil)
	}
	return m
}

// Registry returns the mounter's registry.
func (m *Mounter) Registry() *Registry { return m.registry }

// Document returns the live document.
func (m *Mounter) Document() *dom.Document { return m.doc }

// Roots returns the mounted root instances.
func (m *Mounter) Roots() []*Instance {
	return append([]*Instance(nil), m.roots...)
}

// Handle is returned by Mount.
type Handle struct {
	inst *Instance
}

// Context returns the instance's context: the names its setup returned,
// hooks excluded.
func (h *Handle) Context() Data { return h.inst.data }

// Instance returns the mounted instance.
func (h *Handle) Instance() *Instance { return h.inst }

// Unmount tears the instance down. It is idempotent.
func (h *Handle) Unmount() { h.inst.m.unmount(h.inst) }

// Mount mounts ref into target. target is a CSS selector (first match
// wins) or a *html.Node. ref is a registry name, a *Definition or a
// Loader; loaders are called with ctx.
//
// Resolution and setup errors are returned and reported. Mount requested
// from inside a hook or a render runs setup immediately but renders once
// the current traversal has completed.
func (m *Mounter) Mount(ctx context.Context, target any, ref Ref, props map[string]any) (*Handle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	host, err := m.resolveTarget(target)
	if err != nil {
		m.reporter.Report(err)
		return nil, err
	}
	def, err := m.resolve(ctx, ref)
	if err != nil {
		m.reporter.Report(err)
		return nil, err
	}
	inst, err := m.create(ctx, nil, host, def, props)
	if err != nil {
		m.reporter.Report(err)
		return nil, err
	}
	m.roots = append(m.roots, inst)
	m.schedule(func() { m.attach(inst) })
	return &Handle{inst: inst}, nil
}

// UnmountAll unmounts every root instance.
func (m *Mounter) UnmountAll() {
	for _, inst := range m.Roots() {
		m.unmount(inst)
	}
}

func (m *Mounter) resolveTarget(target any) (*html.Node, *report.Error) {
	fail := func(err error) *report.Error {
		return &report.Error{Kind: report.KindRegistry, Code: report.CodeTargetNotFound, Err: err}
	}
	switch t := target.(type) {
	case *html.Node:
		if t == nil || !m.doc.Contains(t) {
			return nil, fail(ErrTargetNotFound)
		}
		return t, nil
	case string:
		n, err := m.doc.Query(t)
		if err != nil {
			return nil, fail(fmt.Errorf("%w: %q: %w", ErrTargetNotFound, t, err))
		}
		return n, nil
	default:
		return nil, fail(fmt.Errorf("%w: %T", ErrTargetNotFound, target))
	}
}

// resolve turns a reference into a validated definition.
func (m *Mounter) resolve(ctx context.Context, ref Ref) (*Definition, *report.Error) {
	var def *Definition
	switch r := ref.(type) {
	case string:
		d, ok := m.registry.Lookup(r)
		if !ok {
			return nil, &report.Error{
				Kind:      report.KindRegistry,
				Code:      report.CodeComponentNotFound,
				Component: r,
				Err:       fmt.Errorf("%w: %q", ErrNotFound, r),
			}
		}
		def = d
	case *Definition:
		def = r
	case Loader:
		d, err := r.Load(ctx)
		if err == nil && d == nil {
			err = errors.New("loader returned no definition")
		}
		if err != nil {
			return nil, &report.Error{
				Kind: report.KindRegistry,
				Code: report.CodeLoaderFailed,
				Err:  fmt.Errorf("%w: %w", ErrLoader, err),
			}
		}
		def = d
	default:
		return nil, &report.Error{
			Kind: report.KindRegistry,
			Code: report.CodeInvalidReference,
			Err:  fmt.Errorf("%w: %T", ErrInvalidRef, ref),
		}
	}
	if err := def.Validate(); err != nil {
		var rerr *report.Error
		if errors.As(err, &rerr) {
			return nil, rerr
		}
		return nil, &report.Error{Kind: report.KindRegistry, Code: report.CodeInvalidReference, Err: err}
	}
	return def, nil
}

// create builds an instance and runs its setup. Nothing is rendered yet.
func (m *Mounter) create(ctx context.Context, parent *Instance, host *html.Node, def *Definition, props map[string]any) (*Instance, *report.Error) {
	inst := &Instance{
		id:     reactive.NextID(),
		def:    def,
		m:      m,
		ctx:    ctx,
		parent: parent,
		host:   host,
		props:  maps.Clone(props),
	}
	if inst.props == nil {
		inst.props = map[string]any{}
	}

	raw, err := m.setup(inst)
	if err != nil {
		return nil, err
	}
	if err := inst.split(raw); err != nil {
		return nil, err
	}
	inst.subscribe()

	if def.Style != "" {
		m.doc.AddStyle(def.styleName(), def.Style)
	}
	return inst, nil
}

func (m *Mounter) setup(inst *Instance) (data map[string]any, rerr *report.Error) {
	if inst.def.Setup == nil {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			rerr = report.Recovered(report.KindSetup, report.CodeSetupFailed, r)
			rerr.Component = inst.def.Name
			rerr.Instance = inst.id
		}
	}()
	return inst.def.Setup(&SetupContext{inst: inst}), nil
}

// split separates lifecycle hooks from template data. Reserved names are
// always hooks and must hold functions.
func (i *Instance) split(raw map[string]any) *report.Error {
	i.data = make(Data, len(raw))
	for name, v := range raw {
		if !IsHookName(name) {
			i.data[name] = v
			continue
		}
		if v == nil {
			continue
		}
		if _, ok := v.(reactive.AnySignal); ok || !isFunc(v) {
			return &report.Error{
				Kind:      report.KindSetup,
				Code:      report.CodeReservedHook,
				Component: i.def.Name,
				Instance:  i.id,
				Hook:      name,
				Err:       fmt.Errorf("%w: %s is %T", ErrReservedHook, name, v),
			}
		}
		if i.hooks == nil {
			i.hooks = make(map[string]template.Callable)
		}
		i.hooks[name] = template.Adapt(v)
	}
	return nil
}

// =============================================================================
// Traversals
// =============================================================================

// traverse runs fn as a traversal. Work deferred during it runs after the
// outermost traversal returns.
func (m *Mounter) traverse(fn func()) {
	m.depth++
	func() {
		defer func() { m.depth-- }()
		fn()
	}()
	if m.depth > 0 {
		return
	}
	for len(m.deferred) > 0 {
		next := m.deferred[0]
		m.deferred[0] = nil
		m.deferred = m.deferred[1:]
		m.traverse(next)
	}
	m.deferred = nil
}

// schedule runs fn now, or after the current traversal.
func (m *Mounter) schedule(fn func()) {
	if m.depth > 0 {
		m.deferred = append(m.deferred, fn)
		return
	}
	m.traverse(fn)
}

// Traversing reports whether a render or hook is in progress.
func (m *Mounter) Traversing() bool {
	return m.depth > 0
}

// attach performs the initial render of a created instance.
func (m *Mounter) attach(inst *Instance) {
	if inst.state != stateCreated || inst.tree != nil {
		return
	}
	m.hook(inst, HookBeforeMount)
	if inst.state != stateCreated {
		return
	}

	if inst.parent == nil {
		for c := inst.host.FirstChild; c != nil; {
			next := c.NextSibling
			m.doc.Remove(c)
			c = next
		}
	}
	inst.tree = vdom.Root(inst.host)
	m.commitMount(inst)
}

// commitMount renders a created instance and, once the render succeeded,
// marks it mounted. A failed first render leaves the instance created; its
// next flush retries.
func (m *Mounter) commitMount(inst *Instance) {
	if !m.render(inst, report.PhaseMount) {
		return
	}
	inst.state = stateMounted
	inst.attached = true
	m.hook(inst, HookMount)
}

// update is the per-flush render of a mounted instance.
func (m *Mounter) update(inst *Instance) {
	if inst.state == stateCreated && inst.tree != nil {
		m.commitMount(inst)
		return
	}
	if inst.state != stateMounted {
		return
	}
	m.hook(inst, HookBeforeUpdate)
	if inst.state != stateMounted {
		return
	}
	if m.render(inst, report.PhaseUpdate) {
		m.hook(inst, HookUpdate)
	}
}

// render evaluates the template, patches the live tree and reconciles the
// child instances. An evaluation error leaves the live tree untouched.
func (m *Mounter) render(inst *Instance, phase report.Phase) bool {
	start := time.Now()
	stats := report.RenderStats{Component: inst.def.Name, Instance: inst.id, Phase: phase, Start: start}
	done := func(ok bool) bool {
		stats.Failed = !ok
		stats.Duration = time.Since(start)
		m.observer.ObserveRender(stats)
		return ok
	}

	next, err := m.evaluate(inst)
	if err != nil {
		m.report(inst, err)
		return done(false)
	}
	next.DOM = inst.host

	m.current = inst
	patches := m.differ.Diff(inst.tree, next)
	m.current = nil
	stats.Patches = len(patches)
	if err := vdom.Apply(m.doc, patches); err != nil {
		m.report(inst, &report.Error{Kind: report.KindReconcile, Code: report.CodePatchFailed, Err: err})
		if !m.rebuild(inst, next) {
			return done(false)
		}
	}
	inst.tree = next
	m.reconcileChildren(inst)
	return done(true)
}

// rebuild replaces the host's content with a fresh build of next after a
// patch failed partway. If that fails too the host is left empty.
func (m *Mounter) rebuild(inst *Instance, next *vdom.VNode) bool {
	for c := inst.host.FirstChild; c != nil; {
		following := c.NextSibling
		m.doc.Remove(c)
		c = following
	}
	if err := vdom.Apply(m.doc, vdom.Diff(vdom.Root(inst.host), next)); err != nil {
		m.report(inst, &report.Error{Kind: report.KindReconcile, Code: report.CodePatchFailed, Err: err})
		for c := inst.host.FirstChild; c != nil; {
			following := c.NextSibling
			m.doc.Remove(c)
			c = following
		}
		inst.tree = vdom.Root(inst.host)
		m.reconcileChildren(inst)
		return false
	}
	return true
}

func (m *Mounter) evaluate(inst *Instance) (tree *vdom.VNode, rerr *report.Error) {
	defer func() {
		if r := recover(); r != nil {
			tree = nil
			rerr = report.Recovered(report.KindEvaluation, report.CodeExpressionFailed, r)
		}
	}()

	children, err := inst.def.childSelectors()
	if err != nil {
		return nil, &report.Error{Kind: report.KindEvaluation, Code: report.CodeInvalidReference, Err: err}
	}
	tree, err = m.eval.Evaluate(template.Input{
		Markup:   inst.def.markup(inst.data),
		Table:    inst.table(),
		Children: children,
		Dispatch: func(h template.Handler, ev *dom.Event) { m.dispatch(inst, h, ev) },
	})
	if err != nil {
		return nil, evaluationError(err)
	}
	return tree, nil
}

func evaluationError(err error) *report.Error {
	e := &report.Error{Kind: report.KindEvaluation, Code: report.CodeExpressionFailed, Err: err}
	var terr *template.Error
	if errors.As(err, &terr) {
		e.Code = terr.Code
		e.Expr = terr.Expr
	}
	return e
}

// reconcileChildren mounts child instances for new placeholders, refreshes
// the props of kept ones and unmounts those whose placeholder is gone.
// Placeholders are visited in document order.
func (m *Mounter) reconcileChildren(inst *Instance) {
	seen := make(map[*html.Node]bool)
	for _, ph := range inst.tree.Components() {
		node := ph.DOM
		if node == nil {
			continue
		}
		seen[node] = true
		props := placeholderProps(ph)

		if child, ok := inst.children[node]; ok {
			child.props = props
			continue
		}

		def, rerr := m.resolve(inst.ctx, inst.def.Children[ph.Selector])
		if rerr != nil {
			rerr.Component = inst.def.Name
			rerr.Instance = inst.id
			m.reporter.Report(rerr)
			continue
		}
		child, rerr := m.create(inst.ctx, inst, node, def, props)
		if rerr != nil {
			m.reporter.Report(rerr)
			continue
		}
		inst.addChild(node, child)
		m.attach(child)
	}

	for _, child := range inst.Children() {
		if !seen[child.host] {
			inst.removeChild(child)
			m.teardown(child, false)
		}
	}
}

func placeholderProps(ph *vdom.VNode) map[string]any {
	props := make(map[string]any, len(ph.Attrs)+len(ph.Props))
	for _, a := range ph.Attrs {
		props[a.Key] = a.Value
	}
	for k, v := range ph.Props {
		props[k] = v
	}
	return props
}

// =============================================================================
// Unmount
// =============================================================================

// unmount tears inst down. Cancellation is synchronous; when a traversal is
// in progress the unmount hooks and the live-tree detach run after it.
func (m *Mounter) unmount(inst *Instance) {
	if inst.state == stateUnmounted {
		return
	}
	if m.depth > 0 {
		inst.cancel()
		m.deferred = append(m.deferred, func() { m.finish(inst) })
		return
	}
	m.traverse(func() { m.finish(inst) })
}

func (m *Mounter) finish(inst *Instance) {
	if inst.parent != nil {
		inst.parent.removeChild(inst)
	} else {
		for idx, r := range m.roots {
			if r == inst {
				m.roots = append(m.roots[:idx], m.roots[idx+1:]...)
				break
			}
		}
	}
	m.teardown(inst, true)
}

// teardown runs the unmount hook, releases subscriptions and tears the
// children down. detach also removes the rendered nodes from the host.
func (m *Mounter) teardown(inst *Instance, detach bool) {
	if inst.torn {
		return
	}
	inst.torn = true
	if inst.attached {
		m.hook(inst, HookUnmount)
	}
	inst.state = stateUnmounted
	m.sched.Cancel(inst)
	inst.release()

	for _, c := range inst.Children() {
		m.teardown(c, false)
	}
	inst.children = nil
	inst.order = nil

	if detach {
		for c := inst.host.FirstChild; c != nil; {
			next := c.NextSibling
			m.doc.Remove(c)
			c = next
		}
	}
	inst.tree = nil
}

// =============================================================================
// Hooks, handlers and reporting
// =============================================================================

func (m *Mounter) hook(inst *Instance, name string) {
	fn, ok := inst.hooks[name]
	if !ok {
		return
	}
	m.traverse(func() {
		defer func() {
			if r := recover(); r != nil {
				e := report.Recovered(report.KindHook, report.CodeHookFailed, r)
				e.Hook = name
				m.report(inst, e)
			}
		}()
		if _, err := fn(nil, nil); err != nil {
			m.report(inst, &report.Error{Kind: report.KindHook, Code: report.CodeHookFailed, Hook: name, Err: err})
		}
	})
}

// dispatch runs a bound handler against the instance's current data.
func (m *Mounter) dispatch(inst *Instance, h template.Handler, ev *dom.Event) {
	if inst.state != stateMounted {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e := report.Recovered(report.KindHandler, report.CodeHandlerFailed, r)
			e.Hook = h.Event
			e.Expr = h.Source
			m.report(inst, e)
		}
	}()
	if _, err := m.eval.Engine().Invoke(inst.table(), h, ev); err != nil {
		e := &report.Error{Kind: report.KindHandler, Code: report.CodeHandlerFailed, Hook: h.Event, Expr: h.Source, Err: err}
		var terr *template.Error
		if errors.As(err, &terr) {
			e.Code = terr.Code
		}
		m.report(inst, e)
	}
}

func (m *Mounter) duplicateKey(parent *vdom.VNode, key string) {
	e := &report.Error{
		Kind: report.KindReconcile,
		Code: report.CodeDuplicateKey,
		Err:  fmt.Errorf("duplicate key %q under <%s>; falling back to positional matching", key, parent.Tag),
	}
	if m.current != nil {
		m.report(m.current, e)
		return
	}
	m.reporter.Report(e)
}

func (m *Mounter) report(inst *Instance, e *report.Error) {
	e.Component = inst.def.Name
	e.Instance = inst.id
	m.reporter.Report(e)
}

func isFunc(v any) bool {
	return reflect.TypeOf(v).Kind() == reflect.Func
}
