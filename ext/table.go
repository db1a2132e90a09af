package ext

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/protocol"
)

// Instance is a module together with the state its Init returned.
type Instance struct {
	Module
	Path   string // artifact path, "" for static modules
	state  editor.State
	utils  *editor.Utils
	closed bool
}

// Static reports whether the instance was linked into the host.
func (in *Instance) Static() bool { return in.Path == "" }

// cleanup hands the state back to the module exactly once.
func (in *Instance) cleanup() {
	if in.closed {
		return
	}
	in.closed = true
	in.Cleanup(in.state)
	in.state = nil
}

// Table holds the live module instances. It is owned by the event loop and
// is not safe for concurrent use.
type Table struct {
	loader    *Loader
	log       logrus.FieldLogger
	instances map[string]*Instance
	order     []string
}

// NewTable returns an empty table loading artifacts with loader.
func NewTable(loader *Loader, log logrus.FieldLogger) *Table {
	return &Table{
		loader:    loader,
		log:       log,
		instances: map[string]*Instance{},
	}
}

// AddStatic initialises a module linked into the host binary.
func (t *Table) AddStatic(gd *editor.GlobalData, m Module) error {
	if err := m.validate(); err != nil {
		return err
	}
	t.install(gd, &Instance{Module: m})
	return nil
}

// Load loads the artifact at path and initialises it against gd. If a
// module of the same name is already installed it is replaced: the
// artifact is resolved first, then the old state is cleaned up, then the
// new module is initialised. A failed load leaves the old module running.
func (t *Table) Load(gd *editor.GlobalData, path string) error {
	m, err := t.loader.Load(path)
	if err != nil {
		return err
	}
	t.install(gd, &Instance{Module: m, Path: path})
	return nil
}

func (t *Table) install(gd *editor.GlobalData, in *Instance) {
	log := t.log.WithField("module", in.Name)
	if old, ok := t.instances[in.Name]; ok {
		old.cleanup()
		log.Info("module reloaded")
	} else {
		t.order = append(t.order, in.Name)
		sort.Strings(t.order)
		log.Info("module loaded")
	}
	in.utils = editor.NewUtils(log)
	in.state = in.Init(gd)
	t.instances[in.Name] = in
}

// Get returns the instance installed under name.
func (t *Table) Get(name string) (*Instance, bool) {
	in, ok := t.instances[name]
	return in, ok
}

// Names lists installed modules in call order.
func (t *Table) Names() []string {
	return append([]string(nil), t.order...)
}

// Len returns the number of installed modules.
func (t *Table) Len() int { return len(t.order) }

// Update hands msg to every module, in name order. The order is part of the
// contract: Render layers paint in the same order, so a module named later
// draws over one named earlier.
func (t *Table) Update(gd *editor.GlobalData, msg editor.Msg, emit editor.Emit) {
	for _, name := range t.order {
		in := t.instances[name]
		in.Update(gd, msg, in.utils, emit, in.state)
	}
}

// Render lets every module paint bb for client, in name order.
func (t *Table) Render(gd *editor.GlobalData, client protocol.ClientIndex, bb *backbuffer.BackBuffer) {
	for _, name := range t.order {
		in := t.instances[name]
		in.Render(gd, client, bb, in.utils, in.state)
	}
}

// Close cleans up every module. Calling it again does nothing.
func (t *Table) Close() {
	for _, name := range t.order {
		t.instances[name].cleanup()
	}
}
