package protocol

type reloadable struct {
	V int
}

func (reloadable) Kind() string { return "reloadable" }

// ReloadableV1 stands in for a module command registered by the first build
// of a module.
var ReloadableV1 Cmd = reloadable{V: 1}
