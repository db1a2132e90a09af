package protocol

import (
	"fmt"
	"strings"
)

// ParseCommand turns a remote command string such as "edit main.go" into a
// Cmd. It understands the commands that make sense from outside a session.
func ParseCommand(s string) (Cmd, error) {
	verb, arg, _ := strings.Cut(strings.TrimSpace(s), " ")
	arg = strings.TrimSpace(arg)
	switch verb {
	case "edit", "e":
		if arg == "" {
			return nil, fmt.Errorf("need a file with edit: eg %q", "edit test.go")
		}
		return LoadFile{Path: arg}, nil
	case "write", "w":
		return WriteBuffer{Path: arg}, nil
	case "quit", "q":
		return Quit{}, nil
	case "kill":
		return Kill{}, nil
	case "clean":
		return CleanRender{}, nil
	case "search":
		if arg == "" {
			return nil, fmt.Errorf("need a query with search")
		}
		return Search{Query: arg}, nil
	case "":
		return nil, fmt.Errorf("empty command")
	}
	return nil, fmt.Errorf("unknown command %q", verb)
}
