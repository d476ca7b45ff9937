package luql

import (
	"github.com/alecthomas/repr"
)

// Dump renders a node tree in a readable form for debugging and test
// failure output.
func Dump(n Node) string {
	return repr.String(n, repr.Indent("  "), repr.OmitEmpty(true))
}
