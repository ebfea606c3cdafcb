package fmtt

import (
	"errors"
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
)

// PrintErrChain walks an error chain and prints each layer with its type.
// Joined errors are walked depth first.
func PrintErrChain(w io.Writer, err error) {
	if err == nil {
		fmt.Fprintln(w, "<nil>")
		return
	}
	printChain(w, err, 0, "")
}

func printChain(w io.Writer, err error, i int, indent string) int {
	for e := err; e != nil; {
		fmt.Fprintf(w, "%s[%d] %T: %v\n", indent, i, e, e)
		i++

		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, sub := range j.Unwrap() {
				i = printChain(w, sub, i, indent+"  ")
			}
			return i
		}
		e = errors.Unwrap(e)
	}
	return i
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
	MaxDepth:                4,
}

// DumpErrChain prints a spew dump of every layer in the chain.
func DumpErrChain(w io.Writer, err error) {
	for i := 0; err != nil; err = errors.Unwrap(err) {
		fmt.Fprintf(w, "[%d] %T\n", i, err)
		dumpConfig.Fdump(w, err)
		i++
	}
}
