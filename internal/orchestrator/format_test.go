package orchestrator

import (
	"bytes"
	"go/format"
	"os"
	"testing"
)

func TestSourceIsGofmtClean(t *testing.T) {
	for _, name := range []string{"orchestrator.go", "state.go", "summary.go"} {
		src, err := os.ReadFile(name)
		if err != nil {
			t.Fatal(err)
		}
		formatted, err := format.Source(src)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !bytes.Equal(src, formatted) {
			t.Errorf("%s is not gofmt-formatted", name)
		}
	}
}
