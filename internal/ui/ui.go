package ui

import (
	"fmt"
	"io"

	"github.com/felixgeelhaar/dejaview/internal/search"
)

// UI abstracts the surface that renders search output.
type UI interface {
	UpdateStatus(status string)
	ShowResults(results []*search.Result)
	Log(msg string)
}

type SilentUI struct{}

func (s SilentUI) UpdateStatus(status string)           {}
func (s SilentUI) ShowResults(results []*search.Result) {}
func (s SilentUI) Log(msg string)                       {}

// Console renders plainly to a writer; used by the non-interactive CLI.
type Console struct {
	Out io.Writer
}

func (c Console) UpdateStatus(status string) {
	fmt.Fprintln(c.Out, status)
}

func (c Console) ShowResults(results []*search.Result) {
	if len(results) == 0 {
		fmt.Fprintln(c.Out, "No memories matched.")
		return
	}
	for i, r := range results {
		fmt.Fprintf(c.Out, "%d. %s [%d%% %s]\n   %s\n", i+1, r.Title, r.Confidence, r.Method, r.URL)
		if r.Reason != "" {
			fmt.Fprintf(c.Out, "   %s\n", r.Reason)
		}
	}
}

func (c Console) Log(msg string) {
	fmt.Fprintln(c.Out, msg)
}
