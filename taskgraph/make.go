package taskgraph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/genome-vendor/strelka/workflow"
)

// Makefile emission.  The same dependency relation is expressible in two
// forms: WriteMake enumerates one rule per task (consumable by any
// rule-based executor, no GNU make features beyond plain rules), and
// WriteMakeTemplate instantiates one rule per task level over the
// chromosome and bin-ID variable sets using define/call/eval.  Recipes touch
// the completion marker as a separate final line, so the marker appears only
// after the task command exited zero and its outputs are fully written.

const makeHeader = `SHELL := /bin/bash
.DELETE_ON_ERROR:

all: %s

.PHONY: all
`

// WriteMake emits the fully enumerated Makefile.
func (g *Graph) WriteMake(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fin := g.Task(FinishTaskID)
	if fin == nil {
		return fmt.Errorf("taskgraph: graph has no finish task")
	}
	fmt.Fprintf(bw, makeHeader, fin.Marker)
	for _, t := range g.Tasks {
		deps := make([]string, len(t.Deps))
		for i, dep := range t.Deps {
			deps[i] = g.byID[dep].Marker
		}
		fmt.Fprintf(bw, "\n%s:", t.Marker)
		for _, dep := range deps {
			fmt.Fprintf(bw, " %s", dep)
		}
		fmt.Fprintf(bw, "\n\t%s\n\ttouch $@\n", t.Cmd.Shell())
	}
	return bw.Flush()
}

// WriteMakeTemplate emits the templated Makefile for the same
// configuration.  The expanded rule set describes the identical dependency
// relation as WriteMake's output.
func WriteMakeTemplate(w io.Writer, cfg *workflow.Config) error {
	bw := bufio.NewWriter(w)
	cfgPath := cfg.ConfigPath()

	fmt.Fprintf(bw, "SHELL := /bin/bash\n.DELETE_ON_ERROR:\n\n")
	fmt.Fprintf(bw, "CHROMS := %s\n", strings.Join(cfg.Derived.ChromOrder, " "))
	for _, chrom := range cfg.Derived.ChromOrder {
		bins, err := cfg.ChromBins(chrom)
		if err != nil {
			return err
		}
		ids := make([]string, len(bins))
		for i, b := range bins {
			ids[i] = strconv.Itoa(b.ID)
		}
		fmt.Fprintf(bw, "BINS_%s := %s\n", chrom, strings.Join(ids, " "))
	}
	fmt.Fprintf(bw, "\nall: results/%s\n\n.PHONY: all\n\n", workflow.CompleteMarker)

	// One template per task level; $(1) is the chromosome, $(2) the bin ID.
	// make expands $(...) references before the shell sees the recipe, so the
	// quoting Cmd.Shell applies to them is transparent.
	fmt.Fprintf(bw, "define call_task\n%s:\n\t%s\n\ttouch $$@\nendef\n\n",
		templMarker("chromosomes/$(1)/bins/$(2)"),
		callCmd(cfg, cfgPath, "$(1)", "$(2)").Shell())
	fmt.Fprintf(bw, "define filter_task\n%s: $(foreach b,$(BINS_$(1)),%s)\n\t%s\n\ttouch $$@\nendef\n\n",
		templMarker("chromosomes/$(1)"),
		templMarker("chromosomes/$(1)/bins/$(b)"),
		filterCmd(cfg, cfgPath, "$(1)").Shell())
	fmt.Fprintf(bw, "%s: $(foreach c,$(CHROMS),%s)\n\t%s\n\ttouch $@\n\n",
		templMarker("results"),
		templMarker("chromosomes/$(c)"),
		finishCmd(cfg, cfgPath).Shell())

	fmt.Fprintf(bw, "$(foreach c,$(CHROMS),$(eval $(call filter_task,$(c))))\n")
	fmt.Fprintf(bw, "$(foreach c,$(CHROMS),$(foreach b,$(BINS_$(c)),$(eval $(call call_task,$(c),$(b)))))\n")
	return bw.Flush()
}

func templMarker(dir string) string { return dir + "/" + workflow.CompleteMarker }
