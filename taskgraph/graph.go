// Package taskgraph builds the three-level task dependency graph of one run
// (genome finish <- per-chromosome filter <- per-bin call) and emits it as a
// Makefile any make-compatible scheduler can execute.
//
// The graph itself is a plain data structure: nodes, dependency edges, and a
// satisfied/unsatisfied status resolved through the Status interface.
// Completion-marker files are one backing for Status (FileMarkers), not part
// of the graph logic.  A task whose marker exists is skipped by the
// scheduler; a failed command never reaches the marker-touch step, so its
// dependents stay blocked and a re-invocation of the same graph resumes
// exactly where the failure occurred.
package taskgraph

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/genome-vendor/strelka/runner"
	"github.com/genome-vendor/strelka/workflow"
)

// Kind distinguishes the three task levels.
type Kind int

const (
	// Call invokes the external variant-calling engine over one bin.
	Call Kind = iota
	// Filter aggregates and filters all bins of one chromosome.
	Filter
	// Finish consolidates all chromosomes into genome-wide outputs.
	Finish
)

func (k Kind) String() string {
	switch k {
	case Call:
		return "call"
	case Filter:
		return "filter"
	case Finish:
		return "finish"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Task is one immutable node of the graph.  Marker is the completion-marker
// path relative to the run directory.
type Task struct {
	ID     string
	Kind   Kind
	Chrom  string // empty for Finish
	Bin    int    // -1 except for Call
	Deps   []string
	Cmd    runner.Cmd
	Marker string
}

// Graph is the dependency graph of one run.  Tasks is in dependency order:
// every task appears after all of its dependencies.
type Graph struct {
	RunDir string
	Tasks  []*Task
	byID   map[string]*Task
}

// Task returns the task with the given ID, or nil.
func (g *Graph) Task(id string) *Task { return g.byID[id] }

// CallTaskID names the call task of one bin.
func CallTaskID(chrom string, bin int) string {
	return "call." + chrom + "." + strconv.Itoa(bin)
}

// FilterTaskID names the filter task of one chromosome.
func FilterTaskID(chrom string) string { return "filter." + chrom }

// FinishTaskID names the terminal consolidation task.
const FinishTaskID = "finish"

// Build constructs the graph from the persisted configuration: one finish
// task depending on one filter task per chromosome (in canonical order),
// each depending on one call task per bin (ascending bin ID).  Bin lists are
// recomputed from chromosome length and bin size, never read from disk.
func Build(cfg *workflow.Config) (*Graph, error) {
	g := &Graph{RunDir: cfg.Derived.RunDir, byID: map[string]*Task{}}
	cfgPath := cfg.ConfigPath()
	var filterIDs []string
	for _, chrom := range cfg.Derived.ChromOrder {
		bins, err := cfg.ChromBins(chrom)
		if err != nil {
			return nil, err
		}
		var callIDs []string
		for _, bin := range bins {
			t := &Task{
				ID:     CallTaskID(chrom, bin.ID),
				Kind:   Call,
				Chrom:  chrom,
				Bin:    bin.ID,
				Cmd:    callCmd(cfg, cfgPath, chrom, strconv.Itoa(bin.ID)),
				Marker: relMarker(cfg, cfg.CallMarker(chrom, bin.ID)),
			}
			if err := g.add(t); err != nil {
				return nil, err
			}
			callIDs = append(callIDs, t.ID)
		}
		ft := &Task{
			ID:     FilterTaskID(chrom),
			Kind:   Filter,
			Chrom:  chrom,
			Bin:    -1,
			Deps:   callIDs,
			Cmd:    filterCmd(cfg, cfgPath, chrom),
			Marker: relMarker(cfg, cfg.FilterMarker(chrom)),
		}
		if err := g.add(ft); err != nil {
			return nil, err
		}
		filterIDs = append(filterIDs, ft.ID)
	}
	fin := &Task{
		ID:     FinishTaskID,
		Kind:   Finish,
		Bin:    -1,
		Deps:   filterIDs,
		Cmd:    finishCmd(cfg, cfgPath),
		Marker: relMarker(cfg, cfg.FinishMarker()),
	}
	if err := g.add(fin); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) add(t *Task) error {
	if _, dup := g.byID[t.ID]; dup {
		return fmt.Errorf("taskgraph: duplicate task %s", t.ID)
	}
	for _, dep := range t.Deps {
		if _, ok := g.byID[dep]; !ok {
			return fmt.Errorf("taskgraph: task %s depends on unknown task %s", t.ID, dep)
		}
	}
	g.byID[t.ID] = t
	g.Tasks = append(g.Tasks, t)
	return nil
}

func relMarker(cfg *workflow.Config, abs string) string {
	rel, err := filepath.Rel(cfg.Derived.RunDir, abs)
	if err != nil {
		// Markers are always constructed under RunDir.
		panic(err)
	}
	return rel
}

func callCmd(cfg *workflow.Config, cfgPath, chrom, bin string) runner.Cmd {
	args := []string{"-config", cfgPath, "-chrom", chrom, "-bin", bin}
	if extra := strings.Fields(cfg.User.ExtraCallerArgs); len(extra) != 0 {
		args = append(args, extra...)
	}
	return runner.Cmd{Path: cfg.Derived.CallerBin, Args: args}
}

func filterCmd(cfg *workflow.Config, cfgPath, chrom string) runner.Cmd {
	return runner.Cmd{Path: cfg.Derived.WorkflowBin, Args: []string{"filter", "-config", cfgPath, "-chrom", chrom}}
}

func finishCmd(cfg *workflow.Config, cfgPath string) runner.Cmd {
	return runner.Cmd{Path: cfg.Derived.WorkflowBin, Args: []string{"finish", "-config", cfgPath}}
}

// Status resolves whether a task has already completed.
type Status interface {
	Satisfied(t *Task) (bool, error)
}

// FileMarkers backs Status with completion-marker files under Root.
type FileMarkers struct {
	Root string
}

// Satisfied reports whether the task's marker file exists.
func (m FileMarkers) Satisfied(t *Task) (bool, error) {
	_, err := os.Stat(filepath.Join(m.Root, t.Marker))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Pending returns, in dependency order, every task that a re-invocation of
// the graph would execute: tasks whose own status is unsatisfied, plus all
// of their transitive dependents regardless of marker state.
func (g *Graph) Pending(st Status) ([]*Task, error) {
	pending := make(map[string]bool, len(g.Tasks))
	var out []*Task
	for _, t := range g.Tasks {
		run := false
		for _, dep := range t.Deps {
			if pending[dep] {
				run = true
				break
			}
		}
		if !run {
			done, err := st.Satisfied(t)
			if err != nil {
				return nil, err
			}
			run = !done
		}
		if run {
			pending[t.ID] = true
			out = append(out, t)
		}
	}
	return out, nil
}
