// Package fixtures validates directories of adventure JSON fixtures: each
// file is decoded into the domain model and its graph is checked.
package fixtures

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"adventure-editor/adventure"
	"adventure-editor/player"
	"adventure-editor/simulator"
)

// ResultSuffix names the report written next to a fixture.
const ResultSuffix = "_result.json"

// suggestDepth bounds the path suggestions counted per fixture.
const suggestDepth = 5

// ErrNoFixtures is returned when a directory holds no fixture.
var ErrNoFixtures = errors.New("no fixtures found")

// Runner validates the fixtures of a directory.
type Runner struct {
	dir          string
	out          io.Writer
	writeResults bool
}

// FileResult is the outcome of one fixture.
type FileResult struct {
	Filename  string            `json:"filename"`
	CheckedAt string            `json:"checked_at"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Issues    []adventure.Issue `json:"issues,omitempty"`
	Adventure *AdventureOutput  `json:"adventure,omitempty"`
}

// AdventureOutput describes a fixture that decoded.
type AdventureOutput struct {
	Title          string   `json:"title"`
	NodeCount      int      `json:"node_count"`
	LinkCount      int      `json:"link_count"`
	RootNodeID     *int     `json:"root_node_id"`
	Unreachable    []int    `json:"unreachable,omitempty"`
	DanglingLinks  []int    `json:"dangling_links,omitempty"`
	SuggestedPaths int      `json:"suggested_paths"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Summary sums up a run.
type Summary struct {
	Dir        string `json:"dir"`
	TotalFiles int    `json:"total_files"`
	Passed     int    `json:"passed"`
	Failed     int    `json:"failed"`
	Warnings   int    `json:"warnings"`
	Duration   string `json:"duration"`
}

// NewRunner creates a runner over dir printing to out. With writeResults,
// each fixture gets a JSON report next to it.
func NewRunner(dir string, out io.Writer, writeResults bool) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{dir: dir, out: out, writeResults: writeResults}
}

// Run validates every fixture of the directory, recursively.
func (r *Runner) Run() (*Summary, []FileResult, error) {
	start := time.Now()

	if _, err := os.Stat(r.dir); err != nil {
		return nil, nil, fmt.Errorf("fixture dir: %w", err)
	}
	files, err := r.findFixtures()
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w in %s", ErrNoFixtures, r.dir)
	}

	summary := &Summary{Dir: r.dir, TotalFiles: len(files)}
	results := make([]FileResult, 0, len(files))

	fmt.Fprintf(r.out, "Found %d fixtures in %s\n", len(files), r.dir)
	fmt.Fprintln(r.out, strings.Repeat("-", 50))

	for _, file := range files {
		result := CheckFile(file)
		results = append(results, result)

		if result.Success {
			summary.Passed++
			a := result.Adventure
			fmt.Fprintf(r.out, "[OK] %s: %q, %d nodes, %d links\n", result.Filename, a.Title, a.NodeCount, a.LinkCount)
			for _, w := range a.Warnings {
				summary.Warnings++
				fmt.Fprintf(r.out, "     warning: %s\n", w)
			}
		} else {
			summary.Failed++
			fmt.Fprintf(r.out, "[FAIL] %s: %s\n", result.Filename, result.Error)
			for _, issue := range result.Issues {
				fmt.Fprintf(r.out, "     %s: %s\n", issue.Path, issue.Message)
			}
		}

		if r.writeResults {
			path := strings.TrimSuffix(file, filepath.Ext(file)) + ResultSuffix
			if err := saveJSON(path, result); err != nil {
				fmt.Fprintf(r.out, "     cannot write report: %v\n", err)
			}
		}
	}

	summary.Duration = time.Since(start).String()

	fmt.Fprintln(r.out, strings.Repeat("=", 50))
	fmt.Fprintf(r.out, "Fixtures: %d  passed: %d  failed: %d  warnings: %d  (%s)\n",
		summary.TotalFiles, summary.Passed, summary.Failed, summary.Warnings, summary.Duration)
	return summary, results, nil
}

// findFixtures lists the *.json files under the directory, skipping
// reports written by earlier runs.
func (r *Runner) findFixtures() ([]string, error) {
	var files []string
	err := filepath.WalkDir(r.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != r.dir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(name), ".json") && !strings.HasSuffix(name, ResultSuffix) {
			files = append(files, path)
		}
		return nil
	})
	slices.Sort(files)
	return files, err
}

// CheckFile decodes one fixture and checks its graph.
func CheckFile(path string) FileResult {
	result := FileResult{
		Filename:  filepath.Base(path),
		CheckedAt: time.Now().Format(time.RFC3339),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	adv, err := adventure.ParseAdventure(data)
	if err != nil {
		result.Error = err.Error()
		var perr *adventure.ParseError
		if errors.As(err, &perr) {
			result.Error = perr.Message
			result.Issues = perr.Issues
		}
		return result
	}

	result.Success = true
	result.Adventure = Inspect(adv)
	return result
}

// Inspect reports the graph problems a decoded adventure can still have.
func Inspect(adv adventure.Adventure) *AdventureOutput {
	out := &AdventureOutput{
		Title:     adv.Title,
		NodeCount: len(adv.Nodes),
		LinkCount: len(adv.Links),
	}
	idx := adventure.BuildIndex(adv)

	for _, l := range adv.Links {
		_, sourceOK := idx.Nodes[l.Source]
		_, targetOK := idx.Nodes[l.Target]
		if !sourceOK || !targetOK {
			out.DanglingLinks = append(out.DanglingLinks, l.LinkID)
			out.Warnings = append(out.Warnings, fmt.Sprintf("link #%d connects missing nodes %d→%d", l.LinkID, l.Source, l.Target))
		}
	}

	root, ok := adventure.RootNode(adv.Nodes)
	if !ok {
		out.Warnings = append(out.Warnings, "adventure has no nodes")
		return out
	}
	rootID := root.NodeID
	out.RootNodeID = &rootID
	if root.Type != adventure.NodeTypeRoot {
		out.Warnings = append(out.Warnings, fmt.Sprintf("no root node, playing starts at #%d", rootID))
	}

	reached := reachable(adv, rootID)
	for _, n := range adv.Nodes {
		if !reached[n.NodeID] {
			out.Unreachable = append(out.Unreachable, n.NodeID)
		}
	}
	if len(out.Unreachable) > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%d node(s) unreachable from the start: %v", len(out.Unreachable), out.Unreachable))
	}

	out.SuggestedPaths = len(simulator.NewPathSimulator(adv).GetSuggestedPaths(rootID, suggestDepth))
	return out
}

// reachable walks the navigation links from start.
func reachable(adv adventure.Adventure, start int) map[int]bool {
	seen := map[int]bool{start: true}
	queue := []int{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, l := range player.NavigationLinks(current, adv.Links) {
			next := player.DestinationOf(l, current)
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

func saveJSON(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, jsonData, 0o644)
}
