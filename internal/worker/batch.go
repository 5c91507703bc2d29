package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/deckcheck/internal/model"
)

// DeckRunner runs the complete pipeline over one deck file
type DeckRunner interface {
	RunFile(ctx context.Context, path string) (*model.Report, error)
}

// DeckJob processes one deck
type DeckJob struct {
	Path   string
	Runner DeckRunner
}

// Execute implements Job
func (j *DeckJob) Execute(ctx context.Context) Result {
	report, err := j.Runner.RunFile(ctx, j.Path)
	return &DeckResult{Path: j.Path, Report: report, Error: err}
}

// DeckResult is the outcome of one deck. Report may be set alongside Error
// when the run stopped partway (e.g. on a rate limit).
type DeckResult struct {
	Path   string
	Report *model.Report
	Error  error
}

// GetError returns the error from the deck result
func (r *DeckResult) GetError() error {
	return r.Error
}

// BatchProcessor runs independent decks concurrently. Each deck is its own
// sequential pipeline run; only whole runs overlap.
type BatchProcessor struct {
	runner      DeckRunner
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(runner DeckRunner, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		runner:      runner,
		concurrency: concurrency,
	}
}

// ProcessFiles runs every deck and returns results in input order
func (b *BatchProcessor) ProcessFiles(ctx context.Context, paths []string) []*DeckResult {
	if len(paths) == 0 {
		return []*DeckResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, path := range paths {
		if !pool.Submit(&DeckJob{Path: path, Runner: b.runner}) {
			break
		}
	}

	results := pool.Wait()

	out := make([]*DeckResult, len(paths))
	for i, path := range paths {
		if i < len(results) && results[i] != nil {
			out[i] = results[i].(*DeckResult)
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		out[i] = &DeckResult{Path: path, Error: fmt.Errorf("not processed: %w", err)}
	}

	return out
}

// ProcessList reads deck paths from a list file and processes them
func (b *BatchProcessor) ProcessList(ctx context.Context, listPath string) ([]*DeckResult, error) {
	paths, err := ReadDeckList(listPath)
	if err != nil {
		return nil, fmt.Errorf("read deck list: %w", err)
	}

	return b.ProcessFiles(ctx, paths), nil
}

// ReadDeckList reads deck paths or URLs, one per line. Relative paths
// resolve against the list file's directory; blanks, comments and
// duplicates are skipped.
func ReadDeckList(listPath string) ([]string, error) {
	file, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(listPath)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !strings.Contains(line, "://") {
			if !filepath.IsAbs(line) {
				line = filepath.Join(base, line)
			}
			line = filepath.Clean(line)
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
