package dump

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"

	"github.com/apex/log"

	macho "github.com/appsworld/go-classdump"
	"github.com/appsworld/go-classdump/internal/swiftdemangle"
	"github.com/appsworld/go-classdump/types"
)

// A Controller dumps a set of files through a bounded worker pool. Each
// worker owns its own reader, registries, and caches; only the demangler and
// its cache are shared. Outputs return over a channel and are written by the
// caller in sorted order.
type Controller struct {
	Opts    *Options
	Arch    *types.Arch // nil selects the first slice
	Workers int

	dem *swiftdemangle.Demangler
}

// NewController builds a controller sharing one demangler across workers.
func NewController(opts *Options, dem *swiftdemangle.Demangler) *Controller {
	if dem == nil {
		dem = swiftdemangle.New()
	}
	return &Controller{Opts: opts, dem: dem}
}

type fileResult struct {
	path string
	out  []byte
	err  error
}

// ProcessFile extracts and emits one file into w.
func (c *Controller) ProcessFile(ctx context.Context, path string, w io.Writer) error {
	out, err := c.dumpOne(ctx, path)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func (c *Controller) dumpOne(ctx context.Context, path string) ([]byte, error) {
	var (
		f   *macho.File
		err error
	)
	if c.Arch != nil {
		f, err = macho.OpenArch(path, *c.Arch)
	} else {
		f, err = macho.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	opts := *c.Opts
	opts.FilePath = path

	model, err := Extract(ctx, f, &opts, c.dem)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var buf bytes.Buffer
	if err := Walk(model, NewTextVisitor(&buf)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buf.Bytes(), nil
}

// ProcessFiles dumps many files concurrently and writes their outputs to w
// sorted by input filename, so aggregate output is deterministic regardless
// of scheduling.
func (c *Controller) ProcessFiles(ctx context.Context, paths []string, w io.Writer) error {
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(paths) {
		workers = len(paths)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string)
	results := make(chan fileResult, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				out, err := c.dumpOne(ctx, path)
				results <- fileResult{path: path, out: out, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, path := range paths {
			select {
			case jobs <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	byPath := make(map[string]fileResult, len(paths))
	for res := range results {
		byPath[res.path] = res
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ordered := append([]string(nil), paths...)
	sort.Strings(ordered)

	var firstErr error
	for _, path := range ordered {
		res, ok := byPath[path]
		if !ok {
			continue
		}
		if res.err != nil {
			log.WithError(res.err).Errorf("failed to dump %s", path)
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		if _, err := w.Write(res.out); err != nil {
			return err
		}
	}
	return firstErr
}
