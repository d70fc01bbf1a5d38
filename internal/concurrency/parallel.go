package concurrency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jorgesolerrr/umet-reports/internal/logger"
)

// ParallelOptions configura el procesamiento por lotes (chunks)
type ParallelOptions struct {
	// MaxWorkers es el tamaño del pool y también el número de chunks
	MaxWorkers int
	Log        *logger.Logger
}

// DefaultOptions devuelve opciones predeterminadas para procesamiento paralelo
func DefaultOptions() ParallelOptions {
	return ParallelOptions{
		MaxWorkers: 10,
	}
}

// ChunkFunc procesa un chunk y devuelve cuántos elementos se procesaron con éxito.
type ChunkFunc[T any] func(ctx context.Context, chunk []T) (int, error)

// ChunkError describe un chunk que falló (error devuelto o panic recuperado).
type ChunkError struct {
	Index int
	Size  int
	Err   error
}

func (e ChunkError) Error() string {
	return fmt.Sprintf("chunk %d (%d items): %v", e.Index, e.Size, e.Err)
}

func (e ChunkError) Unwrap() error { return e.Err }

// Result resume una ejecución de Run.
type Result struct {
	Processed int // suma de los conteos de los chunks que terminaron bien
	Chunks    int
	Errors    []ChunkError
}

// SplitChunks divide items en bloques contiguos de tamaño ceil(len/n).
// El último puede ser más corto; una lista vacía produce cero chunks.
func SplitChunks[T any](items []T, n int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if n <= 0 {
		n = 1
	}
	size := (len(items) + n - 1) / n

	chunks := make([][]T, 0, n)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

type chunkResult struct {
	index int
	size  int
	count int
	err   error
	took  time.Duration
}

// Run reparte items en chunks y ejecuta fn por chunk sobre un pool de MaxWorkers.
// Un chunk que falla (error o panic) se registra y se excluye de la suma; nunca
// cancela a los demás ni se propaga al llamador.
func Run[T any](
	ctx context.Context,
	items []T,
	opts ParallelOptions,
	fn ChunkFunc[T],
) Result {
	log := logger.OrNop(opts.Log)

	maxWorkers := opts.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = DefaultOptions().MaxWorkers
	}

	chunks := SplitChunks(items, maxWorkers)
	if len(chunks) == 0 {
		return Result{}
	}

	jobs := make(chan int, len(chunks))
	results := make(chan chunkResult, len(chunks))

	var wg sync.WaitGroup
	for w := 0; w < maxWorkers && w < len(chunks); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results <- runChunk(ctx, idx, chunks[idx], fn)
			}
		}()
	}

	for i := range chunks {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	// orden de llegada, no de envío
	out := Result{Chunks: len(chunks)}
	for res := range results {
		if res.err != nil {
			ce := ChunkError{Index: res.index, Size: res.size, Err: res.err}
			out.Errors = append(out.Errors, ce)
			log.Error("chunk failed", "chunk", res.index, "size", res.size, "error", res.err)
			continue
		}
		out.Processed += res.count
		log.Info("chunk completed", "chunk", res.index, "processed", res.count, "size", res.size, "took", res.took)
	}

	log.Info("parallel processing finished", "processed", out.Processed, "items", len(items), "chunks", out.Chunks, "failed_chunks", len(out.Errors))
	return out
}

func runChunk[T any](ctx context.Context, idx int, chunk []T, fn ChunkFunc[T]) (res chunkResult) {
	start := time.Now()
	res = chunkResult{index: idx, size: len(chunk)}
	defer func() {
		if r := recover(); r != nil {
			res.count = 0
			res.err = fmt.Errorf("panic: %v", r)
		}
		res.took = time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}

	res.count, res.err = fn(ctx, chunk)
	return res
}
