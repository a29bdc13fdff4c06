package flatfile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	storage "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/storage"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/component/item"
	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/surfin-tutorial/pkg/batch/core/tx"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

const contentType = "text/plain; charset=utf-8"

// WriterConfig configures a FlatFileItemWriter.
type WriterConfig struct {
	// StorageRef names the storage connection the file is written to.
	StorageRef string
	// Resource is the object name within the connection's bucket.
	Resource string
	// Delimiter separates fields. Empty means ",".
	Delimiter string
	// Header is written as the first line of a new file when not empty.
	Header []string
}

// FlatFileItemWriter writes one delimited line per item. Lines of a chunk are staged in
// the chunk transaction and the object is rewritten when the chunk commits. The committed
// size is saved under "<name>.write.offset"; a restarted step truncates the object to it
// and appends after it.
type FlatFileItemWriter[T any] struct {
	name      string
	cfg       WriterConfig
	extractor FieldExtractor[T]
	resolver  storage.StorageConnectionResolver

	ctx       context.Context
	conn      storage.StorageConnection
	buffer    *item.ChunkBuffer[string]
	committed []byte
	uploaded  bool
	lines     int
}

// NewFlatFileItemWriter creates a writer.
func NewFlatFileItemWriter[T any](name string, cfg WriterConfig, extractor FieldExtractor[T], resolver storage.StorageConnectionResolver) *FlatFileItemWriter[T] {
	if cfg.Delimiter == "" {
		cfg.Delimiter = ","
	}
	w := &FlatFileItemWriter[T]{name: name, cfg: cfg, extractor: extractor, resolver: resolver}
	w.buffer = item.NewChunkBuffer(w.flush)
	return w
}

func (w *FlatFileItemWriter[T]) offsetKey() string {
	return w.name + ".write.offset"
}

func (w *FlatFileItemWriter[T]) linesKey() string {
	return w.name + ".write.lines"
}

// Open resolves the storage connection. On restart the committed part of the existing
// object is kept.
func (w *FlatFileItemWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	conn, err := w.resolver.ResolveStorageConnection(ctx, w.cfg.StorageRef)
	if err != nil {
		return exception.NewBatchError("writer", fmt.Sprintf("FlatFileItemWriter '%s': failed to resolve storage connection '%s'", w.name, w.cfg.StorageRef), err, false, false)
	}
	w.ctx = context.WithoutCancel(ctx)
	w.conn = conn
	w.committed = nil
	w.uploaded = false
	w.lines, _ = ec.GetInt(w.linesKey())

	offset, restarted := ec.GetInt64(w.offsetKey())
	if !restarted {
		if len(w.cfg.Header) > 0 {
			w.committed = []byte(strings.Join(w.cfg.Header, w.cfg.Delimiter) + "\n")
		}
		logger.Infof("FlatFileItemWriter '%s' opened. Target: %s/%s", w.name, w.cfg.StorageRef, w.cfg.Resource)
		return nil
	}

	existing, err := w.download(ctx)
	if err != nil {
		return exception.NewBatchError("writer", fmt.Sprintf("FlatFileItemWriter '%s': failed to read '%s' for restart", w.name, w.cfg.Resource), err, false, false)
	}
	if int64(len(existing)) < offset {
		return exception.NewBatchErrorf("writer", "FlatFileItemWriter '%s': '%s' is shorter (%d bytes) than the committed offset %d", w.name, w.cfg.Resource, len(existing), offset)
	}
	w.committed = existing[:offset]
	w.uploaded = true
	logger.Infof("FlatFileItemWriter '%s': restarting after %d lines (%d bytes).", w.name, w.lines, offset)
	return nil
}

func (w *FlatFileItemWriter[T]) download(ctx context.Context) ([]byte, error) {
	r, err := w.conn.Download(ctx, "", w.cfg.Resource)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Write renders the items and stages the lines in t. Nothing is staged if any item fails
// to render.
func (w *FlatFileItemWriter[T]) Write(ctx context.Context, t tx.Tx, items []T) error {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		fields, err := w.extractor.Extract(it)
		if err != nil {
			return exception.NewBatchError("writer", fmt.Sprintf("FlatFileItemWriter '%s': failed to extract fields", w.name), err, true, false)
		}
		lines = append(lines, strings.Join(fields, w.cfg.Delimiter)+"\n")
	}
	w.buffer.Stage(t, lines)
	return nil
}

// flush rewrites the object with the committed content followed by lines.
func (w *FlatFileItemWriter[T]) flush(lines []string) error {
	var buf bytes.Buffer
	buf.Grow(len(w.committed) + 64*len(lines))
	buf.Write(w.committed)
	for _, l := range lines {
		buf.WriteString(l)
	}
	if err := w.conn.Upload(w.ctx, "", w.cfg.Resource, bytes.NewReader(buf.Bytes()), contentType); err != nil {
		return fmt.Errorf("FlatFileItemWriter '%s': failed to write '%s': %w", w.name, w.cfg.Resource, err)
	}
	w.committed = buf.Bytes()
	w.uploaded = true
	w.lines += len(lines)
	logger.Debugf("FlatFileItemWriter '%s': flushed %d lines (%d total).", w.name, len(lines), w.lines)
	return nil
}

// Update records the size the object will have once the staged chunk commits.
func (w *FlatFileItemWriter[T]) Update(ctx context.Context, ec model.ExecutionContext) error {
	staged := w.buffer.Staged()
	size := len(w.committed)
	for _, l := range staged {
		size += len(l)
	}
	ec.Put(w.offsetKey(), size)
	ec.Put(w.linesKey(), w.lines+len(staged))
	return nil
}

// Close creates the file when no chunk was written, so an empty input still produces an
// output containing only the header.
func (w *FlatFileItemWriter[T]) Close(ctx context.Context) error {
	if w.conn == nil || w.uploaded {
		return nil
	}
	if err := w.conn.Upload(ctx, "", w.cfg.Resource, bytes.NewReader(w.committed), contentType); err != nil {
		return exception.NewBatchError("writer", fmt.Sprintf("FlatFileItemWriter '%s': failed to create '%s'", w.name, w.cfg.Resource), err, false, false)
	}
	w.uploaded = true
	return nil
}

var _ port.ItemWriter[any] = (*FlatFileItemWriter[any])(nil)
