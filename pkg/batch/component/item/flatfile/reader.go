package flatfile

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	storage "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/storage"
	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// ReaderConfig configures a FlatFileItemReader.
type ReaderConfig struct {
	// Resource is a file path, or an object name when StorageRef is set.
	Resource string
	// StorageRef names the storage connection Resource is downloaded from. Empty reads the
	// local file system.
	StorageRef string
	// LinesToSkip is the number of header records skipped at the start of the file.
	LinesToSkip int
	// Delimiter separates fields. Zero means ','.
	Delimiter rune
	// Names are the column names of the field set. When empty the first skipped record
	// provides them.
	Names []string
	// AllowMissing makes a missing resource read as empty instead of failing Open.
	AllowMissing bool
}

// FlatFileItemReader reads one item per delimited record. Its position is saved under
// "<name>.read.position", so a restarted step skips the records already committed.
type FlatFileItemReader[T any] struct {
	name     string
	cfg      ReaderConfig
	mapper   FieldSetMapper[T]
	resolver storage.StorageConnectionResolver

	source   io.ReadCloser
	csv      *csv.Reader
	names    []string
	position int
	line     int
}

// NewFlatFileItemReader creates a reader. resolver may be nil when cfg.StorageRef is empty.
func NewFlatFileItemReader[T any](name string, cfg ReaderConfig, mapper FieldSetMapper[T], resolver storage.StorageConnectionResolver) *FlatFileItemReader[T] {
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	return &FlatFileItemReader[T]{name: name, cfg: cfg, mapper: mapper, resolver: resolver}
}

func (r *FlatFileItemReader[T]) positionKey() string {
	return r.name + ".read.position"
}

// Open opens the resource, skips the header records and, on restart, the records read by
// the previous execution.
func (r *FlatFileItemReader[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	source, err := r.openSource(ctx)
	if err != nil {
		if r.cfg.AllowMissing && errors.Is(err, os.ErrNotExist) {
			logger.Warnf("FlatFileItemReader '%s': resource '%s' does not exist, reading nothing.", r.name, r.cfg.Resource)
			return nil
		}
		return exception.NewBatchError("reader", fmt.Sprintf("FlatFileItemReader '%s': failed to open resource '%s'", r.name, r.cfg.Resource), err, false, false)
	}
	r.source = source
	r.csv = csv.NewReader(bufio.NewReader(source))
	r.csv.Comma = r.cfg.Delimiter
	r.csv.FieldsPerRecord = -1
	r.csv.TrimLeadingSpace = true
	r.names = r.cfg.Names
	r.line = 0

	for i := 0; i < r.cfg.LinesToSkip; i++ {
		record, err := r.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return exception.NewBatchError("reader", fmt.Sprintf("FlatFileItemReader '%s': failed to read header", r.name), err, false, false)
		}
		if i == 0 && len(r.names) == 0 {
			r.names = trimAll(record)
		}
	}

	r.position, _ = ec.GetInt(r.positionKey())
	for i := 0; i < r.position; i++ {
		if _, err := r.next(); err != nil {
			if err == io.EOF {
				break
			}
			return exception.NewBatchError("reader", fmt.Sprintf("FlatFileItemReader '%s': failed to skip to record %d", r.name, r.position), err, false, false)
		}
	}
	if r.position > 0 {
		logger.Infof("FlatFileItemReader '%s': resuming after %d records.", r.name, r.position)
	}
	return nil
}

func (r *FlatFileItemReader[T]) openSource(ctx context.Context) (io.ReadCloser, error) {
	if r.cfg.StorageRef == "" {
		return os.Open(r.cfg.Resource)
	}
	if r.resolver == nil {
		return nil, fmt.Errorf("storage ref '%s' configured without a storage resolver", r.cfg.StorageRef)
	}
	conn, err := r.resolver.ResolveStorageConnection(ctx, r.cfg.StorageRef)
	if err != nil {
		return nil, err
	}
	return conn.Download(ctx, "", r.cfg.Resource)
}

func (r *FlatFileItemReader[T]) next() ([]string, error) {
	record, err := r.csv.Read()
	if err == nil {
		r.line, _ = r.csv.FieldPos(0)
	}
	return record, err
}

// Read returns the next mapped record. A record that cannot be parsed or mapped fails with
// a skippable error; the reader has already moved past it.
func (r *FlatFileItemReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if r.csv == nil {
		return zero, port.ErrNoMoreItems
	}
	record, err := r.next()
	if err == io.EOF {
		return zero, port.ErrNoMoreItems
	}
	r.position++
	if err != nil {
		return zero, r.parseError(err)
	}
	fs, err := r.fieldSet(record)
	if err != nil {
		return zero, r.parseError(err)
	}
	item, err := r.mapper.MapFieldSet(fs)
	if err != nil {
		return zero, r.parseError(err)
	}
	return item, nil
}

func (r *FlatFileItemReader[T]) parseError(err error) error {
	return exception.NewBatchError("reader", fmt.Sprintf("FlatFileItemReader '%s': parsing error at line %d of '%s'", r.name, r.line, r.cfg.Resource), err, true, false)
}

func (r *FlatFileItemReader[T]) fieldSet(record []string) (FieldSet, error) {
	fs := make(FieldSet, len(record))
	if len(r.names) == 0 {
		for i, v := range record {
			fs[strconv.Itoa(i)] = strings.TrimSpace(v)
		}
		return fs, nil
	}
	if len(record) != len(r.names) {
		return nil, fmt.Errorf("expected %d fields, found %d", len(r.names), len(record))
	}
	for i, name := range r.names {
		fs[name] = strings.TrimSpace(record[i])
	}
	return fs, nil
}

func (r *FlatFileItemReader[T]) Update(ctx context.Context, ec model.ExecutionContext) error {
	ec.Put(r.positionKey(), r.position)
	return nil
}

func (r *FlatFileItemReader[T]) Close(ctx context.Context) error {
	r.csv = nil
	if r.source == nil {
		return nil
	}
	err := r.source.Close()
	r.source = nil
	return err
}

func trimAll(record []string) []string {
	out := make([]string, len(record))
	for i, v := range record {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

var _ port.ItemReader[any] = (*FlatFileItemReader[any])(nil)
