// Package parquet provides an item writer producing Parquet files.
package parquet

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	storage "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/storage"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/component/item"
	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/surfin-tutorial/pkg/batch/core/tx"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

const parallelWriters = 4

// WriterConfig holds the configuration for ParquetItemWriter.
type WriterConfig struct {
	// StorageRef is the name of the storage connection files are uploaded to.
	StorageRef string `mapstructure:"storageRef"`
	// OutputBaseDir is the directory within the bucket for exported files (e.g., "players/export").
	OutputBaseDir string `mapstructure:"outputBaseDir"`
	// FileName is the name of the exported file. Empty generates a unique name per file.
	FileName string `mapstructure:"fileName"`
	// CompressionType is the compression type for Parquet files ("SNAPPY", "GZIP" or "NONE").
	CompressionType string `mapstructure:"compressionType"`
}

// ParquetItemWriter collects the items of committed chunks and writes them as Parquet
// files on Close, one file per partition key. T must carry parquet-go struct tags.
type ParquetItemWriter[T any] struct {
	name     string
	cfg      WriterConfig
	resolver storage.StorageConnectionResolver
	// partitionKeyFunc maps an item to a Hive-style directory such as "dt=2024-05-01". Nil
	// writes a single file directly under OutputBaseDir.
	partitionKeyFunc func(T) (string, error)

	conn   storage.StorageConnection
	buffer *item.ChunkBuffer[T]

	mu         sync.Mutex
	partitions map[string][]T
	total      int
}

// NewParquetItemWriter creates a writer. The compression type defaults to SNAPPY.
func NewParquetItemWriter[T any](name string, cfg WriterConfig, resolver storage.StorageConnectionResolver, partitionKeyFunc func(T) (string, error)) (*ParquetItemWriter[T], error) {
	if cfg.StorageRef == "" {
		return nil, exception.NewBatchErrorf("writer", "ParquetItemWriter '%s' requires a storage ref", name)
	}
	if cfg.CompressionType == "" {
		cfg.CompressionType = "SNAPPY"
	}
	if _, err := compressionCodec(cfg.CompressionType); err != nil {
		return nil, exception.NewBatchError("writer", fmt.Sprintf("ParquetItemWriter '%s': invalid configuration", name), err, false, false)
	}
	w := &ParquetItemWriter[T]{
		name:             name,
		cfg:              cfg,
		resolver:         resolver,
		partitionKeyFunc: partitionKeyFunc,
		partitions:       make(map[string][]T),
	}
	w.buffer = item.NewChunkBuffer(w.collect)
	return w, nil
}

// Open resolves the storage connection and clears the collected items.
func (w *ParquetItemWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	conn, err := w.resolver.ResolveStorageConnection(ctx, w.cfg.StorageRef)
	if err != nil {
		return exception.NewBatchError("writer", fmt.Sprintf("ParquetItemWriter '%s': failed to resolve storage connection '%s'", w.name, w.cfg.StorageRef), err, false, false)
	}
	w.conn = conn
	w.mu.Lock()
	w.partitions = make(map[string][]T)
	w.total = 0
	w.mu.Unlock()
	logger.Infof("ParquetItemWriter '%s' opened. Target storage: %s, Base directory: %s", w.name, w.cfg.StorageRef, w.cfg.OutputBaseDir)
	return nil
}

// Write stages items in the chunk transaction.
func (w *ParquetItemWriter[T]) Write(ctx context.Context, t tx.Tx, items []T) error {
	if w.partitionKeyFunc != nil {
		for _, it := range items {
			if _, err := w.partitionKeyFunc(it); err != nil {
				return exception.NewBatchError("writer", fmt.Sprintf("ParquetItemWriter '%s': failed to get partition key", w.name), err, true, false)
			}
		}
	}
	w.buffer.Stage(t, items)
	return nil
}

func (w *ParquetItemWriter[T]) collect(items []T) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, it := range items {
		key := ""
		if w.partitionKeyFunc != nil {
			k, err := w.partitionKeyFunc(it)
			if err != nil {
				return err
			}
			key = k
		}
		w.partitions[key] = append(w.partitions[key], it)
		w.total++
	}
	return nil
}

func (w *ParquetItemWriter[T]) Update(ctx context.Context, ec model.ExecutionContext) error {
	return nil
}

// Close writes and uploads one Parquet file per partition. Failures of individual
// partitions are combined.
func (w *ParquetItemWriter[T]) Close(ctx context.Context) error {
	w.mu.Lock()
	partitions := w.partitions
	total := w.total
	w.partitions = make(map[string][]T)
	w.total = 0
	w.mu.Unlock()

	if total == 0 {
		logger.Infof("ParquetItemWriter '%s': no records collected, skipping Parquet file generation.", w.name)
		return nil
	}
	codec, _ := compressionCodec(w.cfg.CompressionType)

	var result *multierror.Error
	for key, items := range partitions {
		objectName := w.objectName(key)
		if err := w.writePartition(ctx, objectName, items, codec); err != nil {
			result = multierror.Append(result, exception.NewBatchError("writer", fmt.Sprintf("ParquetItemWriter '%s': failed to export '%s'", w.name, objectName), err, false, false))
			continue
		}
		logger.Infof("ParquetItemWriter '%s': wrote %d records to %s", w.name, len(items), objectName)
	}
	return result.ErrorOrNil()
}

func (w *ParquetItemWriter[T]) objectName(partitionKey string) string {
	fileName := w.cfg.FileName
	if fileName == "" {
		fileName = fmt.Sprintf("data_%s_%s.parquet", time.Now().Format("20060102150405"), uuid.NewString()[:8])
	}
	return path.Join(w.cfg.OutputBaseDir, partitionKey, fileName)
}

func (w *ParquetItemWriter[T]) writePartition(ctx context.Context, objectName string, items []T, codec parquet.CompressionCodec) (err error) {
	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(T), parallelWriters)
	if err != nil {
		return fmt.Errorf("failed to create Parquet writer: %w", err)
	}
	pw.CompressionType = codec
	for _, it := range items {
		if err := pw.Write(it); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	// parquet-go panics on some schema mismatches while flushing.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parquet writer panicked during WriteStop: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize Parquet file: %w", err)
	}
	return w.conn.Upload(ctx, "", objectName, buf, "application/octet-stream")
}

func compressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

var _ port.ItemWriter[any] = (*ParquetItemWriter[any])(nil)
