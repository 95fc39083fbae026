// Package output writes finished reports to the configured destination.
package output

import (
	"context"
	"fmt"
	"os"

	"github.com/chrisdamba/salescount/internal/cloudwriter"
	"github.com/chrisdamba/salescount/internal/models"
)

type Destination interface {
	WriteReport(ctx context.Context, rep *models.Report) error
	Close() error
}

// NewDestination builds the destination named by output.destination. File
// destinations write to the cloud bucket when a cloud provider is configured.
func NewDestination(ctx context.Context, cfg *models.Config) (Destination, error) {
	out := cfg.Output
	switch out.Destination {
	case "", "console":
		return NewConsoleOutput(os.Stdout), nil
	case "kafka":
		return NewKafkaOutput(cfg.Kafka)
	}

	store, err := newFileStore(ctx, out)
	if err != nil {
		return nil, err
	}
	switch out.Destination {
	case "csv":
		return &CSVOutput{files: store}, nil
	case "json":
		return &JSONOutput{files: store}, nil
	case "parquet":
		return &ParquetOutput{files: store}, nil
	}
	return nil, fmt.Errorf("unsupported output destination: %s", out.Destination)
}

func newFileStore(ctx context.Context, out models.OutputConfig) (*fileStore, error) {
	store := &fileStore{basePath: out.Path, folder: out.Folder}
	switch out.CloudStorage.Provider {
	case "", "local":
		return store, nil
	case "s3":
		factory, err := cloudwriter.NewS3WriterFactory(ctx, out.CloudStorage.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create cloud writer factory: %w", err)
		}
		store.cloud = factory
		store.bucket = out.CloudStorage.BucketName
		return store, nil
	}
	return nil, fmt.Errorf("unsupported cloud storage provider: %s", out.CloudStorage.Provider)
}
