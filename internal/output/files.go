package output

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/chrisdamba/salescount/internal/cloudwriter"
	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/utils"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
)

// fileStore places one file per report under
// <path>/<folder>/location=<slug>/date=<date>/, locally or in a bucket.
// Rewriting a report replaces its file.
type fileStore struct {
	basePath string
	folder   string
	cloud    cloudwriter.CloudWriterFactory
	bucket   string
}

func (s *fileStore) objectPath(rep *models.Report, name string) string {
	return path.Join(s.folder, utils.PartitionPath(rep.Location, rep.DateString()), name)
}

func (s *fileStore) localPath(rep *models.Report, name string) (string, error) {
	dir := filepath.Join(s.basePath, s.folder, filepath.FromSlash(utils.PartitionPath(rep.Location, rep.DateString())))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (s *fileStore) create(rep *models.Report, name string) (io.WriteCloser, error) {
	if s.cloud != nil {
		w, err := s.cloud.NewWriter(s.bucket, s.objectPath(rep, name))
		if err != nil {
			return nil, fmt.Errorf("failed to create cloud file writer: %w", err)
		}
		return w, nil
	}
	p, err := s.localPath(rep, name)
	if err != nil {
		return nil, err
	}
	return os.Create(p)
}

func (s *fileStore) createParquet(rep *models.Report, name string) (source.ParquetFile, error) {
	if s.cloud != nil {
		w, err := s.cloud.NewWriter(s.bucket, s.objectPath(rep, name))
		if err != nil {
			return nil, fmt.Errorf("failed to create cloud file writer: %w", err)
		}
		return NewCloudParquetFile(w), nil
	}
	p, err := s.localPath(rep, name)
	if err != nil {
		return nil, err
	}
	fw, err := local.NewLocalFileWriter(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create local file writer: %w", err)
	}
	return fw, nil
}

// CloudParquetFile lets the parquet writer stream into a CloudWriter. Only
// sequential writes are supported.
type CloudParquetFile struct {
	cloudWriter cloudwriter.CloudWriter
	offset      int64
}

func NewCloudParquetFile(cloudWriter cloudwriter.CloudWriter) *CloudParquetFile {
	return &CloudParquetFile{cloudWriter: cloudWriter}
}

// Open and Create return the receiver; the object is created by the upload.
func (c *CloudParquetFile) Open(name string) (source.ParquetFile, error) {
	return c, nil
}

func (c *CloudParquetFile) Create(name string) (source.ParquetFile, error) {
	return c, nil
}

func (c *CloudParquetFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		c.offset = offset
	case io.SeekCurrent:
		c.offset += offset
	default:
		return 0, fmt.Errorf("seek from end not supported for cloud storage")
	}
	return c.offset, nil
}

func (c *CloudParquetFile) Read(p []byte) (int, error) {
	return 0, fmt.Errorf("read not supported for cloud storage")
}

func (c *CloudParquetFile) Write(p []byte) (int, error) {
	n, err := c.cloudWriter.Write(p)
	c.offset += int64(n)
	return n, err
}

func (c *CloudParquetFile) Close() error {
	return c.cloudWriter.Close()
}
