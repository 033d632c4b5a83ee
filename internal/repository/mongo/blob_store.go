package mongo

import (
	"context"
	"errors"
	"fmt"
	"io"

	"garageBooking/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BlobStore keeps uploaded garage documents in a GridFS bucket.
type BlobStore struct {
	db   *mongo.Database
	name string
}

func NewBlobStore(client *mongo.Client, database, bucketName string) *BlobStore {
	return &BlobStore{
		db:   client.Database(database),
		name: bucketName,
	}
}

// bucket opens a bucket handle per call; read and write deadlines live on
// the handle.
func (s *BlobStore) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(s.name))
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}
	d, _ := ctx.Deadline()
	if err := b.SetReadDeadline(d); err != nil {
		return nil, err
	}
	if err := b.SetWriteDeadline(d); err != nil {
		return nil, err
	}
	return b, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (s *BlobStore) Put(ctx context.Context, name, contentType string, r io.Reader) (string, int64, error) {
	bucket, err := s.bucket(ctx)
	if err != nil {
		return "", 0, err
	}

	src := &countingReader{r: r}
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "content_type", Value: contentType}})
	id, err := bucket.UploadFromStream(name, src, opts)
	if err != nil {
		return "", 0, fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return id.Hex(), src.n, nil
}

func (s *BlobStore) Open(ctx context.Context, fileID string) (io.ReadCloser, error) {
	oid, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: file %s", domain.ErrNotFound, fileID)
	}
	bucket, err := s.bucket(ctx)
	if err != nil {
		return nil, err
	}

	stream, err := bucket.OpenDownloadStream(oid)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, fmt.Errorf("%w: file %s", domain.ErrNotFound, fileID)
	}
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (s *BlobStore) Delete(ctx context.Context, fileID string) error {
	oid, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return fmt.Errorf("%w: file %s", domain.ErrNotFound, fileID)
	}
	bucket, err := s.bucket(ctx)
	if err != nil {
		return err
	}

	err = bucket.Delete(oid)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil
	}
	return err
}
