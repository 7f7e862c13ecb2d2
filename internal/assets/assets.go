package assets

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"

	"github.com/claimy/claimy-admin/pkg/logger"
)

// MaxAssetBytes caps how much of a single asset is read into memory.
const MaxAssetBytes = 20 << 20

// Asset is a downloaded evidence file.
type Asset struct {
	Data        []byte
	ContentType string
}

// Store reads evidence images and uploaded files, and deletes them when a
// case goes away. References are either absolute http(s) URLs or keys in
// the bucket; URLs under baseURL are served from the bucket too.
type Store struct {
	bucket  *blob.Bucket
	client  *http.Client
	baseURL string
	logger  *logger.Logger
}

// OpenBucket opens a bucket by URL, e.g. file:///var/lib/claimy/assets,
// gs://claimy-assets or mem://.
func OpenBucket(ctx context.Context, bucketURL string) (*blob.Bucket, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open bucket %s", bucketURL)
	}
	return bucket, nil
}

func NewStore(bucket *blob.Bucket, client *http.Client, baseURL string, log *logger.Logger) *Store {
	if client == nil {
		client = http.DefaultClient
	}
	return &Store{
		bucket:  bucket,
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  log,
	}
}

// Fetch downloads the asset behind ref.
func (s *Store) Fetch(ctx context.Context, ref string) (Asset, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Asset{}, errors.New("empty asset reference")
	}
	if key, ok := s.bucketKey(ref); ok {
		return s.read(ctx, key)
	}
	return s.download(ctx, ref)
}

// Delete removes the object with the given key. A missing object is not
// an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Delete(ctx, key); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			s.logger.Debug("Asset already gone", "key", key)
			return nil
		}
		return errors.Wrapf(err, "failed to delete asset %s", key)
	}
	s.logger.Info("Asset deleted", "key", key)
	return nil
}

// Close releases the bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}

func (s *Store) bucketKey(ref string) (string, bool) {
	if s.baseURL != "" && strings.HasPrefix(ref, s.baseURL+"/") {
		return strings.TrimPrefix(ref, s.baseURL+"/"), true
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return "", false
	}
	return strings.TrimPrefix(ref, "/"), true
}

func (s *Store) read(ctx context.Context, key string) (Asset, error) {
	attrs, err := s.bucket.Attributes(ctx, key)
	if err != nil {
		return Asset{}, errors.Wrapf(err, "failed to stat asset %s", key)
	}
	if attrs.Size > MaxAssetBytes {
		return Asset{}, errors.Newf("asset %s exceeds %d bytes", key, MaxAssetBytes)
	}
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return Asset{}, errors.Wrapf(err, "failed to read asset %s", key)
	}
	return Asset{Data: data, ContentType: contentType(attrs.ContentType, data)}, nil
}

func (s *Store) download(ctx context.Context, url string) (Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Asset{}, errors.Wrapf(err, "invalid asset url %s", url)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Asset{}, errors.Wrapf(err, "failed to fetch asset %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Asset{}, errors.Newf("failed to fetch asset %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxAssetBytes+1))
	if err != nil {
		return Asset{}, errors.Wrapf(err, "failed to read asset %s", url)
	}
	if len(data) > MaxAssetBytes {
		return Asset{}, errors.Newf("asset %s exceeds %d bytes", url, MaxAssetBytes)
	}
	return Asset{Data: data, ContentType: contentType(resp.Header.Get("Content-Type"), data)}, nil
}

func contentType(declared string, data []byte) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		return declared
	}
	return http.DetectContentType(data)
}
