package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/storage"
	"github.com/vidtube/backend/internal/videos"
)

const (
	maxImageUpload = 10 << 20
	maxVideoUpload = 1 << 30
	// multipartMemory is kept in memory; larger parts spill to temp files.
	multipartMemory = 32 << 20
)

// parseMultipart reads a multipart form of at most limit bytes.
func parseMultipart(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierror.Validation("upload is too large").Wrap(err)
		}
		return apierror.Validation("invalid multipart form").Wrap(err)
	}
	return nil
}

// formFile returns the named part, or nil when it is absent and optional.
func formFile(r *http.Request, field string, required bool) (multipart.File, *multipart.FileHeader, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		if required {
			return nil, nil, apierror.Validation(field + " is required")
		}
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, apierror.Validation("invalid " + field).Wrap(err)
	}
	return file, header, nil
}

// mediaStore uploads request files to the object store.
type mediaStore struct {
	uploader storage.Uploader
}

type uploaded struct {
	URL string
	Key string
}

func (m mediaStore) put(ctx context.Context, prefix string, file multipart.File, header *multipart.FileHeader) (uploaded, error) {
	if m.uploader == nil {
		return uploaded{}, apierror.Internal("media storage unavailable", errors.New("no uploader configured"))
	}
	key := storage.ObjectKey(prefix, header.Filename)
	url, err := m.uploader.Upload(ctx, key, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		return uploaded{}, apierror.Internal("failed to upload "+prefix, err)
	}
	return uploaded{URL: url, Key: key}, nil
}

// upload stores the named form file under prefix. It returns an empty
// result when the file is optional and absent.
func (m mediaStore) upload(ctx context.Context, r *http.Request, field, prefix string, required bool) (uploaded, error) {
	file, header, err := formFile(r, field, required)
	if err != nil || file == nil {
		return uploaded{}, err
	}
	defer file.Close()
	return m.put(ctx, prefix, file, header)
}

// discard removes objects uploaded for a request that later failed.
func (m mediaStore) discard(ctx context.Context, objects ...uploaded) {
	remover, ok := m.uploader.(storage.Remover)
	if !ok {
		return
	}
	for _, obj := range objects {
		if obj.Key == "" {
			continue
		}
		if err := remover.Remove(ctx, obj.Key); err != nil {
			logging.FromContext(ctx).Warn("failed to remove orphaned upload", "key", obj.Key, "error", err)
		}
	}
}

// probeDuration spools the upload to a temp file for the prober and rewinds
// the upload for the object store.
func probeDuration(ctx context.Context, prober videos.Prober, file multipart.File, name string) (float64, error) {
	tmp, err := os.CreateTemp("", "vidtube-probe-*"+filepath.Ext(name))
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	defer file.Seek(0, io.SeekStart)

	if _, err := io.Copy(tmp, file); err != nil {
		return 0, fmt.Errorf("spool upload: %w", err)
	}

	info, err := prober.Probe(ctx, tmp.Name())
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}
