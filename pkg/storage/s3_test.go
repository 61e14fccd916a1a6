package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 answers the handful of S3 calls the driver makes, keyed by object key.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		prefix := req.URL.Query().Get("prefix")
		keys := make([]string, 0, len(f.objects))
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(f.objects[k]))
		}
		b.WriteString("</ListBucketResult>")
		return xmlResponse(http.StatusOK, b.String()), nil
	}

	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if decoded := req.Header.Get("X-Amz-Decoded-Content-Length"); decoded != "" {
			body = decodeAWSChunked(body)
		}
		f.objects[key] = body
		f.types[key] = req.Header.Get("Content-Type")
		return emptyResponse(http.StatusOK, http.Header{"Etag": {`"etag"`}}), nil
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			return xmlResponse(http.StatusNotFound, `<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`), nil
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(body)),
			Header: http.Header{
				"Content-Length": {strconv.Itoa(len(body))},
				"Content-Type":   {f.types[key]},
				"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
			},
			ContentLength: int64(len(body)),
		}, nil
	case http.MethodDelete:
		delete(f.objects, key)
		return emptyResponse(http.StatusNoContent, nil), nil
	}
	return emptyResponse(http.StatusNotImplemented, nil), nil
}

func xmlResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": {"application/xml"}},
	}
}

func emptyResponse(status int, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(nil)), Header: header}
}

// decodeAWSChunked strips aws-chunked framing: <hex>\r\n<data>\r\n ... 0\r\n<trailers>.
func decodeAWSChunked(raw []byte) []byte {
	var out []byte
	for len(raw) > 0 {
		idx := bytes.Index(raw, []byte("\r\n"))
		if idx < 0 {
			break
		}
		header := string(raw[:idx])
		if semi := strings.IndexByte(header, ';'); semi >= 0 {
			header = header[:semi]
		}
		size, err := strconv.ParseInt(header, 16, 64)
		if err != nil || size == 0 {
			break
		}
		raw = raw[idx+2:]
		if int64(len(raw)) < size {
			break
		}
		out = append(out, raw[:size]...)
		raw = bytes.TrimPrefix(raw[size:], []byte("\r\n"))
	}
	return out
}

func newTestS3(t *testing.T, rt http.RoundTripper) *S3Storage {
	t.Helper()
	store, err := NewS3Storage(context.Background(), S3Options{
		Bucket:     "biblioteca",
		Region:     "us-east-1",
		Endpoint:   "https://s3.test.local",
		PathStyle:  true,
		AccessKey:  "AKIA",
		SecretKey:  "SECRET",
		Prefix:     "exports/",
		HTTPClient: &http.Client{Transport: rt},
	})
	require.NoError(t, err)
	return store
}

func TestS3StorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := newTestS3(t, fake)

	name, err := store.Save(ctx, "registro-prestamos-2024-03-01.csv", []byte("id,estado"))
	require.NoError(t, err)
	assert.Equal(t, "registro-prestamos-2024-03-01.csv", name)
	assert.Contains(t, fake.objects, "exports/registro-prestamos-2024-03-01.csv")
	assert.Contains(t, fake.types["exports/registro-prestamos-2024-03-01.csv"], "text/csv")

	rc, err := store.Open(ctx, name)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "id,estado", string(body))

	require.NoError(t, store.Delete(ctx, name))
	_, err = store.Open(ctx, name)
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestS3StorageCleanupOlderThan(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.objects["exports/a.pdf"] = []byte("a")
	fake.objects["exports/b.csv"] = []byte("b")
	fake.objects["other/c.csv"] = []byte("c")
	store := newTestS3(t, fake)
	store.now = func() time.Time { return time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC) }

	deleted, err := store.CleanupOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.pdf", "b.csv"}, deleted)
	assert.Contains(t, fake.objects, "other/c.csv")
	assert.NotContains(t, fake.objects, "exports/a.pdf")
}

func TestNewS3StorageRequiresBucket(t *testing.T) {
	_, err := NewS3Storage(context.Background(), S3Options{})
	require.Error(t, err)
}
