package documents

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qochi/internal/documents/blob"
	dErrors "qochi/pkg/domain-errors"
	audit "qochi/pkg/platform/audit"
	"qochi/pkg/requestcontext"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *recordingPublisher) Emit(_ context.Context, e audit.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type brokenStore struct{ blob.Store }

func (brokenStore) Put(context.Context, string, io.Reader, string) (blob.Info, error) {
	return blob.Info{}, errors.New("disk on fire")
}

func TestUploadAndOpen(t *testing.T) {
	pub := &recordingPublisher{}
	svc := New(blob.NewMemory(), WithAuditPublisher(pub))
	ctx := requestcontext.WithRequestID(context.Background(), "req-1")

	doc, err := svc.Upload(ctx, "Marriage Certificate.PDF", strings.NewReader("%PDF-1.7 body"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(doc.Ref, ".pdf"))
	assert.True(t, ValidRef(doc.Ref))
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, int64(13), doc.Size)

	got, rc, err := svc.Open(ctx, doc.Ref)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 body", string(body))
	assert.Equal(t, doc.ContentType, got.ContentType)

	require.Len(t, pub.events, 1)
	assert.Equal(t, string(audit.EventDocumentUploaded), pub.events[0].Action)
	assert.Equal(t, "document:"+doc.Ref, pub.events[0].Subject)
	assert.Equal(t, "req-1", pub.events[0].RequestID)
}

func TestUploadValidation(t *testing.T) {
	svc := New(blob.NewMemory(), WithMaxBytes(4))

	tests := []struct {
		name     string
		filename string
		body     string
	}{
		{name: "unsupported extension", filename: "notes.txt", body: "hi"},
		{name: "no extension", filename: "scan", body: "hi"},
		{name: "empty file", filename: "a.png", body: ""},
		{name: "too large", filename: "a.jpg", body: "12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), tt.filename, strings.NewReader(tt.body))
			require.Error(t, err)
			assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
		})
	}

	doc, err := svc.Upload(context.Background(), "a.jpeg", strings.NewReader("1234"))
	require.NoError(t, err, "exactly at the cap is accepted")
	assert.Equal(t, "image/jpeg", doc.ContentType)
}

func TestOpenUnknownRef(t *testing.T) {
	svc := New(blob.NewMemory())

	for _, ref := range []string{"../../etc/passwd", "abc.pdf", "6f1c1f4e-3a77-4a0b-9d0e-8a9b3f5b2c11.pdf"} {
		_, _, err := svc.Open(context.Background(), ref)
		require.Error(t, err, ref)
		assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err), ref)
	}
}

func TestUploadStoreFailure(t *testing.T) {
	svc := New(brokenStore{blob.NewMemory()})
	_, err := svc.Upload(context.Background(), "a.png", strings.NewReader("png"))
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnavailable, dErrors.CodeOf(err))
}
