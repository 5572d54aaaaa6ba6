// Package documents accepts the scanned evidence attached to requests and
// hands back an opaque reference for it.
package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"qochi/internal/documents/blob"
	dErrors "qochi/pkg/domain-errors"
	audit "qochi/pkg/platform/audit"
	"qochi/pkg/platform/sentinel"
	"qochi/pkg/requestcontext"
)

const defaultMaxBytes = 10 << 20

var allowedTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Document is an uploaded file as returned to callers.
type Document struct {
	Ref         string `json:"ref"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size_bytes"`
}

type Service struct {
	store          blob.Store
	maxBytes       int64
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = p }
}

// WithMaxBytes caps the accepted upload size; non-positive keeps the default.
func WithMaxBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func New(store blob.Store, opts ...Option) *Service {
	s := &Service{store: store, maxBytes: defaultMaxBytes, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload stores r under a fresh reference. Only PDF, JPEG and PNG files
// are accepted and content past the size cap is refused.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := allowedTypes[ext]
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "document must be a pdf, jpg or png file")
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read document")
	}
	if n == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "document is empty")
	}
	if n > s.maxBytes {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("document exceeds %d bytes", s.maxBytes))
	}

	ref := uuid.NewString() + ext
	info, err := s.store.Put(ctx, ref, &buf, contentType)
	if err != nil {
		return nil, blobError(err)
	}

	doc := &Document{Ref: ref, ContentType: contentType, Size: info.Size}
	s.emit(ctx, doc)
	return doc, nil
}

// Open returns the document stored under ref. Callers close the reader.
func (s *Service) Open(ctx context.Context, ref string) (*Document, io.ReadCloser, error) {
	if !ValidRef(ref) {
		return nil, nil, dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	info, rc, err := s.store.Get(ctx, ref)
	if err != nil {
		return nil, nil, blobError(err)
	}
	return &Document{Ref: ref, ContentType: info.ContentType, Size: info.Size}, rc, nil
}

// ValidRef reports whether ref has the shape Upload produces.
func ValidRef(ref string) bool {
	ext := filepath.Ext(ref)
	if _, ok := allowedTypes[ext]; !ok {
		return false
	}
	_, err := uuid.Parse(strings.TrimSuffix(ref, ext))
	return err == nil
}

func blobError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "document not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "document already exists")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation cancelled")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "document store unavailable")
	}
}

func (s *Service) emit(ctx context.Context, doc *Document) {
	event := audit.Event{
		Category:    audit.EventDocumentUploaded.Category(),
		HouseholdID: requestcontext.HouseholdID(ctx),
		Subject:     "document:" + doc.Ref,
		Action:      string(audit.EventDocumentUploaded),
		Kind:        doc.ContentType,
		RequestID:   requestcontext.RequestID(ctx),
		ActorID:     requestcontext.Actor(ctx),
		ClientIP:    requestcontext.ClientIP(ctx),
		UserAgent:   requestcontext.UserAgent(ctx),
	}
	s.logger.InfoContext(ctx, event.Action,
		"subject", event.Subject,
		"size_bytes", doc.Size,
		"request_id", event.RequestID,
		"log_type", "audit",
	)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}
