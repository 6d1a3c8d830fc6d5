package catalogsync

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"go.uber.org/zap"
)

// Media upload outcomes reported to Metrics
const (
	mediaOutcomePassthrough = "passthrough"
	mediaOutcomeUploaded    = "uploaded"
	mediaOutcomeFailed      = "failed"
	mediaOutcomeSkipped     = "skipped"
)

var mediaExtensions = map[string]string{
	"image/png":     "png",
	"image/jpeg":    "jpg",
	"image/jpg":     "jpg",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/bmp":     "bmp",
	"image/svg+xml": "svg",
	"image/avif":    "avif",
}

// mediaUploader turns image sources into product image references.
type mediaUploader struct {
	platform  catalogsync.CatalogPlatform
	creds     catalogsync.CredentialProvider
	images    catalogsync.ImageStore
	chunkSize int
	maxBytes  int
	metrics   Metrics
	logger    *zap.Logger
}

func newMediaUploader(platform catalogsync.CatalogPlatform, creds catalogsync.CredentialProvider, chunkSize, maxBytes int) *mediaUploader {
	// base64 quanta are 4 characters
	chunkSize -= chunkSize % 4
	if chunkSize < 4 {
		chunkSize = 4
	}
	return &mediaUploader{
		platform:  platform,
		creds:     creds,
		chunkSize: chunkSize,
		maxBytes:  maxBytes,
		metrics:   noopMetrics{},
		logger:    zap.NewNop(),
	}
}

// session scopes credential resolution to one batch: the provider is asked
// once and its answer, success or failure, is kept until the batch ends.
// Caching across batches belongs to the provider.
func (u *mediaUploader) session() *mediaSession {
	return &mediaSession{uploader: u}
}

func (u *mediaUploader) credentials(ctx context.Context) (catalogsync.MediaCredentials, error) {
	if u.creds == nil {
		return catalogsync.MediaCredentials{}, catalogsync.ErrCredentialMissing
	}
	c, err := u.creds.MediaCredentials(ctx)
	if err != nil {
		if !errors.Is(err, catalogsync.ErrCredentialMissing) {
			err = fmt.Errorf("%w: %v", catalogsync.ErrCredentialMissing, err)
		}
		return catalogsync.MediaCredentials{}, err
	}
	if !c.IsComplete() {
		return catalogsync.MediaCredentials{}, catalogsync.ErrCredentialMissing
	}
	return c, nil
}

type mediaSession struct {
	uploader *mediaUploader
	creds    *catalogsync.MediaCredentials
	credErr  error
}

// Resolve returns the image references for an item, in image order.
// Images that fail are logged and omitted; the product is still written.
func (s *mediaSession) Resolve(ctx context.Context, item catalogsync.LocalCatalogItem) []catalogsync.MediaRef {
	u := s.uploader
	sources := item.Images()
	refs := make([]catalogsync.MediaRef, 0, len(sources))
	for pos, src := range sources {
		ref, outcome, err := s.resolveOne(ctx, item, pos, src)
		u.metrics.RecordMediaUpload(ctx, outcome)
		if err != nil {
			u.logger.Warn("image omitted",
				zap.Int64("local_id", item.ID),
				zap.Int("position", pos),
				zap.Stringer("source", src),
				zap.Error(err),
			)
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

func (s *mediaSession) resolveOne(ctx context.Context, item catalogsync.LocalCatalogItem, pos int, src catalogsync.ImageSource) (catalogsync.MediaRef, string, error) {
	switch src.Kind() {
	case catalogsync.ImageKindRemote:
		return catalogsync.MediaRef{Src: strings.TrimSpace(string(src))}, mediaOutcomePassthrough, nil
	case catalogsync.ImageKindEmbedded, catalogsync.ImageKindStored:
	default:
		return catalogsync.MediaRef{}, mediaOutcomeFailed, fmt.Errorf("%w: %s", catalogsync.ErrUnsupportedImage, src)
	}

	creds, err := s.credentials(ctx)
	if err != nil {
		return catalogsync.MediaRef{}, mediaOutcomeSkipped, err
	}

	data, contentType, err := s.uploader.load(ctx, src)
	if err != nil {
		return catalogsync.MediaRef{}, mediaOutcomeFailed, err
	}

	title, caption, alt := catalogsync.MediaMetadata(item, pos)
	asset, err := s.uploader.platform.UploadMedia(ctx, creds, catalogsync.MediaUpload{
		Filename:    mediaFilename(item, pos, contentType),
		ContentType: contentType,
		Data:        data,
		Title:       title,
		Caption:     caption,
		AltText:     alt,
	})
	if err != nil {
		return catalogsync.MediaRef{}, mediaOutcomeFailed, fmt.Errorf("%w: %v", catalogsync.ErrMediaUpload, err)
	}
	return asset.Ref(), mediaOutcomeUploaded, nil
}

func (s *mediaSession) credentials(ctx context.Context) (catalogsync.MediaCredentials, error) {
	if s.creds != nil {
		return *s.creds, nil
	}
	if s.credErr != nil {
		return catalogsync.MediaCredentials{}, s.credErr
	}
	c, err := s.uploader.credentials(ctx)
	if err != nil {
		s.credErr = err
		s.uploader.logger.Warn("media credentials unavailable, skipping uploads for this batch", zap.Error(err))
		return c, err
	}
	s.creds = &c
	return c, nil
}

// load returns the binary content of an embedded or stored image.
func (u *mediaUploader) load(ctx context.Context, src catalogsync.ImageSource) ([]byte, string, error) {
	if src.Kind() == catalogsync.ImageKindEmbedded {
		return decodeDataURI(string(src), u.chunkSize, u.maxBytes)
	}

	if u.images == nil {
		return nil, "", fmt.Errorf("%w: object storage not configured", catalogsync.ErrUnsupportedImage)
	}
	bucket, key, err := src.StorageLocation()
	if err != nil {
		return nil, "", err
	}
	data, contentType, err := u.images.Fetch(ctx, bucket, key)
	if err != nil {
		return nil, "", fmt.Errorf("%w: fetch %s: %v", catalogsync.ErrMediaUpload, src, err)
	}
	if len(data) > u.maxBytes {
		return nil, "", fmt.Errorf("%w: %d bytes", catalogsync.ErrImageTooLarge, len(data))
	}
	if _, ok := mediaExtensions[contentType]; !ok {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// decodeDataURI decodes a base64 or percent-encoded data URI. Base64 payloads
// are reassembled from bounded slices so large images never need one huge
// intermediate string.
func decodeDataURI(uri string, chunkSize, maxBytes int) ([]byte, string, error) {
	uri = strings.TrimSpace(uri)
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || len(header) < len("data:") {
		return nil, "", fmt.Errorf("%w: malformed data URI", catalogsync.ErrUnsupportedImage)
	}
	meta := header[len("data:"):]
	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(meta, ";", 2)[0]))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var (
		out []byte
		err error
	)
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		out, err = decodeBase64Chunks(stripWhitespace(payload), chunkSize, maxBytes)
	} else {
		out, err = decodePercentEncoded(payload, maxBytes)
	}
	if err != nil {
		return nil, "", err
	}
	if len(out) == 0 {
		return nil, "", fmt.Errorf("%w: empty data URI", catalogsync.ErrUnsupportedImage)
	}
	if len(out) > maxBytes {
		return nil, "", fmt.Errorf("%w: %d bytes", catalogsync.ErrImageTooLarge, len(out))
	}
	if _, known := mediaExtensions[contentType]; !known {
		contentType = http.DetectContentType(out)
	}
	return out, contentType, nil
}

func decodeBase64Chunks(payload string, chunkSize, maxBytes int) ([]byte, error) {
	enc := base64.StdEncoding
	if len(payload)%4 != 0 {
		enc = base64.RawStdEncoding
	}
	if enc.DecodedLen(len(payload)) > maxBytes+2 {
		return nil, fmt.Errorf("%w: %d encoded bytes", catalogsync.ErrImageTooLarge, len(payload))
	}

	out := make([]byte, 0, enc.DecodedLen(len(payload)))
	buf := make([]byte, enc.DecodedLen(chunkSize))
	for start := 0; start < len(payload); start += chunkSize {
		end := min(start+chunkSize, len(payload))
		n, err := enc.Decode(buf, []byte(payload[start:end]))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64 payload: %v", catalogsync.ErrUnsupportedImage, err)
		}
		out = append(out, buf[:n]...)
	}
	return out, nil
}

func decodePercentEncoded(payload string, maxBytes int) ([]byte, error) {
	// every escape is at least one byte, so the raw length bounds the output
	if len(payload) > 3*maxBytes {
		return nil, fmt.Errorf("%w: %d encoded bytes", catalogsync.ErrImageTooLarge, len(payload))
	}
	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid percent-encoded payload: %v", catalogsync.ErrUnsupportedImage, err)
	}
	return []byte(decoded), nil
}

func stripWhitespace(s string) string {
	if !strings.ContainsAny(s, " \t\r\n") {
		return s
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}

// mediaFilename names the upload after the item SKU: PDV-7.png, PDV-7-2.jpg.
func mediaFilename(item catalogsync.LocalCatalogItem, pos int, contentType string) string {
	ext, ok := mediaExtensions[contentType]
	if !ok {
		ext = "bin"
	}
	if pos == 0 {
		return fmt.Sprintf("%s.%s", item.SKU(), ext)
	}
	return fmt.Sprintf("%s-%d.%s", item.SKU(), pos+1, ext)
}
