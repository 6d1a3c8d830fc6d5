package catalogsync

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG
var pixelPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func pngDataURI() catalogsync.ImageSource {
	return catalogsync.ImageSource("data:image/png;base64," + base64.StdEncoding.EncodeToString(pixelPNG))
}

var operatorCreds = catalogsync.MediaCredentials{Username: "shop-admin", ApplicationPassword: "abcd efgh"}

func withImages(id int64, images ...catalogsync.ImageSource) catalogsync.LocalCatalogItem {
	item := catalogsync.LocalCatalogItem{ID: id, Name: "Lamp", Description: "Desk lamp", Price: decimal.NewFromInt(20), Quantity: 1}
	if len(images) > 0 {
		item.PrimaryImage = images[0]
		item.AdditionalImages = images[1:]
	}
	return item
}

func TestMediaSession_RemoteURLPassesThrough(t *testing.T) {
	platform := new(MockCatalogPlatform)
	metrics := newRecordingMetrics()
	u := newMediaUploader(platform, nil, DefaultMediaChunkSize, DefaultMediaMaxBytes)
	u.metrics = metrics

	refs := u.session().Resolve(context.Background(), withImages(1, " https://cdn.example.com/lamp.jpg"))

	require.Len(t, refs, 1)
	assert.Equal(t, "https://cdn.example.com/lamp.jpg", refs[0].Src)
	assert.Zero(t, refs[0].ID)
	assert.Equal(t, 1, metrics.media[mediaOutcomePassthrough])
	platform.AssertNotCalled(t, "UploadMedia", mock.Anything, mock.Anything, mock.Anything)
}

func TestMediaSession_UploadsEmbeddedImage(t *testing.T) {
	platform := new(MockCatalogPlatform)
	platform.On("UploadMedia", mock.Anything, operatorCreds, mock.MatchedBy(func(up catalogsync.MediaUpload) bool {
		return up.Filename == "PDV-7.png" &&
			up.ContentType == "image/png" &&
			bytes.Equal(up.Data, pixelPNG) &&
			up.Title == "Lamp" &&
			up.Caption == "Desk lamp" &&
			up.AltText == "Lamp"
	})).Return(&catalogsync.RemoteMediaAsset{ID: 77, SourceURL: "https://shop.example.com/PDV-7.png"}, nil)
	platform.On("UploadMedia", mock.Anything, operatorCreds, mock.MatchedBy(func(up catalogsync.MediaUpload) bool {
		return up.Filename == "PDV-7-3.png" && up.Title == "Lamp 3"
	})).Return(&catalogsync.RemoteMediaAsset{ID: 79}, nil)

	creds := new(MockCredentialProvider)
	creds.On("MediaCredentials", mock.Anything).Return(operatorCreds, nil)
	u := newMediaUploader(platform, creds, DefaultMediaChunkSize, DefaultMediaMaxBytes)

	item := withImages(7, pngDataURI(), "https://cdn.example.com/b.jpg", pngDataURI())
	refs := u.session().Resolve(context.Background(), item)

	assert.Equal(t, []catalogsync.MediaRef{{ID: 77}, {Src: "https://cdn.example.com/b.jpg"}, {ID: 79}}, refs)
	creds.AssertNumberOfCalls(t, "MediaCredentials", 1)
}

func TestMediaSession_AsksProviderOncePerBatch(t *testing.T) {
	rotated := catalogsync.MediaCredentials{Username: "shop-admin", ApplicationPassword: "wxyz 1234"}
	platform := new(MockCatalogPlatform)
	platform.On("UploadMedia", mock.Anything, operatorCreds, mock.Anything).Return(&catalogsync.RemoteMediaAsset{ID: 1}, nil)
	platform.On("UploadMedia", mock.Anything, rotated, mock.Anything).Return(&catalogsync.RemoteMediaAsset{ID: 2}, nil)
	creds := new(MockCredentialProvider)
	creds.On("MediaCredentials", mock.Anything).Return(operatorCreds, nil).Once()
	creds.On("MediaCredentials", mock.Anything).Return(rotated, nil).Once()
	u := newMediaUploader(platform, creds, DefaultMediaChunkSize, DefaultMediaMaxBytes)

	first := u.session()
	a := first.Resolve(context.Background(), withImages(1, pngDataURI()))
	b := first.Resolve(context.Background(), withImages(2, pngDataURI()))
	c := u.session().Resolve(context.Background(), withImages(3, pngDataURI()))

	assert.Equal(t, []catalogsync.MediaRef{{ID: 1}}, a)
	assert.Equal(t, []catalogsync.MediaRef{{ID: 1}}, b)
	assert.Equal(t, []catalogsync.MediaRef{{ID: 2}}, c)
	creds.AssertExpectations(t)
}

func TestMediaSession_MissingCredentialsSkipsUploadsOnly(t *testing.T) {
	platform := new(MockCatalogPlatform)
	creds := new(MockCredentialProvider)
	creds.On("MediaCredentials", mock.Anything).Return(catalogsync.MediaCredentials{}, catalogsync.ErrCredentialMissing)
	metrics := newRecordingMetrics()
	u := newMediaUploader(platform, creds, DefaultMediaChunkSize, DefaultMediaMaxBytes)
	u.metrics = metrics

	session := u.session()
	first := session.Resolve(context.Background(), withImages(1, pngDataURI(), "https://cdn.example.com/a.jpg"))
	second := session.Resolve(context.Background(), withImages(2, pngDataURI()))

	assert.Equal(t, []catalogsync.MediaRef{{Src: "https://cdn.example.com/a.jpg"}}, first)
	assert.Empty(t, second)
	creds.AssertNumberOfCalls(t, "MediaCredentials", 1)
	assert.Equal(t, 2, metrics.media[mediaOutcomeSkipped])
	platform.AssertNotCalled(t, "UploadMedia", mock.Anything, mock.Anything, mock.Anything)

	// a new batch tries again
	u.session().Resolve(context.Background(), withImages(3, pngDataURI()))
	creds.AssertNumberOfCalls(t, "MediaCredentials", 2)
}

func TestMediaSession_NilProviderMeansMissing(t *testing.T) {
	u := newMediaUploader(new(MockCatalogPlatform), nil, DefaultMediaChunkSize, DefaultMediaMaxBytes)

	refs := u.session().Resolve(context.Background(), withImages(1, pngDataURI()))

	assert.Empty(t, refs)
}

func TestMediaSession_IncompleteCredentials(t *testing.T) {
	creds := new(MockCredentialProvider)
	creds.On("MediaCredentials", mock.Anything).Return(catalogsync.MediaCredentials{Username: "admin"}, nil)
	u := newMediaUploader(new(MockCatalogPlatform), creds, DefaultMediaChunkSize, DefaultMediaMaxBytes)

	_, err := u.credentials(context.Background())

	assert.ErrorIs(t, err, catalogsync.ErrCredentialMissing)
}

func TestMediaSession_FailedImageIsOmitted(t *testing.T) {
	platform := new(MockCatalogPlatform)
	platform.On("UploadMedia", mock.Anything, operatorCreds, mock.MatchedBy(func(up catalogsync.MediaUpload) bool {
		return up.Filename == "PDV-5.png"
	})).Return(nil, errors.New("413 too large"))
	platform.On("UploadMedia", mock.Anything, operatorCreds, mock.MatchedBy(func(up catalogsync.MediaUpload) bool {
		return up.Filename == "PDV-5-2.png"
	})).Return(&catalogsync.RemoteMediaAsset{ID: 52}, nil)
	creds := new(MockCredentialProvider)
	creds.On("MediaCredentials", mock.Anything).Return(operatorCreds, nil)
	u := newMediaUploader(platform, creds, DefaultMediaChunkSize, DefaultMediaMaxBytes)

	refs := u.session().Resolve(context.Background(), withImages(5, pngDataURI(), pngDataURI(), "ftp://nope/x.png"))

	assert.Equal(t, []catalogsync.MediaRef{{ID: 52}}, refs)
}

func TestMediaSession_StoredImage(t *testing.T) {
	platform := new(MockCatalogPlatform)
	platform.On("UploadMedia", mock.Anything, operatorCreds, mock.MatchedBy(func(up catalogsync.MediaUpload) bool {
		return up.Filename == "PDV-9.png" && up.ContentType == "image/png"
	})).Return(&catalogsync.RemoteMediaAsset{ID: 90}, nil)
	creds := new(MockCredentialProvider)
	creds.On("MediaCredentials", mock.Anything).Return(operatorCreds, nil)
	store := new(MockImageStore)
	store.On("Fetch", mock.Anything, "pos-images", "items/9.png").Return(pixelPNG, "binary/octet-stream", nil)
	u := newMediaUploader(platform, creds, DefaultMediaChunkSize, DefaultMediaMaxBytes)
	u.images = store

	refs := u.session().Resolve(context.Background(), withImages(9, "s3://pos-images/items/9.png"))

	assert.Equal(t, []catalogsync.MediaRef{{ID: 90}}, refs)
	store.AssertExpectations(t)
}

func TestMediaSession_StoredImageWithoutStore(t *testing.T) {
	creds := new(MockCredentialProvider)
	creds.On("MediaCredentials", mock.Anything).Return(operatorCreds, nil)
	u := newMediaUploader(new(MockCatalogPlatform), creds, DefaultMediaChunkSize, DefaultMediaMaxBytes)

	_, _, err := u.load(context.Background(), "s3://pos-images/items/9.png")

	assert.ErrorIs(t, err, catalogsync.ErrUnsupportedImage)
}

func TestDecodeDataURI(t *testing.T) {
	payload := bytes.Repeat([]byte("catalog-sync-"), 500)
	uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(payload)

	tests := []struct {
		name      string
		chunkSize int
	}{
		{"single chunk", 1 << 20},
		{"small chunks", 8},
		{"odd chunk", 4 * 37},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, contentType, err := decodeDataURI(uri, tt.chunkSize, DefaultMediaMaxBytes)
			require.NoError(t, err)
			assert.Equal(t, payload, data)
			assert.Equal(t, "image/jpeg", contentType)
		})
	}
}

func TestDecodeDataURI_Errors(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		max     int
		wantErr error
	}{
		{"missing comma", "data:image/png;base64", DefaultMediaMaxBytes, catalogsync.ErrUnsupportedImage},
		{"bad percent escape", "data:image/svg+xml,%zz", DefaultMediaMaxBytes, catalogsync.ErrUnsupportedImage},
		{"corrupt payload", "data:image/png;base64,@@@@", DefaultMediaMaxBytes, catalogsync.ErrUnsupportedImage},
		{"empty payload", "data:image/png;base64,", DefaultMediaMaxBytes, catalogsync.ErrUnsupportedImage},
		{"too large", string(pngDataURI()), 16, catalogsync.ErrImageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := decodeDataURI(tt.uri, DefaultMediaChunkSize, tt.max)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeDataURI_PercentEncoded(t *testing.T) {
	uri := "data:image/svg+xml,%3Csvg%20xmlns%3D%22http%3A%2F%2Fwww.w3.org%2F2000%2Fsvg%22%2F%3E"

	data, contentType, err := decodeDataURI(uri, DefaultMediaChunkSize, DefaultMediaMaxBytes)

	require.NoError(t, err)
	assert.Equal(t, `<svg xmlns="http://www.w3.org/2000/svg"/>`, string(data))
	assert.Equal(t, "image/svg+xml", contentType)
}

func TestDecodeDataURI_UnpaddedBase64(t *testing.T) {
	uri := "data:image/png;base64," + base64.RawStdEncoding.EncodeToString(pixelPNG)

	data, _, err := decodeDataURI(uri, 8, DefaultMediaMaxBytes)

	require.NoError(t, err)
	assert.Equal(t, pixelPNG, data)
}

func TestDecodeDataURI_SniffsUnknownType(t *testing.T) {
	uri := "data:application/octet-stream;base64,\n" + base64.StdEncoding.EncodeToString(pixelPNG)

	data, contentType, err := decodeDataURI(uri, DefaultMediaChunkSize, DefaultMediaMaxBytes)

	require.NoError(t, err)
	assert.Equal(t, pixelPNG, data)
	assert.Equal(t, "image/png", contentType)
}

func TestMediaFilename(t *testing.T) {
	item := catalogsync.LocalCatalogItem{ID: 42}

	assert.Equal(t, "PDV-42.png", mediaFilename(item, 0, "image/png"))
	assert.Equal(t, "PDV-42-2.jpg", mediaFilename(item, 1, "image/jpeg"))
	assert.Equal(t, "PDV-42-3.bin", mediaFilename(item, 2, "text/plain"))
}

func TestNewMediaUploader_AlignsChunkSize(t *testing.T) {
	assert.Equal(t, 8, newMediaUploader(nil, nil, 10, 100).chunkSize)
	assert.Equal(t, 4, newMediaUploader(nil, nil, 2, 100).chunkSize)
}

func TestSyncProducts_WithEmbeddedImage(t *testing.T) {
	platform := new(MockCatalogPlatform)
	reachable(platform)
	platform.On("FindProductBySKU", mock.Anything, "PDV-7").Return(nil, nil)
	platform.On("UploadMedia", mock.Anything, operatorCreds, mock.Anything).Return(&catalogsync.RemoteMediaAsset{ID: 70}, nil)
	platform.On("CreateProduct", mock.Anything, mock.MatchedBy(func(p catalogsync.RemoteProduct) bool {
		return len(p.Images) == 1 && p.Images[0].ID == 70
	})).Return(&catalogsync.RemoteProduct{ID: 700}, nil)
	creds := new(MockCredentialProvider)
	creds.On("MediaCredentials", mock.Anything).Return(operatorCreds, nil)
	s := newTestService(t, platform, creds)

	result := s.SyncProducts(context.Background(), []catalogsync.LocalCatalogItem{withImages(7, pngDataURI())})

	assert.True(t, result.Success())
	assert.Equal(t, 1, result.Created)
}
