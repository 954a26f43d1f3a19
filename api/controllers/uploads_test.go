package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abundantshare/share-backend/internal/media"
	"github.com/abundantshare/share-backend/pkg/enums"
)

type fakeSigner struct{ deleted []string }

func (f *fakeSigner) SignedURL(bucket, object, contentType string, expires time.Duration) (string, error) {
	return "https://storage.googleapis.com/" + bucket + "/" + object + "?Signature=x", nil
}

func (f *fakeSigner) SignedReadURL(bucket, object string, expires time.Duration) (string, error) {
	return "https://storage.googleapis.com/" + bucket + "/" + object + "?Signature=r", nil
}

func (f *fakeSigner) DeleteObject(ctx context.Context, bucket, object string) error {
	f.deleted = append(f.deleted, object)
	return nil
}

func newMediaService(t *testing.T, signer *fakeSigner) media.Service {
	t.Helper()
	svc, err := media.NewService(media.ServiceParams{
		Signer:        signer,
		Bucket:        "share-images",
		UploadTTL:     time.Minute,
		PublicBaseURL: "https://storage.googleapis.com",
		Logger:        testLogger(),
	})
	require.NoError(t, err)
	return svc
}

func TestPresignListingImage(t *testing.T) {
	svc := newMediaService(t, &fakeSigner{})

	body := `{"file_name":"bread.jpg","mime_type":"image/jpeg","size_bytes":2048}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/uploads/images", strings.NewReader(body)), "donor-1", enums.ProfileRoleUser)
	resp := httptest.NewRecorder()
	PresignListingImage(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	out := decodeData[media.PresignOutput](t, resp.Body)
	assert.True(t, strings.HasPrefix(out.ObjectKey, "listings/donor-1/"))
	assert.Equal(t, "image/jpeg", out.ContentType)
	assert.Contains(t, out.SignedPUTURL, "Signature=")
	assert.Equal(t, "https://storage.googleapis.com/share-images/"+out.ObjectKey, out.PublicURL)
}

func TestPresignListingImageRejectsBadType(t *testing.T) {
	svc := newMediaService(t, &fakeSigner{})

	body := `{"file_name":"menu.pdf","mime_type":"application/pdf","size_bytes":10}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/uploads/images", strings.NewReader(body)), "donor-1", enums.ProfileRoleUser)
	resp := httptest.NewRecorder()
	PresignListingImage(svc, testLogger())(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeErrorCode(t, resp.Body))
}

func TestUploadsWithoutBucket(t *testing.T) {
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/uploads/images", strings.NewReader(`{}`)), "donor-1", enums.ProfileRoleUser)
	resp := httptest.NewRecorder()
	PresignListingImage(nil, testLogger())(resp, req)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestDiscardListingImage(t *testing.T) {
	signer := &fakeSigner{}
	svc := newMediaService(t, signer)

	req := asUser(httptest.NewRequest(http.MethodDelete, "/api/v1/uploads/images?key=listings/donor-1/x/a.png", nil), "donor-1", enums.ProfileRoleUser)
	resp := httptest.NewRecorder()
	DiscardListingImage(svc, testLogger())(resp, req)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, []string{"listings/donor-1/x/a.png"}, signer.deleted)

	req = asUser(httptest.NewRequest(http.MethodDelete, "/api/v1/uploads/images?key=listings/donor-2/x/a.png", nil), "donor-1", enums.ProfileRoleUser)
	resp = httptest.NewRecorder()
	DiscardListingImage(svc, testLogger())(resp, req)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	req = asUser(httptest.NewRequest(http.MethodDelete, "/api/v1/uploads/images", nil), "donor-1", enums.ProfileRoleUser)
	resp = httptest.NewRecorder()
	DiscardListingImage(svc, testLogger())(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
