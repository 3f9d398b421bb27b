package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func uploadImage(t *testing.T, router http.Handler, token string) map[string]any {
	t.Helper()
	body, contentType := buildMultipartBody(t, []multipartFile{{
		fieldName:   "file",
		filename:    "holiday.jpg",
		contentType: "image/jpeg",
		content:     "jpeg-bytes",
	}}, nil)
	recorder := performMultipart(t, router, "/api/upload", token, body, contentType)
	if recorder.Code != http.StatusOK {
		t.Fatalf("upload failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	return decodeBody(t, recorder)
}

func TestUploadAndServeImage(t *testing.T) {
	router, _ := newTestRouter(t)
	token := registerUser(t, router, "owner@example.com")

	uploaded := uploadImage(t, router, token)
	url, _ := uploaded["url"].(string)
	filename, _ := uploaded["filename"].(string)
	if url != "/api/images/"+filename {
		t.Fatalf("unexpected url %q for filename %q", url, filename)
	}
	if uploaded["mimeType"] != "image/jpeg" {
		t.Fatalf("unexpected mime type %v", uploaded["mimeType"])
	}
	if want := routerTestTime.Format(time.RFC3339Nano); uploaded["uploadedAt"] != want {
		t.Fatalf("uploadedAt %v not read from the injected clock, want %s", uploaded["uploadedAt"], want)
	}

	request := httptest.NewRequest(http.MethodGet, url, http.NoBody)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if recorder.Body.String() != "jpeg-bytes" {
		t.Fatalf("served content mismatch: %q", recorder.Body.String())
	}
	if got := recorder.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %q", got)
	}
}

func TestUploadRejectsNonImages(t *testing.T) {
	router, _ := newTestRouter(t)
	token := registerUser(t, router, "owner@example.com")

	body, contentType := buildMultipartBody(t, []multipartFile{{
		fieldName:   "file",
		filename:    "report.pdf",
		contentType: "application/pdf",
		content:     "%PDF-1.7",
	}}, nil)
	recorder := performMultipart(t, router, "/api/upload", token, body, contentType)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if code := errorCode(t, recorder); code != "INVALID_FILE_TYPE" {
		t.Fatalf("expected INVALID_FILE_TYPE, got %q", code)
	}
}

func TestDeleteImageIsOwnerOnlyAndIdempotentlyMissing(t *testing.T) {
	router, _ := newTestRouter(t)
	token := registerUser(t, router, "owner@example.com")
	uploaded := uploadImage(t, router, token)
	filename := uploaded["filename"].(string)

	recorder := performJSON(t, router, http.MethodDelete, "/api/images/"+filename, "", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous delete: expected 401, got %d", recorder.Code)
	}

	recorder = performJSON(t, router, http.MethodDelete, "/api/images/"+filename, token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = performJSON(t, router, http.MethodDelete, "/api/images/"+filename, token, "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", recorder.Code)
	}
	if code := errorCode(t, recorder); code != "IMAGE_NOT_FOUND" {
		t.Fatalf("expected IMAGE_NOT_FOUND, got %q", code)
	}

	recorder = performJSON(t, router, http.MethodGet, "/api/images/"+filename, "", "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("deleted image must not be served, got %d", recorder.Code)
	}
}
