package server

import (
	"net/http"
	"testing"
)

func TestAnonymousContributionSucceeds(t *testing.T) {
	router, objects := newTestRouter(t)
	token := registerUser(t, router, "owner@example.com")
	book := createBook(t, router, token, "Class of 2026")
	bookID := book["id"].(string)

	body, contentType := buildMultipartBody(t, imageFiles(2), map[string][]string{
		"notes": {"first day", "last day"},
	})
	recorder := performMultipart(t, router, "/api/memory-books/"+bookID+"/contributions", "", body, contentType)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	payload := decodeBody(t, recorder)
	created, ok := payload["contributions"].([]any)
	if !ok || len(created) != 2 {
		t.Fatalf("expected 2 contributions, got %s", recorder.Body.String())
	}
	first := created[0].(map[string]any)
	if first["note"] != "first day" {
		t.Fatalf("unexpected note %v", first["note"])
	}
	if _, hasContributor := first["contributorUserId"]; hasContributor {
		t.Fatal("anonymous contributions must not carry a contributor id")
	}
	if objects.SaveCalls() != 2 {
		t.Fatalf("expected 2 blob stores, got %d", objects.SaveCalls())
	}
}

func TestAuthenticatedContributionRecordsContributor(t *testing.T) {
	router, _ := newTestRouter(t)
	ownerToken := registerUser(t, router, "owner@example.com")
	contributorToken := registerUser(t, router, "friend@example.com")
	book := createBook(t, router, ownerToken, "Class of 2026")
	bookID := book["id"].(string)

	body, contentType := buildMultipartBody(t, imageFiles(1), nil)
	recorder := performMultipart(t, router, "/api/memory-books/"+bookID+"/contributions", contributorToken, body, contentType)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	created := decodeBody(t, recorder)["contributions"].([]any)
	contribution := created[0].(map[string]any)
	contributorID, _ := contribution["contributorUserId"].(string)
	if contributorID == "" {
		t.Fatalf("expected a contributor id, got %s", recorder.Body.String())
	}
}

func TestContributionRejectsTooManyFiles(t *testing.T) {
	router, objects := newTestRouter(t)
	token := registerUser(t, router, "owner@example.com")
	book := createBook(t, router, token, "Class of 2026")
	bookID := book["id"].(string)

	body, contentType := buildMultipartBody(t, imageFiles(11), nil)
	recorder := performMultipart(t, router, "/api/memory-books/"+bookID+"/contributions", "", body, contentType)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if code := errorCode(t, recorder); code != "TOO_MANY_FILES" {
		t.Fatalf("expected TOO_MANY_FILES, got %q", code)
	}
	if objects.SaveCalls() != 0 {
		t.Fatalf("no blob may be stored for a rejected batch, got %d", objects.SaveCalls())
	}
}

func TestContributionRejectsMismatchedNotes(t *testing.T) {
	router, _ := newTestRouter(t)
	token := registerUser(t, router, "owner@example.com")
	book := createBook(t, router, token, "Class of 2026")
	bookID := book["id"].(string)

	body, contentType := buildMultipartBody(t, imageFiles(3), map[string][]string{
		"notes": {"only", "two"},
	})
	recorder := performMultipart(t, router, "/api/memory-books/"+bookID+"/contributions", "", body, contentType)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if code := errorCode(t, recorder); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %q", code)
	}
}

func TestContributionTargetMustExist(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := buildMultipartBody(t, imageFiles(1), nil)
	recorder := performMultipart(t, router, "/api/memory-books/missing-book/contributions", "", body, contentType)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if code := errorCode(t, recorder); code != "MEMORY_BOOK_NOT_FOUND" {
		t.Fatalf("expected MEMORY_BOOK_NOT_FOUND, got %q", code)
	}
}

func TestListContributionsIsPublicAndPaginated(t *testing.T) {
	router, _ := newTestRouter(t)
	token := registerUser(t, router, "owner@example.com")
	book := createBook(t, router, token, "Class of 2026")
	bookID := book["id"].(string)

	body, contentType := buildMultipartBody(t, imageFiles(3), nil)
	recorder := performMultipart(t, router, "/api/memory-books/"+bookID+"/contributions", "", body, contentType)
	if recorder.Code != http.StatusOK {
		t.Fatalf("seed submit failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = performJSON(t, router, http.MethodGet, "/api/memory-books/"+bookID+"/contributions?limit=2&offset=0", "", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(t, recorder)
	if total := payload["total"].(float64); total != 3 {
		t.Fatalf("expected total 3, got %v", total)
	}
	if data := payload["data"].([]any); len(data) != 2 {
		t.Fatalf("expected 2 items, got %d", len(data))
	}

	recorder = performJSON(t, router, http.MethodGet, "/api/memory-books/missing-book/contributions", "", "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown book, got %d", recorder.Code)
	}
}
