package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/marigoldlabs/keepsake/backend/internal/accounts"
	"github.com/marigoldlabs/keepsake/backend/internal/auth"
	"github.com/marigoldlabs/keepsake/backend/internal/books"
	"github.com/marigoldlabs/keepsake/backend/internal/contributions"
	"github.com/marigoldlabs/keepsake/backend/internal/ids"
	"github.com/marigoldlabs/keepsake/backend/internal/publicid"
	storagememory "github.com/marigoldlabs/keepsake/backend/internal/storage/memory"
)

var routerTestTime = time.Date(2026, time.April, 2, 9, 30, 0, 0, time.UTC)

// newTestRouter assembles the full API over an in-memory database and an
// in-memory object store.
func newTestRouter(t *testing.T) (http.Handler, *storagememory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&accounts.User{}, &books.MemoryBook{}, &contributions.Contribution{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	idProvider := ids.NewUUIDProvider()
	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("router-test-secret"),
		Issuer:        "keepsake-auth",
		Audience:      "keepsake-api",
		TokenTTL:      time.Hour,
	})
	objects := storagememory.NewStore(0)

	accountsService, err := accounts.NewService(accounts.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
		Tokens:     issuer,
	})
	if err != nil {
		t.Fatalf("failed to build account service: %v", err)
	}

	booksService, err := books.NewService(books.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
		PublicIDs:  publicid.NewGenerator(),
		Objects:    objects,
	})
	if err != nil {
		t.Fatalf("failed to build books service: %v", err)
	}

	contributionsService, err := contributions.NewService(contributions.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
		Books:      booksService,
		Objects:    objects,
	})
	if err != nil {
		t.Fatalf("failed to build contributions service: %v", err)
	}

	router, err := NewHTTPHandler(Dependencies{
		Accounts:      accountsService,
		Books:         booksService,
		Contributions: contributionsService,
		Objects:       objects,
		Clock:         func() time.Time { return routerTestTime },
	})
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}
	return router, objects
}

func performJSON(t *testing.T, router http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, target, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func errorCode(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	payload := decodeBody(t, recorder)
	detail, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("response has no error envelope: %s", recorder.Body.String())
	}
	code, _ := detail["code"].(string)
	return code
}

func registerUser(t *testing.T, router http.Handler, email string) string {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":"sekret1","name":"Tester"}`, email)
	recorder := performJSON(t, router, http.MethodPost, "/api/auth/register", "", body)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("register failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	token, _ := decodeBody(t, recorder)["token"].(string)
	if token == "" {
		t.Fatal("register returned no token")
	}
	return token
}

func createBook(t *testing.T, router http.Handler, token, name string) map[string]any {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"type":"Class"}`, name)
	recorder := performJSON(t, router, http.MethodPost, "/api/memory-books", token, body)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create book failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	return decodeBody(t, recorder)
}

type multipartFile struct {
	fieldName   string
	filename    string
	contentType string
	content     string
}

func buildMultipartBody(t *testing.T, files []multipartFile, fields map[string][]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, file.fieldName, file.filename))
		header.Set("Content-Type", file.contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("failed to create multipart part: %v", err)
		}
		if _, err := part.Write([]byte(file.content)); err != nil {
			t.Fatalf("failed to write multipart part: %v", err)
		}
	}
	for field, values := range fields {
		for _, value := range values {
			if err := writer.WriteField(field, value); err != nil {
				t.Fatalf("failed to write multipart field: %v", err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func performMultipart(t *testing.T, router http.Handler, target, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(http.MethodPost, target, body)
	request.Header.Set("Content-Type", contentType)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func imageFiles(count int) []multipartFile {
	files := make([]multipartFile, 0, count)
	for i := 0; i < count; i++ {
		files = append(files, multipartFile{
			fieldName:   "files",
			filename:    fmt.Sprintf("photo-%d.jpg", i),
			contentType: "image/jpeg",
			content:     fmt.Sprintf("jpeg-bytes-%d", i),
		})
	}
	return files
}
