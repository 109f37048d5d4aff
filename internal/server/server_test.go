package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/api/handlers"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/api/middleware"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/config"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/repository/memrepo"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/service"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/storage/filestore"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/storage/session"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/storage/wal"
)

const maxBody = 1 << 20

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testAPI — роутер поверх хранилищ в памяти.
type testAPI struct {
	t      *testing.T
	repo   *memrepo.Store
	router http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := testLogger()
	dir := t.TempDir()

	store, err := filestore.New(dir)
	if err != nil {
		t.Fatalf("filestore.New() вернул ошибку: %v", err)
	}
	w, err := wal.New(filepath.Join(dir, ".wal"), logger)
	if err != nil {
		t.Fatalf("wal.New() вернул ошибку: %v", err)
	}

	repo := memrepo.New()
	sessions := session.NewMemoryStore(100, time.Hour)
	auth := service.NewAuthService(repo.Users(), sessions, nil,
		service.NewPasswordHasher(config.PasswordSHA1), time.Hour, logger)
	files := service.NewFileService(repo.Files(), store, w, nil, logger)
	status := service.NewStatusService(sessions, repo, repo.Users(), repo.Files(), logger)

	router := NewRouter(logger, Handlers{
		Health:   handlers.NewHealthHandler(status, logger, handlers.Named("metadata", repo)),
		Auth:     handlers.NewAuthHandler(auth, maxBody, logger),
		Files:    handlers.NewFilesHandler(files, maxBody, logger),
		Sessions: middleware.NewSessionAuth(auth, logger),
	})
	return &testAPI{t: t, repo: repo, router: router}
}

// do выполняет запрос; body сериализуется в JSON, если это не строка.
func (a *testAPI) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			a.t.Fatalf("json.Marshal() вернул ошибку: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set(middleware.TokenHeader, token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("ошибка разбора ответа %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("ожидался статус %d, получен %d: %s", status, rec.Code, rec.Body.String())
	}
	body := decode[map[string]string](t, rec)
	if body["error"] != message {
		t.Errorf("ожидалась ошибка %q, получено %q", message, body["error"])
	}
}

func basic(email, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+password))
}

// login регистрирует пользователя и возвращает его id и токен сессии.
func (a *testAPI) login(email string) (string, string) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/users", "", map[string]string{"email": email, "password": "secret"})
	if rec.Code != http.StatusCreated {
		a.t.Fatalf("регистрация %s: статус %d: %s", email, rec.Code, rec.Body.String())
	}
	id := decode[map[string]string](a.t, rec)["id"]

	rec = a.do(http.MethodGet, "/connect", "", nil, "Authorization", basic(email, "secret"))
	if rec.Code != http.StatusOK {
		a.t.Fatalf("вход %s: статус %d", email, rec.Code)
	}
	return id, decode[map[string]string](a.t, rec)["token"]
}

func TestRegistration(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/users", "", map[string]string{"email": "user@x.com", "password": "secret"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("ожидался 201, получен %d: %s", rec.Code, rec.Body.String())
	}
	user := decode[map[string]string](t, rec)
	if user["id"] == "" || user["email"] != "user@x.com" {
		t.Errorf("неожиданный ответ: %v", user)
	}
	if _, ok := user["password"]; ok {
		t.Error("хэш пароля не должен попадать в ответ")
	}

	rec = api.do(http.MethodPost, "/users", "", map[string]string{"email": "user@x.com", "password": "other"})
	expectError(t, rec, http.StatusBadRequest, "Already exist")

	expectError(t, api.do(http.MethodPost, "/users", "", map[string]string{"password": "x"}),
		http.StatusBadRequest, "Missing email")
	expectError(t, api.do(http.MethodPost, "/users", "", map[string]string{"email": "a@x.com"}),
		http.StatusBadRequest, "Missing password")
	// Некорректный JSON трактуется как пустое тело
	expectError(t, api.do(http.MethodPost, "/users", "", "{not json"),
		http.StatusBadRequest, "Missing email")
}

func TestSessionLifecycle(t *testing.T) {
	api := newTestAPI(t)
	id, token := api.login("user@x.com")

	rec := api.do(http.MethodGet, "/users/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d", rec.Code)
	}
	if me := decode[map[string]string](t, rec); me["id"] != id {
		t.Errorf("ожидали id %s, получено %s", id, me["id"])
	}

	if rec := api.do(http.MethodGet, "/disconnect", token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("disconnect: ожидался 204, получен %d", rec.Code)
	}
	expectError(t, api.do(http.MethodGet, "/users/me", token, nil), http.StatusUnauthorized, "Unauthorized")
	expectError(t, api.do(http.MethodGet, "/disconnect", token, nil), http.StatusUnauthorized, "Unauthorized")
	expectError(t, api.do(http.MethodGet, "/connect", "", nil, "Authorization", basic("user@x.com", "wrong")),
		http.StatusUnauthorized, "Unauthorized")
}

func TestFolderHierarchy(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.login("user@x.com")

	rec := api.do(http.MethodPost, "/files", token, map[string]any{"name": "docs", "type": "folder", "parentId": 0})
	if rec.Code != http.StatusCreated {
		t.Fatalf("создание папки: статус %d: %s", rec.Code, rec.Body.String())
	}
	folder := decode[map[string]any](t, rec)
	folderID, _ := folder["id"].(string)
	if folder["parentId"] != float64(0) {
		t.Errorf("корневой parentId должен быть числом 0, получено %v", folder["parentId"])
	}

	rec = api.do(http.MethodPost, "/files", token, map[string]any{
		"name": "a.txt", "type": "file", "parentId": folderID,
		"data": base64.StdEncoding.EncodeToString([]byte("hello")),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("создание файла: статус %d: %s", rec.Code, rec.Body.String())
	}
	if file := decode[map[string]any](t, rec); file["parentId"] != folderID {
		t.Errorf("ожидали parentId %s, получено %v", folderID, file["parentId"])
	}

	expectError(t, api.do(http.MethodPost, "/files", token, map[string]any{
		"name": "b.txt", "type": "file", "parentId": "missing",
		"data": base64.StdEncoding.EncodeToString([]byte("x")),
	}), http.StatusBadRequest, "Parent not found")

	rec = api.do(http.MethodGet, "/files?parentId="+folderID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("список: статус %d", rec.Code)
	}
	if list := decode[[]map[string]any](t, rec); len(list) != 1 || list[0]["name"] != "a.txt" {
		t.Errorf("ожидали один файл a.txt, получено %v", list)
	}

	rec = api.do(http.MethodGet, "/files?page=abc", token, nil)
	if list := decode[[]map[string]any](t, rec); len(list) != 2 {
		t.Errorf("некорректный page трактуется как 0: ожидали 2 узла, получено %d", len(list))
	}

	rec = api.do(http.MethodGet, "/files?page=9223372036854775807", token, nil)
	if list := decode[[]map[string]any](t, rec); rec.Code != http.StatusOK || len(list) != 0 {
		t.Errorf("страница за пределами int-смещения: статус %d, %d узлов", rec.Code, len(list))
	}

	rec = api.do(http.MethodGet, "/files/"+folderID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /files/{id}: статус %d", rec.Code)
	}
	expectError(t, api.do(http.MethodGet, "/files/unknown", token, nil), http.StatusNotFound, "Not found")
	expectError(t, api.do(http.MethodGet, "/files", "", nil), http.StatusUnauthorized, "Unauthorized")
}

func TestContentVisibility(t *testing.T) {
	api := newTestAPI(t)
	_, owner := api.login("owner@x.com")
	_, stranger := api.login("other@x.com")
	payload := []byte("hello world")

	rec := api.do(http.MethodPost, "/files", owner, map[string]any{
		"name": "notes.json", "type": "file",
		"data": base64.StdEncoding.EncodeToString(payload),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("загрузка: статус %d: %s", rec.Code, rec.Body.String())
	}
	fileID, _ := decode[map[string]any](t, rec)["id"].(string)
	dataPath := "/files/" + fileID + "/data"

	rec = api.do(http.MethodGet, dataPath, owner, nil)
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Fatalf("владелец: статус %d, тело %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, ожидали application/json", ct)
	}

	expectError(t, api.do(http.MethodGet, dataPath, "", nil), http.StatusNotFound, "Not found")
	expectError(t, api.do(http.MethodGet, dataPath, stranger, nil), http.StatusNotFound, "Not found")
	expectError(t, api.do(http.MethodPut, "/files/"+fileID+"/publish", stranger, nil), http.StatusNotFound, "Not found")

	rec = api.do(http.MethodPut, "/files/"+fileID+"/publish", owner, nil)
	if rec.Code != http.StatusOK || decode[map[string]any](t, rec)["isPublic"] != true {
		t.Fatalf("publish: статус %d: %s", rec.Code, rec.Body.String())
	}

	rec = api.do(http.MethodGet, dataPath, "", nil)
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Fatalf("анонимный доступ к публичному файлу: статус %d, тело %q", rec.Code, rec.Body.String())
	}

	// Отсутствующая производная версия и некорректный size — 404
	expectError(t, api.do(http.MethodGet, dataPath+"?size=500", "", nil), http.StatusNotFound, "Not found")
	expectError(t, api.do(http.MethodGet, dataPath+"?size=big", "", nil), http.StatusNotFound, "Not found")

	rec = api.do(http.MethodPut, "/files/"+fileID+"/unpublish", owner, nil)
	if rec.Code != http.StatusOK || decode[map[string]any](t, rec)["isPublic"] != false {
		t.Fatalf("unpublish: статус %d", rec.Code)
	}
	expectError(t, api.do(http.MethodGet, dataPath, "", nil), http.StatusNotFound, "Not found")
}

func TestFolderHasNoContent(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.login("user@x.com")

	rec := api.do(http.MethodPost, "/files", token, map[string]any{"name": "docs", "type": "folder", "isPublic": true})
	folderID, _ := decode[map[string]any](t, rec)["id"].(string)

	expectError(t, api.do(http.MethodGet, "/files/"+folderID+"/data", "", nil),
		http.StatusBadRequest, "A folder doesn't have content")
}

func TestBodyLimit(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.login("user@x.com")

	huge := strings.Repeat("A", maxBody+1)
	rec := api.do(http.MethodPost, "/files", token, map[string]any{"name": "big", "type": "file", "data": huge})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("ожидался 413, получен %d", rec.Code)
	}
}

func TestStatusAndStats(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.login("user@x.com")
	api.do(http.MethodPost, "/files", token, map[string]any{"name": "docs", "type": "folder"})

	rec := api.do(http.MethodGet, "/status", "", nil)
	if st := decode[map[string]bool](t, rec); !st["redis"] || !st["db"] {
		t.Errorf("ожидали оба хранилища доступными: %v", st)
	}

	rec = api.do(http.MethodGet, "/stats", "", nil)
	if st := decode[map[string]int](t, rec); st["users"] != 1 || st["files"] != 1 {
		t.Errorf("ожидали users=1 files=1: %v", st)
	}

	if rec := api.do(http.MethodGet, "/health/ready", "", nil); rec.Code != http.StatusOK {
		t.Errorf("ready: ожидался 200, получен %d", rec.Code)
	}

	api.repo.FailPing = io.ErrUnexpectedEOF
	if rec := api.do(http.MethodGet, "/health/ready", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready при недоступной БД: ожидался 503, получен %d", rec.Code)
	}
	rec = api.do(http.MethodGet, "/status", "", nil)
	if st := decode[map[string]bool](t, rec); st["db"] {
		t.Error("db должен быть false при недоступной БД")
	}
}

func TestServiceRoutes(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/health/live", "/metrics", "/openapi.yaml"} {
		if rec := api.do(http.MethodGet, path, "", nil); rec.Code != http.StatusOK {
			t.Errorf("%s: ожидался 200, получен %d", path, rec.Code)
		}
	}
}
