package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/hfi/credential-capture-agent/internal/records"
	"github.com/hfi/credential-capture-agent/internal/storage"
)

func newTestRouter(store storage.RecordStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	upserter := records.NewUpserter(store, zerolog.Nop(), nil)
	NewHandler(store, upserter, nil, zerolog.Nop()).Register(r.Group("/api"))
	return r
}

func seed(t *testing.T, store storage.RecordStore, n int) {
	t.Helper()
	recs := make([]storage.Record, n)
	for i := range recs {
		recs[i] = storage.Record{
			URL:      fmt.Sprintf("https://site%d.com/login", i),
			Origin:   fmt.Sprintf("https://site%d.com", i),
			Username: fmt.Sprintf("user%d", i),
			Password: "pw",
		}
	}
	if err := store.Save(context.Background(), recs); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

type listResponse struct {
	Code    string `json:"code"`
	Success bool   `json:"success"`
	Fail    bool   `json:"fail"`
	Data    page   `json:"data"`
}

func getList(t *testing.T, r *gin.Engine, query string) listResponse {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/records"+query, nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET %s status = %d", query, w.Code)
	}
	var resp listResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestList_Paging(t *testing.T) {
	store := storage.NewMemoryRecordStore()
	seed(t, store, 25)
	r := newTestRouter(store)

	first := getList(t, r, "?page=0&size=10")
	if first.Code != "200" || !first.Success || first.Fail {
		t.Errorf("envelope = %+v", first)
	}
	d := first.Data
	if d.TotalElements != 25 || d.TotalPages != 3 || d.NumberOfElements != 10 {
		t.Errorf("first page = %+v", d)
	}
	if !d.First || d.Last || d.Empty {
		t.Errorf("first page flags = %+v", d)
	}

	last := getList(t, r, "?page=2&size=10").Data
	if last.NumberOfElements != 5 || !last.Last || last.First {
		t.Errorf("last page = %+v", last)
	}

	beyond := getList(t, r, "?page=9&size=10").Data
	if !beyond.Empty || beyond.NumberOfElements != 0 || beyond.TotalElements != 25 {
		t.Errorf("page beyond end = %+v", beyond)
	}
}

func TestList_Filters(t *testing.T) {
	store := storage.NewMemoryRecordStore()
	store.Save(context.Background(), []storage.Record{
		{URL: "https://bank.com/login", Origin: "https://bank.com", Username: "alice", Password: "pw"},
		{URL: "https://mail.com/login", Origin: "https://mail.com", Username: "bob", Password: "pw"},
		{URL: "https://bank.com:8443/login", Origin: "https://bank.com:8443", Username: "bob", Password: "pw"},
	})
	r := newTestRouter(store)

	byUser := getList(t, r, "?username=bob").Data
	if byUser.TotalElements != 2 {
		t.Errorf("username filter matched %d, want 2", byUser.TotalElements)
	}

	byURL := getList(t, r, "?url=bank.com").Data
	if byURL.TotalElements != 2 {
		t.Errorf("url filter matched %d, want 2", byURL.TotalElements)
	}

	both := getList(t, r, "?username=bob&url=bank.com").Data
	if both.TotalElements != 1 || both.Content[0].Origin != "https://bank.com:8443" {
		t.Errorf("combined filter = %+v", both)
	}
}

func TestUpsert_CreateThenReplace(t *testing.T) {
	store := storage.NewMemoryRecordStore()
	r := newTestRouter(store)
	ctx := context.Background()

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/records", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	if w := post(`{"url":"https://ex.com/login","username":"bob","password":"pw1"}`); w.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	if w := post(`{"url":"https://ex.com/account","username":"bob2","password":"pw2"}`); w.Code != http.StatusOK {
		t.Fatalf("replace status = %d: %s", w.Code, w.Body.String())
	}

	got, _ := store.Load(ctx)
	if len(got) != 1 || got[0].Username != "bob2" || got[0].Password != "pw2" {
		t.Errorf("store after same-origin posts = %+v", got)
	}
}

func TestUpsert_Validation(t *testing.T) {
	r := newTestRouter(storage.NewMemoryRecordStore())

	tests := []struct {
		name string
		body string
	}{
		{"missing password", `{"url":"https://ex.com/login","username":"bob"}`},
		{"bad json", `{"url":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/api/records", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	store := storage.NewMemoryRecordStore()
	seed(t, store, 3)
	r := newTestRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/records/https%3A%2F%2Fsite1.com", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", w.Code, w.Body.String())
	}

	got, _ := store.Load(context.Background())
	if len(got) != 2 {
		t.Fatalf("store holds %d records after delete, want 2", len(got))
	}
	for _, rec := range got {
		if rec.Origin == "https://site1.com" {
			t.Error("deleted origin still present")
		}
	}

	// Deleting the same origin again is a miss.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/records/https%3A%2F%2Fsite1.com", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}
