package handler

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/qwc/lisenssit/internal/auth"
	"github.com/qwc/lisenssit/internal/config"
	"github.com/qwc/lisenssit/internal/database"
	"github.com/qwc/lisenssit/internal/scan"
	sqlstore "github.com/qwc/lisenssit/internal/store/sql"
	"github.com/qwc/lisenssit/internal/testutil"
)

type testEnv struct {
	mux     *http.ServeMux
	handler *Handler
	users   *sqlstore.UserStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	users := sqlstore.NewUserStore(db)
	sessions := sqlstore.NewSessionStore(db)

	index, err := scan.NewSearchIndex(t.TempDir())
	if err != nil {
		t.Fatalf("creating search index: %v", err)
	}
	t.Cleanup(func() { index.Close() })

	cfg := config.Defaults()
	h := New(Deps{
		Config:         &cfg,
		Storage:        scan.NewFilesystemStorage(t.TempDir()),
		Projects:       sqlstore.NewProjectStore(db),
		Scans:          sqlstore.NewScanStore(db),
		Dependencies:   sqlstore.NewDependencyStore(db),
		Users:          users,
		Sessions:       sessions,
		Tokens:         sqlstore.NewTokenStore(db),
		Meta:           sqlstore.NewMetadataStore(db, database.DialectSQLite),
		Authenticators: []auth.Authenticator{auth.NewBuiltinAuthenticator(users)},
		SessionMgr:     auth.NewSessionManager(sessions, users, "lisenssit_session", 3600, false),
		SearchIndex:    index,
		Logger:         testutil.TestLogger(),
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	return &testEnv{mux: mux, handler: h, users: users}
}

func (e *testEnv) createUser(t *testing.T, username, password, role string) *database.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatal(err)
	}
	user := &database.User{
		Username:   username,
		Email:      username + "@example.com",
		Password:   &hash,
		AuthSource: "builtin",
		Role:       role,
	}
	if err := e.users.Create(t.Context(), user); err != nil {
		t.Fatal(err)
	}
	return user
}

func (e *testEnv) login(t *testing.T, username, password string) []*http.Cookie {
	t.Helper()
	rec := e.do(jsonRequest(t, "POST", "/api/login", map[string]string{
		"username": username,
		"password": password,
	}), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed with status %d: %s", rec.Code, rec.Body.String())
	}
	return rec.Result().Cookies()
}

func (e *testEnv) loginAdmin(t *testing.T) []*http.Cookie {
	t.Helper()
	e.createUser(t, "admin", "secret", "admin")
	return e.login(t, "admin", "secret")
}

func (e *testEnv) do(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

const testBundleManifest = `
project: demo
runtime:
  - org.apache.lucene:lucene-core:9.9.1
  - io.netty:netty-common:4.1.100.Final
mappings:
  - pattern: "lucene-.*"
    name: lucene
`

// makeBundleZip builds a scan bundle with one Apache-licensed dependency and
// one dependency without a license file.
func makeBundleZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"manifest.yaml":               testBundleManifest,
		"licenses/lucene-LICENSE.txt": "Apache License\nVersion 2.0, January 2004",
	}
	for name, content := range files {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartUpload(t *testing.T, path, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("bundle", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (e *testEnv) createProject(t *testing.T, cookies []*http.Cookie, slug string) {
	t.Helper()
	rec := e.do(jsonRequest(t, "POST", "/api/projects", map[string]string{
		"slug": slug,
		"name": strings.ToUpper(slug),
	}), cookies)
	if rec.Code != http.StatusCreated {
		t.Fatalf("creating project: status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest("GET", "/healthz", nil), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "correct", "viewer")

	rec := env.do(jsonRequest(t, "POST", "/api/login", map[string]string{
		"username": "alice",
		"password": "wrong",
	}), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLoginAndMe(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "secret", "editor")
	cookies := env.login(t, "alice", "secret")

	rec := env.do(httptest.NewRequest("GET", "/api/me", nil), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var me userJSON
	decodeBody(t, rec, &me)
	if me.Username != "alice" || me.Role != "editor" {
		t.Errorf("me = %+v", me)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "secret", "viewer")
	cookies := env.login(t, "alice", "secret")

	rec := env.do(httptest.NewRequest("POST", "/api/logout", nil), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}

	rec = env.do(httptest.NewRequest("GET", "/api/me", nil), cookies)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("me after logout = %d, want 401", rec.Code)
	}
}

func TestRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest("GET", "/api/projects", nil), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestProjectCRUD(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.loginAdmin(t)

	env.createProject(t, cookies, "my-app")

	// Duplicate slug
	rec := env.do(jsonRequest(t, "POST", "/api/projects", map[string]string{"slug": "my-app"}), cookies)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", rec.Code)
	}

	// Invalid slug
	rec = env.do(jsonRequest(t, "POST", "/api/projects", map[string]string{"slug": "Not Valid!"}), cookies)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid slug = %d, want 400", rec.Code)
	}

	rec = env.do(httptest.NewRequest("GET", "/api/projects/my-app", nil), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("get project = %d", rec.Code)
	}
	var project projectJSON
	decodeBody(t, rec, &project)
	if project.Name != "MY-APP" {
		t.Errorf("name = %q", project.Name)
	}

	rec = env.do(jsonRequest(t, "PUT", "/api/projects/my-app", map[string]string{
		"name":        "Renamed",
		"description": "a service",
	}), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &project)
	if project.Name != "Renamed" || project.Description != "a service" {
		t.Errorf("after update: %+v", project)
	}

	rec = env.do(httptest.NewRequest("DELETE", "/api/projects/my-app", nil), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete = %d", rec.Code)
	}
	rec = env.do(httptest.NewRequest("GET", "/api/projects/my-app", nil), cookies)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestProjectCreateRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "eddy", "secret", "editor")
	cookies := env.login(t, "eddy", "secret")

	rec := env.do(jsonRequest(t, "POST", "/api/projects", map[string]string{"slug": "nope"}), cookies)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestScanUploadAndReport(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.loginAdmin(t)
	env.createProject(t, cookies, "demo")

	rec := env.do(multipartUpload(t, "/api/projects/demo/scans", "bundle.zip", makeBundleZip(t)), cookies)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload = %d: %s", rec.Code, rec.Body.String())
	}
	var uploaded scanJSON
	decodeBody(t, rec, &uploaded)
	if uploaded.Status != database.ScanStatusComplete {
		t.Errorf("status = %q, want complete", uploaded.Status)
	}
	if uploaded.Total != 2 || uploaded.UnknownCount != 1 {
		t.Errorf("total = %d, unknown = %d, want 2/1", uploaded.Total, uploaded.UnknownCount)
	}

	// Scan detail includes license counts
	rec = env.do(httptest.NewRequest("GET", fmt.Sprintf("/api/scans/%d", uploaded.ID), nil), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("get scan = %d", rec.Code)
	}
	var detail scanJSON
	decodeBody(t, rec, &detail)
	if detail.Licenses["Apache-2.0"] != 1 || detail.Licenses["UNKNOWN"] != 1 {
		t.Errorf("licenses = %v", detail.Licenses)
	}

	// License filter on the dependency listing
	rec = env.do(httptest.NewRequest("GET", fmt.Sprintf("/api/scans/%d/dependencies?license=UNKNOWN", uploaded.ID), nil), cookies)
	var depsResp struct {
		Dependencies []dependencyJSON `json:"dependencies"`
	}
	decodeBody(t, rec, &depsResp)
	if len(depsResp.Dependencies) != 1 || depsResp.Dependencies[0].Name != "io.netty:netty-common" {
		t.Errorf("unknown deps = %+v", depsResp.Dependencies)
	}

	// CSV report of the scan
	rec = env.do(httptest.NewRequest("GET", fmt.Sprintf("/api/scans/%d/report.csv", uploaded.ID), nil), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("scan report = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	want := "io.netty:netty-common,4.1.100.Final,https://repo1.maven.org/maven2/io/netty/netty-common/4.1.100.Final,UNKNOWN\n" +
		"org.apache.lucene:lucene-core,9.9.1,https://repo1.maven.org/maven2/org/apache/lucene/lucene-core/9.9.1,Apache-2.0\n"
	if rec.Body.String() != want {
		t.Errorf("csv = %q, want %q", rec.Body.String(), want)
	}

	// Project-level report serves the latest complete scan
	rec = env.do(httptest.NewRequest("GET", "/api/projects/demo/report.csv", nil), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("project report = %d", rec.Code)
	}
	if rec.Body.String() != want {
		t.Errorf("project csv = %q", rec.Body.String())
	}

	// Bundle download round-trips as a zip
	rec = env.do(httptest.NewRequest("GET", fmt.Sprintf("/api/scans/%d/bundle.zip", uploaded.ID), nil), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("bundle download = %d", rec.Code)
	}
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("reading bundle zip: %v", err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["manifest.yaml"] {
		t.Errorf("bundle zip missing manifest, got %v", names)
	}
}

func TestScanUploadBadBundle(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.loginAdmin(t)
	env.createProject(t, cookies, "demo")

	rec := env.do(multipartUpload(t, "/api/projects/demo/scans", "bundle.zip", []byte("not a zip")), cookies)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("upload = %d, want 400", rec.Code)
	}

	// The failed run is still recorded
	rec = env.do(httptest.NewRequest("GET", "/api/projects/demo/scans", nil), cookies)
	var list struct {
		Scans []scanJSON `json:"scans"`
	}
	decodeBody(t, rec, &list)
	if len(list.Scans) != 1 || list.Scans[0].Status != database.ScanStatusFailed {
		t.Errorf("scans = %+v, want one failed run", list.Scans)
	}
}

func TestScanUploadViewerForbidden(t *testing.T) {
	env := newTestEnv(t)
	admin := env.loginAdmin(t)
	env.createProject(t, admin, "demo")

	env.createUser(t, "viewer", "secret", "viewer")
	cookies := env.login(t, "viewer", "secret")

	rec := env.do(multipartUpload(t, "/api/projects/demo/scans", "bundle.zip", makeBundleZip(t)), cookies)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestScanUploadWithProjectToken(t *testing.T) {
	env := newTestEnv(t)
	admin := env.loginAdmin(t)
	env.createProject(t, admin, "demo")
	env.createProject(t, admin, "other")

	// Provision a robot with a token scoped to "demo"
	rec := env.do(jsonRequest(t, "POST", "/api/admin/robots", map[string]string{"username": "ci-bot"}), admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create robot = %d: %s", rec.Code, rec.Body.String())
	}
	var robot userJSON
	decodeBody(t, rec, &robot)

	rec = env.do(jsonRequest(t, "POST", fmt.Sprintf("/api/admin/robots/%d/tokens", robot.ID), map[string]any{
		"name":    "ci",
		"project": "demo",
	}), admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create token = %d: %s", rec.Code, rec.Body.String())
	}
	var tokenResp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &tokenResp)
	if tokenResp.Token == "" {
		t.Fatal("raw token not returned")
	}

	// Token works for its project
	req := multipartUpload(t, "/api/projects/demo/scans", "bundle.zip", makeBundleZip(t))
	req.Header.Set("Authorization", "Bearer "+tokenResp.Token)
	rec = env.do(req, nil)
	if rec.Code != http.StatusCreated {
		t.Errorf("scoped upload = %d: %s", rec.Code, rec.Body.String())
	}

	// Token is rejected for another project
	req = multipartUpload(t, "/api/projects/other/scans", "bundle.zip", makeBundleZip(t))
	req.Header.Set("Authorization", "Bearer "+tokenResp.Token)
	rec = env.do(req, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("cross-project upload = %d, want 401", rec.Code)
	}
}

func TestDeleteScan(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.loginAdmin(t)
	env.createProject(t, cookies, "demo")

	rec := env.do(multipartUpload(t, "/api/projects/demo/scans", "bundle.zip", makeBundleZip(t)), cookies)
	var uploaded scanJSON
	decodeBody(t, rec, &uploaded)

	rec = env.do(httptest.NewRequest("DELETE", fmt.Sprintf("/api/scans/%d", uploaded.ID), nil), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(httptest.NewRequest("GET", fmt.Sprintf("/api/scans/%d", uploaded.ID), nil), cookies)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestSearchAfterUpload(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.loginAdmin(t)
	env.createProject(t, cookies, "demo")

	rec := env.do(multipartUpload(t, "/api/projects/demo/scans", "bundle.zip", makeBundleZip(t)), cookies)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload = %d", rec.Code)
	}

	// Indexing runs asynchronously after the upload response.
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = env.do(httptest.NewRequest("GET", "/api/search?q=lucene", nil), cookies)
		if rec.Code != http.StatusOK {
			t.Fatalf("search = %d: %s", rec.Code, rec.Body.String())
		}
		var results scan.SearchResults
		decodeBody(t, rec, &results)
		if results.Total > 0 {
			if results.Results[0].Name != "org.apache.lucene:lucene-core" {
				t.Errorf("hit = %+v", results.Results[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("scan never showed up in search results")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestMetaEndpointsRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "viewer", "secret", "viewer")
	cookies := env.login(t, "viewer", "secret")

	rec := env.do(httptest.NewRequest("GET", "/api/meta/tables", nil), cookies)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestMetaTables(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.loginAdmin(t)

	rec := env.do(httptest.NewRequest("GET", "/api/meta/tables", nil), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Tables []struct {
			Name string `json:"name"`
		} `json:"tables"`
	}
	decodeBody(t, rec, &resp)
	names := map[string]bool{}
	for _, tb := range resp.Tables {
		names[tb.Name] = true
	}
	if !names["projects"] || !names["dependencies"] {
		t.Errorf("tables = %v", names)
	}

	rec = env.do(httptest.NewRequest("GET", "/api/meta/columns?table=dependencies&column=license%25", nil), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("columns = %d", rec.Code)
	}
	var cols struct {
		Columns []struct {
			Name string `json:"name"`
		} `json:"columns"`
	}
	decodeBody(t, rec, &cols)
	if len(cols.Columns) != 2 {
		t.Errorf("columns = %+v, want license and license_file", cols.Columns)
	}

	rec = env.do(httptest.NewRequest("GET", "/api/meta/procedures", nil), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("procedures = %d", rec.Code)
	}
}

func TestAdminUserManagement(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.loginAdmin(t)

	rec := env.do(jsonRequest(t, "POST", "/api/admin/users", map[string]string{
		"username": "bob",
		"password": "initial",
		"role":     "editor",
	}), cookies)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user = %d: %s", rec.Code, rec.Body.String())
	}
	var bob userJSON
	decodeBody(t, rec, &bob)

	// Duplicate username
	rec = env.do(jsonRequest(t, "POST", "/api/admin/users", map[string]string{
		"username": "bob",
		"password": "x",
	}), cookies)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate user = %d, want 409", rec.Code)
	}

	// Password reset takes effect
	rec = env.do(jsonRequest(t, "POST", fmt.Sprintf("/api/admin/users/%d/password", bob.ID), map[string]string{
		"password": "changed",
	}), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset password = %d", rec.Code)
	}
	env.login(t, "bob", "changed")

	// Admins cannot delete themselves
	var me userJSON
	rec = env.do(httptest.NewRequest("GET", "/api/me", nil), cookies)
	decodeBody(t, rec, &me)
	rec = env.do(httptest.NewRequest("DELETE", fmt.Sprintf("/api/admin/users/%d", me.ID), nil), cookies)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("self delete = %d, want 400", rec.Code)
	}

	rec = env.do(httptest.NewRequest("DELETE", fmt.Sprintf("/api/admin/users/%d", bob.ID), nil), cookies)
	if rec.Code != http.StatusOK {
		t.Errorf("delete user = %d", rec.Code)
	}
}

func TestAdminReindex(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.loginAdmin(t)
	env.createProject(t, cookies, "demo")

	rec := env.do(multipartUpload(t, "/api/projects/demo/scans", "bundle.zip", makeBundleZip(t)), cookies)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload = %d", rec.Code)
	}

	rec = env.do(httptest.NewRequest("POST", "/api/admin/reindex", nil), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("reindex = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Indexed int `json:"indexed"`
	}
	decodeBody(t, rec, &resp)
	if resp.Indexed != 1 {
		t.Errorf("indexed = %d, want 1", resp.Indexed)
	}
}
