package web

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/go-while/go-redsocial/internal/auth"
	"github.com/go-while/go-redsocial/internal/config"
	"github.com/go-while/go-redsocial/internal/database"
	"github.com/go-while/go-redsocial/internal/models"
)

const testSecret = "abcdefg"

// memStore is an in-memory AccountStore
type memStore struct {
	mu       sync.Mutex
	accounts []*models.Account
	calls    []string

	findErr   error
	pageErr   error
	insertErr error
	insertID  *int64 // overrides the generated id
}

func (m *memStore) FindAccounts(_ context.Context, c models.Criteria) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "find")
	if m.findErr != nil {
		return nil, m.findErr
	}
	if c.PasswordDigest != "" && c.Email == "" {
		return nil, database.ErrIncompleteCriteria
	}
	var out []*models.Account
	for _, a := range m.accounts {
		if c.Email != "" && a.Email != c.Email {
			continue
		}
		if c.PasswordDigest != "" && a.PasswordDigest != c.PasswordDigest {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) FindAccountsPage(_ context.Context, page int) ([]*models.Account, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "page")
	if m.pageErr != nil {
		return nil, 0, m.pageErr
	}
	if page < 1 {
		return nil, 0, database.ErrInvalidPage
	}
	start := (page - 1) * models.AccountsPerPage
	if start > len(m.accounts) {
		start = len(m.accounts)
	}
	end := start + models.AccountsPerPage
	if end > len(m.accounts) {
		end = len(m.accounts)
	}
	return m.accounts[start:end], len(m.accounts), nil
}

func (m *memStore) InsertAccount(_ context.Context, a *models.Account) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "insert")
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	if a.Email == "" {
		return 0, database.ErrEmptyEmail
	}
	if m.insertID != nil {
		return *m.insertID, nil
	}
	a.ID = int64(len(m.accounts) + 1)
	m.accounts = append(m.accounts, a)
	return a.ID, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

func (m *memStore) seed(t *testing.T, n int) {
	t.Helper()
	h, err := auth.NewHasher(testSecret)
	require.NoError(t, err)
	for i := 1; i <= n; i++ {
		_, err := m.InsertAccount(context.Background(), &models.Account{
			Email:          "user" + string(rune('a'+i-1)) + "@email.com",
			DisplayName:    "User " + string(rune('A'+i-1)),
			PasswordDigest: h.Digest("123456"),
		})
		require.NoError(t, err)
	}
	m.calls = nil
}

func newTestServer(t *testing.T, store AccountStore) *WebServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	renderer, err := NewTemplateRenderer(EmbeddedTemplatesFS)
	require.NoError(t, err)

	webconfig := &config.WebConfig{ListenPort: 8081, Secret: testSecret}
	server, err := NewServer(store, renderer, webconfig, zaptest.NewLogger(t))
	require.NoError(t, err)
	return server
}

func do(s *WebServer, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func postForm(s *WebServer, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(s, req, cookies...)
}

func get(s *WebServer, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return do(s, httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

func login(t *testing.T, s *WebServer, email, password string) []*http.Cookie {
	t.Helper()
	rec := postForm(s, "/identificarse", url.Values{"email": {email}, "password": {password}})
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/listarUsuarios", rec.Header().Get("Location"))
	return rec.Result().Cookies()
}

// redirectQuery splits a redirect Location into its path and query
func redirectQuery(t *testing.T, rec *httptest.ResponseRecorder) (string, url.Values) {
	t.Helper()
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return loc.Path, loc.Query()
}

func registration(email, nombre, password, password2 string) url.Values {
	return url.Values{
		"email":     {email},
		"nombre":    {nombre},
		"password":  {password},
		"password2": {password2},
	}
}

func TestNewServerRequiresSecret(t *testing.T) {
	renderer, err := NewTemplateRenderer(EmbeddedTemplatesFS)
	require.NoError(t, err)
	_, err = NewServer(&memStore{}, renderer, &config.WebConfig{ListenPort: 1}, nil)
	assert.ErrorIs(t, err, auth.ErrEmptySecret)
}

func TestPing(t *testing.T) {
	s := newTestServer(t, &memStore{})
	rec := get(s, "/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRequestIDReused(t *testing.T) {
	s := newTestServer(t, &memStore{})
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := do(s, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestFormPages(t *testing.T) {
	s := newTestServer(t, &memStore{})

	rec := get(s, "/registrarse")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/usuario"`)
	assert.Contains(t, rec.Body.String(), `name="password2"`)

	rec = get(s, "/identificarse")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Identificación de usuario")
}

func TestFormPageShowsMessage(t *testing.T) {
	s := newTestServer(t, &memStore{})

	rec := get(s, messageURL("/identificarse", MsgRegistered, AlertSuccess))
	body := rec.Body.String()
	assert.Contains(t, body, MsgRegistered)
	assert.Contains(t, body, `class="alert alert-success"`)

	// unknown alert classes and markup are not echoed back
	rec = get(s, "/registrarse?mensaje=%3Cb%3Ehola%3C%2Fb%3E&tipoMensaje=%22onclick")
	body = rec.Body.String()
	assert.Contains(t, body, "&lt;b&gt;hola&lt;/b&gt;")
	assert.Contains(t, body, `class="alert alert-info"`)
	assert.NotContains(t, body, "onclick")
}

func TestRegisterPasswordMismatch(t *testing.T) {
	for _, pair := range [][2]string{{"123456", "1234567"}, {"a", ""}, {"", "b"}, {"Secreto", "secreto"}} {
		store := &memStore{}
		s := newTestServer(t, store)

		rec := postForm(s, "/usuario", registration("mismatch@email.com", "Mismatch", pair[0], pair[1]))
		path, q := redirectQuery(t, rec)
		assert.Equal(t, "/registrarse", path)
		assert.Equal(t, MsgPasswordMismatch, q.Get("mensaje"))
		assert.Equal(t, AlertDanger, q.Get("tipoMensaje"))
		assert.Zero(t, store.count())
		assert.Empty(t, store.calls, "no store call on mismatch")
	}
}

func TestRegisterSuccess(t *testing.T) {
	store := &memStore{}
	s := newTestServer(t, store)

	rec := postForm(s, "/usuario", registration("nuevo@email.com", "Nuevo", "123456", "123456"))
	path, q := redirectQuery(t, rec)
	assert.Equal(t, "/identificarse", path)
	assert.Equal(t, MsgRegistered, q.Get("mensaje"))
	assert.Equal(t, AlertSuccess, q.Get("tipoMensaje"))

	require.Equal(t, 1, store.count())
	created := store.accounts[0]
	assert.Equal(t, "nuevo@email.com", created.Email)
	assert.Equal(t, "Nuevo", created.DisplayName)

	h, _ := auth.NewHasher(testSecret)
	assert.Equal(t, h.Digest("123456"), created.PasswordDigest)
	assert.Equal(t, []string{"find", "insert"}, store.calls)
}

func TestRegisterNormalizesInput(t *testing.T) {
	store := &memStore{}
	s := newTestServer(t, store)

	postForm(s, "/usuario", registration("  jose@email.com ", " José ", "pw", "pw"))
	require.Equal(t, 1, store.count())
	assert.Equal(t, "jose@email.com", store.accounts[0].Email)
	assert.Equal(t, "José", store.accounts[0].DisplayName)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := &memStore{}
	store.seed(t, 1)
	s := newTestServer(t, store)

	rec := postForm(s, "/usuario", registration("usera@email.com", "Otro", "otra", "otra"))
	path, q := redirectQuery(t, rec)
	assert.Equal(t, "/registrarse", path)
	assert.Equal(t, MsgEmailTaken, q.Get("mensaje"))
	assert.Equal(t, AlertDanger, q.Get("tipoMensaje"))
	assert.Equal(t, 1, store.count())
	assert.Equal(t, []string{"find"}, store.calls)
}

func TestRegisterStoreFailures(t *testing.T) {
	noID := int64(0)
	tests := []struct {
		name  string
		store *memStore
		msg   string
	}{
		{"lookup error", &memStore{findErr: errors.New("disk on fire")}, MsgRegisterFailed},
		{"insert error", &memStore{insertErr: errors.New("disk on fire")}, MsgRegisterFailed},
		{"no identifier", &memStore{insertID: &noID}, MsgRegisterFailed},
		{"unique violation", &memStore{insertErr: database.ErrDuplicateEmail}, MsgEmailTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.store)
			rec := postForm(s, "/usuario", registration("x@email.com", "X", "pw", "pw"))
			path, q := redirectQuery(t, rec)
			assert.Equal(t, "/registrarse", path)
			assert.Equal(t, tt.msg, q.Get("mensaje"))
			assert.Equal(t, AlertDanger, q.Get("tipoMensaje"))
			assert.NotContains(t, rec.Header().Get("Location"), "disk on fire")
			assert.Zero(t, tt.store.count())
		})
	}
}

func TestLoginSuccessSetsSession(t *testing.T) {
	store := &memStore{}
	store.seed(t, 3)
	s := newTestServer(t, store)

	cookies := login(t, s, "userb@email.com", "123456")
	require.NotEmpty(t, cookies)

	rec := get(s, "/listarUsuarios", cookies...)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Usuarios de la aplicación")
	assert.Contains(t, body, "Desconectarse (userb@email.com)")

	rec = get(s, "/", cookies...)
	assert.Equal(t, "/listarUsuarios", rec.Header().Get("Location"))
}

func TestLoginFailureIsUniform(t *testing.T) {
	store := &memStore{}
	store.seed(t, 1)
	s := newTestServer(t, store)

	unknown := postForm(s, "/identificarse", url.Values{"email": {"nadie@email.com"}, "password": {"123456"}})
	wrong := postForm(s, "/identificarse", url.Values{"email": {"usera@email.com"}, "password": {"mal"}})

	for _, rec := range []*httptest.ResponseRecorder{unknown, wrong} {
		path, q := redirectQuery(t, rec)
		assert.Equal(t, "/identificarse", path)
		assert.Equal(t, MsgBadCredentials, q.Get("mensaje"))
		assert.Equal(t, AlertDanger, q.Get("tipoMensaje"))
	}
	assert.Equal(t, unknown.Header().Get("Location"), wrong.Header().Get("Location"))
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())
}

func TestLoginFailureClearsSession(t *testing.T) {
	store := &memStore{}
	store.seed(t, 1)
	s := newTestServer(t, store)

	cookies := login(t, s, "usera@email.com", "123456")
	rec := postForm(s, "/identificarse", url.Values{"email": {"usera@email.com"}, "password": {"mal"}}, cookies...)
	_, q := redirectQuery(t, rec)
	assert.Equal(t, MsgBadCredentials, q.Get("mensaje"))

	// the rewritten cookie carries no identity
	rec = get(s, "/listarUsuarios", rec.Result().Cookies()...)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/identificarse", rec.Header().Get("Location"))
}

func TestLoginStoreErrorIsUniform(t *testing.T) {
	s := newTestServer(t, &memStore{findErr: errors.New("boom")})
	rec := postForm(s, "/identificarse", url.Values{"email": {"a@email.com"}, "password": {"x"}})
	path, q := redirectQuery(t, rec)
	assert.Equal(t, "/identificarse", path)
	assert.Equal(t, MsgBadCredentials, q.Get("mensaje"))
}

func TestListingRequiresSession(t *testing.T) {
	store := &memStore{}
	s := newTestServer(t, store)

	rec := get(s, "/listarUsuarios")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/identificarse", rec.Header().Get("Location"))
	assert.Empty(t, store.calls)

	rec = get(s, "/")
	assert.Equal(t, "/identificarse", rec.Header().Get("Location"))
}

func TestLogout(t *testing.T) {
	store := &memStore{}
	store.seed(t, 1)
	s := newTestServer(t, store)

	cookies := login(t, s, "usera@email.com", "123456")
	rec := get(s, "/desconectarse", cookies...)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/identificarse", rec.Header().Get("Location"))

	rec = get(s, "/listarUsuarios", rec.Result().Cookies()...)
	assert.Equal(t, "/identificarse", rec.Header().Get("Location"))
}

func TestListingPages(t *testing.T) {
	store := &memStore{}
	store.seed(t, 12)
	s := newTestServer(t, store)
	cookies := login(t, s, "usera@email.com", "123456")

	tests := []struct {
		query     string
		wantFirst string
		wantRows  int
	}{
		{"", "usera@email.com", 5},
		{"?pg=1", "usera@email.com", 5},
		{"?pg=abc", "usera@email.com", 5},
		{"?pg=0", "usera@email.com", 5},
		{"?pg=-3", "usera@email.com", 5},
		{"?pg=2", "userf@email.com", 5},
		{"?pg=3", "userk@email.com", 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := get(s, "/listarUsuarios"+tt.query, cookies...)
			require.Equal(t, http.StatusOK, rec.Code)
			body := rec.Body.String()
			assert.Contains(t, body, tt.wantFirst)
			assert.Equal(t, tt.wantRows, strings.Count(body, "<tr><td>"))
			assert.Contains(t, body, `href="/listarUsuarios?pg=3"`)
			assert.NotContains(t, body, `href="/listarUsuarios?pg=4"`)
		})
	}
}

func TestListingLastPage(t *testing.T) {
	for total, last := range map[int]int{1: 1, 5: 1, 10: 2, 11: 3, 12: 3} {
		store := &memStore{}
		store.seed(t, total)
		s := newTestServer(t, store)

		data := captureUsersPage(t, s)
		assert.Equal(t, 1, data.PgActual, "total=%d", total)
		assert.Equal(t, last, data.PgUltima, "total=%d", total)
		assert.Equal(t, last, data.Pagination.TotalPages, "total=%d", total)
		assert.LessOrEqual(t, len(data.Usuarios), models.AccountsPerPage)
	}
}

func TestListingStoreError(t *testing.T) {
	store := &memStore{}
	store.seed(t, 1)
	s := newTestServer(t, store)
	cookies := login(t, s, "usera@email.com", "123456")

	store.pageErr = errors.New("sqlite exploded")
	rec := get(s, "/listarUsuarios", cookies...)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error al listar usuarios")
	assert.NotContains(t, rec.Body.String(), "sqlite exploded")
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, &memStore{})
	rec := get(s, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Página no encontrada")
}

func TestParsePage(t *testing.T) {
	huge := strconv.Itoa(math.MaxInt)
	for raw, want := range map[string]int{"": 1, "1": 1, "2": 2, "abc": 1, "0": 1, "-1": 1, "2.5": 1, "17": 17, huge: models.MaxPage} {
		assert.Equal(t, want, parsePage(raw), raw)
	}
}

// recordingRenderer captures the data of the last rendered page
type recordingRenderer struct {
	Renderer
	last any
}

func (r *recordingRenderer) Render(name string, data any) (string, error) {
	r.last = data
	return r.Renderer.Render(name, data)
}

func captureUsersPage(t *testing.T, s *WebServer) UsersPageData {
	t.Helper()
	rr := &recordingRenderer{Renderer: s.Renderer}
	s.Renderer = rr
	cookies := login(t, s, "usera@email.com", "123456")
	rec := get(s, "/listarUsuarios", cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	data, ok := rr.last.(UsersPageData)
	require.True(t, ok)
	return data
}

func TestLoginEmptyEmailFails(t *testing.T) {
	store := &memStore{}
	store.seed(t, 2)
	s := newTestServer(t, store)

	for _, email := range []string{"", "   "} {
		rec := postForm(s, "/identificarse", url.Values{"email": {email}, "password": {"123456"}})
		path, q := redirectQuery(t, rec)
		assert.Equal(t, "/identificarse", path)
		assert.Equal(t, MsgBadCredentials, q.Get("mensaje"))
		assert.Equal(t, AlertDanger, q.Get("tipoMensaje"))

		rec = get(s, "/listarUsuarios", rec.Result().Cookies()...)
		assert.Equal(t, "/identificarse", rec.Header().Get("Location"))
	}
	assert.Empty(t, store.calls, "no lookup without email")

	// no email field at all
	rec := postForm(s, "/identificarse", url.Values{"password": {"123456"}})
	_, q := redirectQuery(t, rec)
	assert.Equal(t, MsgBadCredentials, q.Get("mensaje"))
}

func TestEmptyEmailAgainstSQLite(t *testing.T) {
	db, err := database.OpenDatabase(context.Background(),
		database.DefaultDBConfig(filepath.Join(t.TempDir(), "redsocial.sq3")), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := newTestServer(t, db)

	rec := postForm(s, "/usuario", registration("victima@email.com", "Victima", "123456", "123456"))
	path, _ := redirectQuery(t, rec)
	require.Equal(t, "/identificarse", path)

	rec = postForm(s, "/identificarse", url.Values{"email": {""}, "password": {"123456"}})
	path, q := redirectQuery(t, rec)
	assert.Equal(t, "/identificarse", path)
	assert.Equal(t, MsgBadCredentials, q.Get("mensaje"))

	rec = get(s, "/listarUsuarios", rec.Result().Cookies()...)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/identificarse", rec.Header().Get("Location"))

	rec = postForm(s, "/usuario", registration("", "Nadie", "pw", "pw"))
	path, q = redirectQuery(t, rec)
	assert.Equal(t, "/registrarse", path)
	assert.Equal(t, MsgEmailRequired, q.Get("mensaje"))

	total, err := db.CountAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	// the real account still logs in
	cookies := login(t, s, "victima@email.com", "123456")
	rec = get(s, "/listarUsuarios", cookies...)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterEmptyEmail(t *testing.T) {
	for _, seeded := range []int{0, 1} {
		store := &memStore{}
		store.seed(t, seeded)
		s := newTestServer(t, store)

		for _, email := range []string{"", "  "} {
			rec := postForm(s, "/usuario", registration(email, "Nadie", "pw", "pw"))
			path, q := redirectQuery(t, rec)
			assert.Equal(t, "/registrarse", path)
			assert.Equal(t, MsgEmailRequired, q.Get("mensaje"))
			assert.Equal(t, AlertDanger, q.Get("tipoMensaje"))
		}
		assert.Equal(t, seeded, store.count())
		assert.Empty(t, store.calls)
	}
}

func TestListingPagerLinks(t *testing.T) {
	store := &memStore{}
	store.seed(t, 12)
	s := newTestServer(t, store)
	cookies := login(t, s, "usera@email.com", "123456")

	body := get(s, "/listarUsuarios?pg=2", cookies...).Body.String()
	assert.Contains(t, body, `href="/listarUsuarios?pg=1" rel="prev"`)
	assert.Contains(t, body, `href="/listarUsuarios?pg=3" rel="next"`)

	body = get(s, "/listarUsuarios?pg=1", cookies...).Body.String()
	assert.NotContains(t, body, `rel="prev"`)
	assert.Contains(t, body, `href="/listarUsuarios?pg=2" rel="next"`)

	body = get(s, "/listarUsuarios?pg=3", cookies...).Body.String()
	assert.NotContains(t, body, `rel="next"`)
}

func TestListingHugePage(t *testing.T) {
	store := &memStore{}
	store.seed(t, 3)
	s := newTestServer(t, store)
	cookies := login(t, s, "usera@email.com", "123456")

	rr := &recordingRenderer{Renderer: s.Renderer}
	s.Renderer = rr
	rec := get(s, "/listarUsuarios?pg="+strconv.Itoa(math.MaxInt), cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	data := rr.last.(UsersPageData)
	assert.Equal(t, models.MaxPage, data.PgActual)
	assert.Empty(t, data.Usuarios)
	assert.Equal(t, 1, data.PgUltima)
}
