package cookiestore

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mealassist-backend/internal/components/telemetry"
	"mealassist-backend/internal/environment"

	"github.com/google/go-cmp/cmp"
	random "github.com/mazen160/go-random"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func mustParse(t testing.TB, raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func randomString(t testing.TB) string {
	s, err := random.String(12)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newMemoryStore(t testing.TB) *Store {
	return New(NewFileStorage(t.TempDir()), environment.Static(true), &telemetry.Recorder{})
}

func TestMergeUpsertsByIdentity(t *testing.T) {
	s := newMemoryStore(t)
	u := mustParse(t, "https://app.example.com/sessions")

	s.Merge(u, []*http.Cookie{{Name: "auth_token", Value: "one"}})
	s.Merge(u, []*http.Cookie{{Name: "auth_token", Value: "two"}})
	s.Merge(u, []*http.Cookie{{Name: "auth_token", Value: "other-path", Path: "/api"}})

	require.Equal(t, 2, s.Len())
	c, ok := s.Get("app.example.com", "/", "auth_token")
	require.True(t, ok)
	require.Equal(t, "two", c.Value)
	require.True(t, c.HostOnly)

	c, ok = s.Get("app.example.com", "/api", "auth_token")
	require.True(t, ok)
	require.Equal(t, "other-path", c.Value)
}

func TestMergeDeletesExpired(t *testing.T) {
	s := newMemoryStore(t)
	u := mustParse(t, "https://app.example.com/")

	s.Merge(u, []*http.Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}})
	require.Equal(t, 2, s.Len())

	s.Merge(u, []*http.Cookie{
		{Name: "a", MaxAge: -1},
		{Name: "b", Expires: time.Now().Add(-time.Hour)},
	})
	require.Equal(t, 0, s.Len())
}

func TestCookiesFor(t *testing.T) {
	s := newMemoryStore(t)
	s.Merge(mustParse(t, "https://app.example.com/login"), []*http.Cookie{
		{Name: "host", Value: "1"},
		{Name: "wide", Value: "2", Domain: ".example.com"},
		{Name: "api", Value: "3", Path: "/api"},
		{Name: "secure", Value: "4", Secure: true},
	})

	names := func(cookies []*http.Cookie) []string {
		var out []string
		for _, c := range cookies {
			out = append(out, c.Name)
		}
		return out
	}

	require.ElementsMatch(t,
		[]string{"host", "wide", "api", "secure"},
		names(s.CookiesFor(mustParse(t, "https://app.example.com/api/meal_plan"))),
	)
	require.ElementsMatch(t,
		[]string{"host", "wide"},
		names(s.CookiesFor(mustParse(t, "http://app.example.com/apiary"))),
	)
	require.ElementsMatch(t,
		[]string{"wide"},
		names(s.CookiesFor(mustParse(t, "https://cdn.example.com/"))),
	)
	require.Empty(t, s.CookiesFor(mustParse(t, "https://example.org/")))

	// most specific path first
	require.Equal(t, "api", s.CookiesFor(mustParse(t, "https://app.example.com/api"))[0].Name)
}

func TestFind(t *testing.T) {
	s := newMemoryStore(t)
	s.Merge(mustParse(t, "https://app.example.com/users/1"), []*http.Cookie{
		{Name: "auth_token", Value: "x", Path: "/users"},
	})

	c, ok := s.Find("app.example.com", "auth_token")
	require.True(t, ok)
	require.Equal(t, "x", c.Value)

	_, ok = s.Find("other.example.com", "auth_token")
	require.False(t, ok)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := newMemoryStore(t)
	u := mustParse(t, "https://app.example.com/")

	var cookies []*http.Cookie
	for i := 0; i < 16; i++ {
		cookies = append(cookies, &http.Cookie{
			Name:     randomString(t),
			Value:    randomString(t),
			Domain:   []string{"", ".example.com", "app.example.com"}[i%3],
			Path:     []string{"/", "/api", "/users/me"}[i%3],
			Expires:  []time.Time{{}, time.Now().Add(time.Duration(i+1) * time.Hour)}[i%2],
			Secure:   i%2 == 0,
			HttpOnly: i%3 == 0,
			SameSite: []http.SameSite{http.SameSiteLaxMode, http.SameSiteStrictMode, http.SameSiteNoneMode, 0}[i%4],
		})
	}
	s.Merge(u, cookies)
	require.Equal(t, 16, s.Len())

	data, err := s.Encode()
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)

	diff := cmp.Diff(s.All(), decoded.All())
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("missing record", func(t *testing.T) {
		s, err := Load(ctx, NewFileStorage(t.TempDir()), environment.Static(true), &telemetry.Recorder{})
		require.NoError(t, err)
		require.Equal(t, 0, s.Len())
	})

	t.Run("corrupt record", func(t *testing.T) {
		storage := NewFileStorage(t.TempDir())
		require.NoError(t, os.WriteFile(storage.Path, []byte("{not json"), 0600))

		_, err := Load(ctx, storage, environment.Static(true), &telemetry.Recorder{})
		require.ErrorIs(t, err, ErrStorageCorrupt)
	})

	t.Run("unknown version", func(t *testing.T) {
		storage := NewFileStorage(t.TempDir())
		require.NoError(t, os.WriteFile(storage.Path, []byte(`{"version":7,"cookies":[]}`), 0600))

		_, err := Load(ctx, storage, environment.Static(true), &telemetry.Recorder{})
		require.ErrorIs(t, err, ErrStorageCorrupt)
	})

	t.Run("unreadable record", func(t *testing.T) {
		dir := t.TempDir()
		// a directory where the file should be cannot be read as a file
		storage := FileStorage{Path: dir}

		_, err := Load(ctx, storage, environment.Static(true), &telemetry.Recorder{})
		require.Error(t, err)
		require.False(t, errors.Is(err, ErrStorageCorrupt))
	})

	t.Run("saved record", func(t *testing.T) {
		storage := NewFileStorage(t.TempDir())
		s := New(storage, environment.Static(true), &telemetry.Recorder{})
		s.Merge(mustParse(t, "https://app.example.com/"), []*http.Cookie{{Name: "auth_token", Value: "v"}})
		s.Save(ctx)

		loaded, err := Load(ctx, storage, environment.Static(true), &telemetry.Recorder{})
		require.NoError(t, err)
		c, ok := loaded.Get("app.example.com", "/", "auth_token")
		require.True(t, ok)
		require.Equal(t, "v", c.Value)
	})
}

func TestNoPersistentStorage(t *testing.T) {
	ctx := context.Background()
	storage := NewFileStorage(t.TempDir())
	require.NoError(t, os.WriteFile(storage.Path, []byte("{corrupt"), 0600))

	s, err := Load(ctx, storage, environment.Static(false), &telemetry.Recorder{})
	require.NoError(t, err)

	s.Merge(mustParse(t, "https://app.example.com/"), []*http.Cookie{{Name: "a", Value: "1"}})
	s.Save(ctx)
	s.Reset(ctx)

	contents, err := os.ReadFile(storage.Path)
	require.NoError(t, err)
	require.Equal(t, "{corrupt", string(contents))
}

func TestSaveFailureIsReported(t *testing.T) {
	tel := &telemetry.Recorder{}
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))

	// the parent of the record is a file, so the write must fail
	s := New(FileStorage{Path: filepath.Join(blocker, "cookies.json")}, environment.Static(true), tel)
	s.Merge(mustParse(t, "https://app.example.com/"), []*http.Cookie{{Name: "a", Value: "1"}})
	s.Save(context.Background())

	require.Len(t, tel.Find("warning", report_store_save), 1)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	storage := NewFileStorage(t.TempDir())
	s := New(storage, environment.Static(true), &telemetry.Recorder{})
	s.Merge(mustParse(t, "https://app.example.com/"), []*http.Cookie{{Name: "a", Value: "1"}})
	s.Save(ctx)

	s.Reset(ctx)
	require.Equal(t, 0, s.Len())
	_, err := storage.Read(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	// resetting twice is fine
	s.Reset(ctx)
}

func TestSQLStorage(t *testing.T) {
	ctx := context.Background()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	alice, err := NewSQLStorage(ctx, db, "alice")
	require.NoError(t, err)
	bob, err := NewSQLStorage(ctx, db, "bob")
	require.NoError(t, err)

	_, err = alice.Read(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, alice.Write(ctx, []byte("first")))
	require.NoError(t, alice.Write(ctx, []byte("second")))
	require.NoError(t, bob.Write(ctx, []byte("bob")))

	data, err := alice.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, "second", string(data))

	require.NoError(t, alice.Delete(ctx))
	_, err = alice.Read(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	data, err = bob.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, "bob", string(data))
}
