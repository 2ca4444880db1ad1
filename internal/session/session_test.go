package session

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var idPattern = regexp.MustCompile(`^session-[0-9a-f]{12}-\d+$`)

type failingStore struct {
	loadErr error
	saveErr error
	saves   int
}

func (s *failingStore) Load(context.Context) (string, error) { return "", s.loadErr }
func (s *failingStore) Save(context.Context, string) error {
	s.saves++
	return s.saveErr
}

func TestNewID_Format(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	id := newIDAt(at)
	assert.Regexp(t, idPattern, id)
	assert.Contains(t, id, "-1700000000123")
}

func TestNewID_Distinct(t *testing.T) {
	seen := make(map[string]bool, 5000)
	for i := 0; i < 5000; i++ {
		id := NewID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestProvider_GetOrCreateIsStable(t *testing.T) {
	store := NewMemoryStore()
	p := NewProvider(store)
	ctx := context.Background()

	first, err := p.GetOrCreate(ctx)
	require.NoError(t, err)
	second, err := p.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NoError(t, p.Degraded())

	// a new provider over the same profile sees the same id
	again, err := NewProvider(store).GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestProvider_SavesOnlyOnce(t *testing.T) {
	store := &failingStore{loadErr: ErrNoSession}
	p := NewProvider(store)

	_, _ = p.GetOrCreate(context.Background())
	_, _ = p.GetOrCreate(context.Background())
	assert.Equal(t, 1, store.saves)
}

func TestProvider_DegradesWhenStorageFails(t *testing.T) {
	store := &failingStore{loadErr: ErrNoSession, saveErr: errors.New("quota exceeded")}
	p := NewProvider(store)

	id, err := p.GetOrCreate(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, idPattern, id)
	assert.ErrorIs(t, p.Degraded(), ErrStorageUnavailable)

	again, _ := p.GetOrCreate(context.Background())
	assert.Equal(t, id, again)
}

func TestProvider_DegradesWhenLoadFails(t *testing.T) {
	store := &failingStore{loadErr: errors.New("permission denied")}
	p := NewProvider(store)

	id, err := p.GetOrCreate(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.ErrorIs(t, p.Degraded(), ErrStorageUnavailable)
	assert.Equal(t, 0, store.saves)
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile", "session")
	store := NewFileStore(path)

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)

	p := NewProvider(store)
	id, err := p.GetOrCreate(context.Background())
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, id+"\n", string(b))

	loaded, err := NewProvider(NewFileStore(path)).GetOrCreate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, loaded)
}

func TestProvider_Reset(t *testing.T) {
	store := NewMemoryStore()
	p := NewProvider(store)
	first, _ := p.GetOrCreate(context.Background())

	fresh, err := p.Reset(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, fresh)

	stored, _ := store.Load(context.Background())
	assert.Equal(t, fresh, stored)
}

func TestMiddleware_IssuesCookieOnce(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	RegisterPublicRoutes(app)

	res, err := app.Test(httptest.NewRequest("GET", "/session", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	var issued string
	for _, ck := range res.Cookies() {
		if ck.Name == CookieName {
			issued = ck.Value
		}
	}
	require.Regexp(t, idPattern, issued)

	req := httptest.NewRequest("GET", "/session", nil)
	req.Header.Set("Cookie", CookieName+"="+issued)
	res2, err := app.Test(req)
	require.NoError(t, err)
	for _, ck := range res2.Cookies() {
		assert.NotEqual(t, CookieName, ck.Name, "cookie must not be reissued")
	}
}
