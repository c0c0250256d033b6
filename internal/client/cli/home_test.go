package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/useraccounts/internal/client/backend"
	"github.com/dmitrijs2005/useraccounts/internal/client/profile"
	"github.com/dmitrijs2005/useraccounts/internal/client/session"
	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(v profile.View) string {
	var buf bytes.Buffer
	renderView(&buf, v)
	return buf.String()
}

func TestRenderView(t *testing.T) {
	minimal := profile.Minimal(backend.Identity{UID: "u1", Email: "ana@x.com"})

	tests := []struct {
		name    string
		view    profile.View
		want    []string
		notWant []string
	}{
		{
			name:    "loading",
			view:    minimal,
			want:    []string{profile.DefaultDisplayName, "ana@x.com", profile.PlaceholderLoading},
			notWant: []string{"Fecha de Registro", bannerOffline},
		},
		{
			name: "fresh",
			view: profile.Merge(minimal, profile.Record{
				DisplayName: "Ana", Age: 30, Specialty: "QA", RegisteredAt: registered, Active: true,
			}),
			want:    []string{"¡Bienvenido! Ana", "30", "QA", "01/03/2024", "Activo"},
			notWant: []string{hintIncomplete, bannerStale},
		},
		{
			name: "unregistered",
			view: func() profile.View {
				v := minimal
				v.Age, v.Specialty = profile.PlaceholderUnregistered, profile.PlaceholderUnregistered
				v.Status, v.NeedsCompletion = profile.Unregistered, true
				return v
			}(),
			want: []string{profile.PlaceholderUnregistered, hintIncomplete},
		},
		{
			name: "offline",
			view: func() profile.View {
				v := minimal
				v.Age, v.Specialty = profile.PlaceholderOffline, profile.PlaceholderOffline
				v.Status, v.Retryable = profile.Offline, true
				return v
			}(),
			want:    []string{bannerOffline, profile.PlaceholderOffline},
			notWant: []string{bannerStale},
		},
		{
			name: "stale",
			view: func() profile.View {
				v := profile.Merge(minimal, profile.Record{DisplayName: "Ana", Age: 30, Specialty: "QA"})
				v.Status, v.Retryable, v.Stale = profile.Offline, true, true
				return v
			}(),
			want:    []string{bannerStale, "QA", "Inactivo"},
			notWant: []string{bannerOffline},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := render(tc.view)
			for _, w := range tc.want {
				assert.Contains(t, got, w)
			}
			for _, w := range tc.notWant {
				assert.NotContains(t, got, w)
			}
		})
	}
}

func TestEditable(t *testing.T) {
	assert.Equal(t, "", editable(profile.PlaceholderOffline))
	assert.Equal(t, "", editable(profile.PlaceholderUnspecified))
	assert.Equal(t, "30", editable("30"))
}

func TestEdit_KeepsBlankFieldsAndSaves(t *testing.T) {
	a, f, out := newTestApp(t, "")
	id := signedIn(t, a, f)

	feed(a, "\n\n31\n\nn\n")
	require.NoError(t, a.Edit(context.Background()))

	doc, ok := f.Document(common.CollectionProfiles, id.UID)
	require.True(t, ok)
	rec := profile.DecodeRecord(id.UID, doc)
	assert.Equal(t, 31, rec.Age)
	assert.Equal(t, "Ana", rec.DisplayName)
	assert.Equal(t, "QA", rec.Specialty)

	assert.Zero(t, f.CallCount("UpdateDisplayName"))
	assert.Zero(t, f.CallCount("UpdateCredential"))
	assert.Equal(t, session.Home, a.currentScreen())
	assert.Contains(t, out.String(), "Perfil actualizado correctamente")

	v, _ := a.profile.View()
	assert.Equal(t, "31", v.Age)
}

func TestEdit_ChangesNameAndPassword(t *testing.T) {
	a, f, _ := newTestApp(t, "")
	signedIn(t, a, f)
	stubPasswords(t, "newpass1", "newpass1")

	feed(a, "Ana María\n\n\n\ns\n")
	require.NoError(t, a.Edit(context.Background()))

	assert.Equal(t, 1, f.CallCount("UpdateDisplayName"))
	assert.Equal(t, 1, f.CallCount("UpdateCredential"))
	assert.Equal(t, "Ana María", f.Current().DisplayName)
}

func TestEdit_PasswordMismatchStaysOnForm(t *testing.T) {
	a, f, _ := newTestApp(t, "")
	signedIn(t, a, f)
	stubPasswords(t, "newpass1", "newpass2")

	feed(a, "\n\n\n\ns\n")
	err := a.Edit(context.Background())

	require.Error(t, err)
	assert.Equal(t, session.EditProfile, a.currentScreen())
	assert.Zero(t, f.CallCount("Set"))
}

func TestRefresh_ShowsOfflineBanner(t *testing.T) {
	a, f, out := newTestApp(t, "")
	signedIn(t, a, f)
	f.FailWith("Get", backend.ErrNetwork)

	require.NoError(t, a.Refresh(context.Background()))

	v, _ := a.profile.View()
	assert.True(t, v.Stale)
	assert.Contains(t, out.String(), bannerStale)
}

func TestHome_BeforeAnyView(t *testing.T) {
	a, _, out := newTestApp(t, "")

	require.NoError(t, a.Home(context.Background()))
	assert.Contains(t, out.String(), profile.PlaceholderLoading)
}

type objectStore struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func (s *objectStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		s.objs[r.URL.Path] = b
	case http.MethodGet:
		b, ok := s.objs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(b)
	}
}

func TestAvatar_UploadAndDownload(t *testing.T) {
	a, f, _ := newTestApp(t, "")
	id := signedIn(t, a, f)

	srv := httptest.NewServer(&objectStore{objs: map[string][]byte{}})
	defer srv.Close()
	f.AvatarBaseURL = srv.URL

	assert.ErrorIs(t, a.GetAvatar(context.Background(), []string{"x"}), ErrNoAvatar)

	img := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	src := filepath.Join(t.TempDir(), "me.png")
	require.NoError(t, os.WriteFile(src, img, 0o600))

	require.NoError(t, a.Avatar(context.Background(), []string{src}))

	v, _ := a.profile.View()
	assert.True(t, strings.HasPrefix(v.AvatarKey, "avatars/"+id.UID+"/"), v.AvatarKey)

	dest := filepath.Join(t.TempDir(), "out", "me.png")
	require.NoError(t, a.GetAvatar(context.Background(), []string{dest}))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, img, got)
}

func TestAvatar_RejectsNonImage(t *testing.T) {
	a, f, _ := newTestApp(t, "")
	signedIn(t, a, f)

	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o600))

	assert.Error(t, a.Avatar(context.Background(), []string{src}))
	assert.Zero(t, f.CallCount("PresignAvatarUpload"))
}
