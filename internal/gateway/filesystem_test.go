package gateway

import (
	"context"
	"io"
	"os"
	"strconv"
	"testing"

	"github.com/javi11/davgateway/internal/auth"
	"github.com/javi11/davgateway/internal/backend"
	"github.com/javi11/davgateway/internal/backendtest"
	"github.com/javi11/davgateway/internal/pathmap"
	"github.com/javi11/davgateway/internal/reqcontext"
	"github.com/javi11/davgateway/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher adapts backendtest.Client to pathmap.MetadataFetcher,
// the same thin wiring internal/backend/adapters.go does for the real
// backend.HTTPClient.
type fakeFetcher struct{ client *backendtest.Client }

func (f fakeFetcher) GetFileMetadata(ctx context.Context, id uint64) (*pathmap.FileMetadata, bool, error) {
	m, err := f.client.GetFileMetadata(ctx, backend.CallMetadata{}, "id:"+strconv.FormatUint(id, 10))
	if err != nil || !m.Exists {
		return nil, false, err
	}
	return &pathmap.FileMetadata{BackendFileID: m.BackendFileID, DisplayName: m.DisplayName, ParentID: m.ParentID, IsDirectory: m.IsDirectory, Size: m.Size}, true, nil
}

func newTestFS(t *testing.T, client *backendtest.Client) *FS {
	t.Helper()
	engine, err := pathmap.NewEngine("/dav", pathmap.EngineConfig{}, fakeFetcher{client: client})
	require.NoError(t, err)
	factory, err := resource.NewFactory("/dav", engine, client, 0)
	require.NoError(t, err)
	return NewFS("/dav", factory, engine, client)
}

func testCtx(userID string) context.Context {
	rc := &reqcontext.Context{RequestID: "r1", Principal: &auth.Principal{UserID: userID, Username: "alice"}}
	return reqcontext.Attach(context.Background(), rc)
}

func TestFS_Stat_UserRoot(t *testing.T) {
	fs := newTestFS(t, backendtest.New())
	info, err := fs.Stat(testCtx("1"), "/dav")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "alice", info.Name())
}

func TestFS_Mkdir_ThenStat(t *testing.T) {
	client := backendtest.New()
	fs := newTestFS(t, client)
	ctx := testCtx("1")

	require.NoError(t, fs.Mkdir(ctx, "/dav/docs", 0755))

	info, err := fs.Stat(ctx, "/dav/docs")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "docs", info.Name())
}

func TestFS_OpenFile_CreateWriteThenReadBack(t *testing.T) {
	client := backendtest.New()
	fs := newTestFS(t, client)
	ctx := testCtx("1")

	wf, err := fs.OpenFile(ctx, "/dav/report.txt", os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = wf.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, wf.Close())

	rf, err := fs.OpenFile(ctx, "/dav/report.txt", os.O_RDONLY, 0)
	require.NoError(t, err)
	data, err := io.ReadAll(rf)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	require.NoError(t, rf.Close())
}

func TestFS_Readdir_ListsChildren(t *testing.T) {
	client := backendtest.New()
	fs := newTestFS(t, client)
	ctx := testCtx("1")

	require.NoError(t, fs.Mkdir(ctx, "/dav/docs", 0755))

	dir, err := fs.OpenFile(ctx, "/dav", os.O_RDONLY, 0)
	require.NoError(t, err)
	entries, err := dir.Readdir(-1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "docs", entries[0].Name())
	assert.True(t, entries[0].IsDir())
}

func TestFS_RemoveAll(t *testing.T) {
	client := backendtest.New()
	fs := newTestFS(t, client)
	ctx := testCtx("1")

	require.NoError(t, fs.Mkdir(ctx, "/dav/docs", 0755))
	require.NoError(t, fs.RemoveAll(ctx, "/dav/docs"))

	_, err := fs.Stat(ctx, "/dav/docs")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFS_Rename(t *testing.T) {
	client := backendtest.New()
	fs := newTestFS(t, client)
	ctx := testCtx("1")

	require.NoError(t, fs.Mkdir(ctx, "/dav/docs", 0755))
	require.NoError(t, fs.Rename(ctx, "/dav/docs", "/dav/archive"))

	info, err := fs.Stat(ctx, "/dav/archive")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = fs.Stat(ctx, "/dav/docs")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
