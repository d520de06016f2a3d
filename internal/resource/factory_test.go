package resource

import (
	"context"
	"testing"

	"github.com/javi11/davgateway/internal/auth"
	"github.com/javi11/davgateway/internal/backend"
	"github.com/javi11/davgateway/internal/pathmap"
	"github.com/javi11/davgateway/internal/reqcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct{}

func (stubFetcher) GetFileMetadata(ctx context.Context, id uint64) (*pathmap.FileMetadata, bool, error) {
	return nil, false, nil
}

type stubClient struct {
	backend.Client
	meta backend.Metadata
}

func (s *stubClient) GetFileMetadata(ctx context.Context, meta backend.CallMetadata, pathOrID string) (backend.Metadata, error) {
	return s.meta, nil
}

func newTestFactory(t *testing.T, client backend.Client) *Factory {
	t.Helper()
	engine, err := pathmap.NewEngine("/dav", pathmap.EngineConfig{}, stubFetcher{})
	require.NoError(t, err)
	_, err = engine.PopulateDirectory(1, 0, "/dav", []pathmap.ChildEntry{
		{BackendFileID: 10, OriginalName: "docs", IsDirectory: true},
		{BackendFileID: 11, OriginalName: "report.txt"},
	})
	require.NoError(t, err)

	f, err := NewFactory("/dav", engine, client, 0)
	require.NoError(t, err)
	return f
}

func principalContext(userID, username string) *reqcontext.Context {
	if userID == "" {
		return &reqcontext.Context{RequestID: "r1"}
	}
	return &reqcontext.Context{
		RequestID: "r1",
		Principal: &auth.Principal{UserID: userID, Username: username},
	}
}

func TestFactory_AnonymousChallenge(t *testing.T) {
	f := newTestFactory(t, &stubClient{})
	res, err := f.GetResource(context.Background(), principalContext("", ""), "/dav/")
	require.NoError(t, err)
	assert.Equal(t, KindAnonymousChallenge, res.Kind)
}

func TestFactory_UserRoot(t *testing.T) {
	f := newTestFactory(t, &stubClient{})
	res, err := f.GetResource(context.Background(), principalContext("1", "alice"), "/dav/")
	require.NoError(t, err)
	assert.Equal(t, KindUserRoot, res.Kind)
	assert.Equal(t, "alice", res.DisplayName)
}

func TestFactory_KnownFile(t *testing.T) {
	f := newTestFactory(t, &stubClient{meta: backend.Metadata{Exists: true, Size: 123, ContentType: "text/plain"}})
	res, err := f.GetResource(context.Background(), principalContext("1", "alice"), "/dav/report.txt")
	require.NoError(t, err)
	assert.Equal(t, KindFile, res.Kind)
	assert.Equal(t, uint64(123), res.Size)
	assert.Equal(t, "text/plain", res.ContentType)
}

func TestFactory_KnownFolder(t *testing.T) {
	f := newTestFactory(t, &stubClient{})
	res, err := f.GetResource(context.Background(), principalContext("1", "alice"), "/dav/docs")
	require.NoError(t, err)
	assert.Equal(t, KindFolder, res.Kind)
}

func TestFactory_UnknownPathIs404(t *testing.T) {
	f := newTestFactory(t, &stubClient{})
	res, err := f.GetResource(context.Background(), principalContext("1", "alice"), "/dav/missing.txt")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestFactory_MetadataCacheHitAvoidsSecondCall(t *testing.T) {
	calls := 0
	client := &countingClient{onGet: func() { calls++ }}
	f := newTestFactory(t, client)

	_, err := f.GetResource(context.Background(), principalContext("1", "alice"), "/dav/report.txt")
	require.NoError(t, err)
	_, err = f.GetResource(context.Background(), principalContext("1", "alice"), "/dav/report.txt")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

type countingClient struct {
	backend.Client
	onGet func()
}

func (c *countingClient) GetFileMetadata(ctx context.Context, meta backend.CallMetadata, pathOrID string) (backend.Metadata, error) {
	c.onGet()
	return backend.Metadata{Exists: true}, nil
}
