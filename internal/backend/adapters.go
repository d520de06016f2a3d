package backend

import (
	"context"
	"errors"
	"strconv"

	"github.com/javi11/davgateway/internal/auth"
	"github.com/javi11/davgateway/internal/pathmap"
)

// AuthenticateFunc adapts a Client to auth.BackendAuthenticate, the
// shape the Authentication Resolver's password path calls (spec
// §4.2). clientIP/userAgent are supplied per call by the resolver, not
// fixed at construction time.
func AuthenticateFunc(c Client) auth.BackendAuthenticate {
	return func(ctx context.Context, username, password, ip, ua string) (auth.BackendAuthResult, error) {
		result, err := c.Authenticate(ctx, CallMetadata{ClientIP: ip, UserAgent: ua}, username, password)
		if err != nil {
			return auth.BackendAuthResult{}, err
		}
		return auth.BackendAuthResult{
			Success: result.Success,
			UserID:  result.UserID,
			Role:    result.Role,
			Error:   result.Error,
		}, nil
	}
}

// revocationAdapter adapts a Client to auth.RevocationChecker.
type revocationAdapter struct {
	client Client
}

// NewRevocationChecker wraps a backend Client for the Authentication
// Resolver's token path (spec §4.2 step 3).
func NewRevocationChecker(c Client) auth.RevocationChecker {
	return &revocationAdapter{client: c}
}

func (a *revocationAdapter) CheckRevocation(ctx context.Context, token, tokenID, userID string) (bool, error) {
	result, err := a.client.CheckJWTRevocation(ctx, CallMetadata{}, token, tokenID, userID)
	if err != nil {
		return false, err
	}
	if !result.Success {
		return false, errors.New("backend: revocation check reported failure: " + result.Message)
	}
	return result.Revoked, nil
}

// metadataFetcherAdapter adapts a Client to pathmap.MetadataFetcher.
type metadataFetcherAdapter struct {
	client Client
	meta   CallMetadata
}

// NewMetadataFetcher wraps a backend Client for the Path Mapping
// Engine's id-to-path ascent (spec §4.4).
func NewMetadataFetcher(c Client, meta CallMetadata) pathmap.MetadataFetcher {
	return &metadataFetcherAdapter{client: c, meta: meta}
}

func (a *metadataFetcherAdapter) GetFileMetadata(ctx context.Context, id uint64) (*pathmap.FileMetadata, bool, error) {
	m, err := a.client.GetFileMetadata(ctx, a.meta, idToPathOrID(id))
	if err != nil {
		return nil, false, err
	}
	if !m.Exists {
		return nil, false, nil
	}
	return &pathmap.FileMetadata{
		BackendFileID: m.BackendFileID,
		DisplayName:   m.DisplayName,
		ParentID:      m.ParentID,
		IsDirectory:   m.IsDirectory,
		Size:          m.Size,
		ContentType:   m.ContentType,
		CreatedAt:     m.CreatedAt,
		ModifiedAt:    m.ModifiedAt,
	}, true, nil
}

func idToPathOrID(id uint64) string {
	return "id:" + strconv.FormatUint(id, 10)
}
