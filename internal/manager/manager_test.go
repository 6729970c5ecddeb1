package manager

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codeforge-ai/codeforge/internal/store"
	apperrors "github.com/codeforge-ai/codeforge/pkg/common/errors"
	"github.com/codeforge-ai/codeforge/pkg/extract"
)

const fence = "```"

func setupManager(t *testing.T) *Manager {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, zap.NewNop())
}

func TestPutAndGetBuild(t *testing.T) {
	m := setupManager(t)

	p, err := m.Store().CreateProject("demo")
	require.NoError(t, err)

	raw := fmt.Sprintf("FILE: main.py\n%spython\nprint(1)\n%s\n", fence, fence)
	files := extract.Files(raw)
	require.Len(t, files, 1)

	require.NoError(t, m.PutBuild(p.ID, "a script", raw, files))

	b, err := m.GetBuild(p.ID)
	require.NoError(t, err)
	assert.Equal(t, raw, b.Raw)
	assert.Len(t, b.Files, 1)
}

func TestGetBuildRebuildsAfterEviction(t *testing.T) {
	m := setupManager(t)

	p, err := m.Store().CreateProject("demo")
	require.NoError(t, err)

	raw := fmt.Sprintf("FILE: a.js\n%sjavascript\nlet x = 1;\n%s\n", fence, fence)
	require.NoError(t, m.PutBuild(p.ID, "js", raw, extract.Files(raw)))

	// Simulate eviction; the raw response in the store is authoritative.
	m.DropBuild(p.ID)

	b, err := m.GetBuild(p.ID)
	require.NoError(t, err)
	require.Len(t, b.Files, 1)
	assert.Equal(t, "a.js", b.Files[0].Path)
	assert.Equal(t, "let x = 1;", b.Files[0].Content)
}

func TestGetBuildNeverBuilt(t *testing.T) {
	m := setupManager(t)

	p, err := m.Store().CreateProject("empty")
	require.NoError(t, err)

	b, err := m.GetBuild(p.ID)
	require.NoError(t, err)
	assert.Empty(t, b.Files)
}

func TestGetBuildUnknownProject(t *testing.T) {
	m := setupManager(t)

	_, err := m.GetBuild("nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
