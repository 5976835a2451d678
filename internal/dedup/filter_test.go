package dedup

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permutex/internal/types"
)

func filters(t *testing.T) map[string]Filter {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "dedup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Filter{"memory": NewMemory(), "sqlite": sq}
}

func TestAdmitAndRewind(t *testing.T) {
	ctx := context.Background()
	for name, f := range filters(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := f.Admit(ctx, 0, 0, "john")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = f.Admit(ctx, 1, 5, "john")
			require.NoError(t, err)
			assert.False(t, ok, "second shard sees the duplicate")

			ok, err = f.Admit(ctx, 1, 6, "JOHN")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = f.Admit(ctx, 1, 9, "rex")
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, f.Rewind(ctx, 1, 7))

			ok, err = f.Admit(ctx, 1, 9, "rex")
			require.NoError(t, err)
			assert.True(t, ok, "rewound value is admitted again")

			ok, err = f.Admit(ctx, 1, 10, "JOHN")
			require.NoError(t, err)
			assert.False(t, ok, "values before the rewind point stay recorded")
		})
	}
}

func TestNormalizeComposes(t *testing.T) {
	f := NewMemory()
	ctx := context.Background()
	ok, _ := f.Admit(ctx, 0, 0, "caf\u00e9")
	assert.True(t, ok)
	ok, _ = f.Admit(ctx, 0, 1, "cafe\u0301")
	assert.False(t, ok, "NFD form matches NFC form")
	ok, _ = f.Admit(ctx, 0, 2, "CAF\u00c9")
	assert.True(t, ok, "case is preserved")
	assert.Equal(t, 2, f.Len())
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dedup.db")

	f, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = f.Admit(ctx, 2, 3, "rex2006")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = OpenSQLite(path)
	require.NoError(t, err)
	defer f.Close()
	ok, err := f.Admit(ctx, 0, 0, "rex2006")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := f.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestParseModeAndOpen(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeOff, m)

	m, err = ParseMode("SQLite")
	require.NoError(t, err)
	assert.Equal(t, ModeSQLite, m)

	_, err = ParseMode("bloom")
	assert.ErrorIs(t, err, types.ErrConfiguration)

	f, err := Open(ModeOff, "")
	require.NoError(t, err)
	assert.Nil(t, f)
}
