package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	stg, err := NewFromDriver(ctx, DriverLocal, FactoryOptions{Local: LocalOptions{Root: dir}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = stg.Close() })

	info, err := stg.Put(ctx, "batches/1/contacts.csv", strings.NewReader("Name,Email\n"), PutOptions{ContentType: "text/csv"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), info.Size)

	_, err = os.Stat(filepath.Join(dir, "batches", "1", "contacts.csv"))
	require.NoError(t, err)

	rc, _, err := stg.Open(ctx, "batches/1/contacts.csv")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "Name,Email\n", string(b))

	require.NoError(t, stg.Delete(ctx, "batches/1/contacts.csv"))
	require.NoError(t, stg.Delete(ctx, "batches/1/contacts.csv"))

	_, err = stg.Stat(ctx, "batches/1/contacts.csv")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalAdapter_KeyConfinedToRoot(t *testing.T) {
	ctx := context.Background()
	parent := t.TempDir()
	root := filepath.Join(parent, "root")

	stg, err := NewLocal(LocalOptions{Root: root})
	require.NoError(t, err)
	t.Cleanup(func() { _ = stg.Close() })

	_, err = stg.Put(ctx, "../escape.txt", strings.NewReader("x"), PutOptions{})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(parent, "escape.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	assert.NoError(t, err)
}

func TestNewFromDriver_Unknown(t *testing.T) {
	_, err := NewFromDriver(context.Background(), "ftp", FactoryOptions{})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
