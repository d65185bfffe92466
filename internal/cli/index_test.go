package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfprag/config"
	"rfprag/internal/adapter/store"
	"rfprag/internal/domain"
)

func useIndexGlobals(t *testing.T, dir string, parallel int) {
	t.Helper()
	oldCfg, oldDir, oldQuiet, oldParallel := cfg, rootDir, indexQuiet, indexParallel
	cfg, rootDir, indexQuiet, indexParallel = config.DefaultConfig(), dir, true, parallel
	t.Cleanup(func() {
		cfg, rootDir, indexQuiet, indexParallel = oldCfg, oldDir, oldQuiet, oldParallel
	})
}

func TestIndexProjectsFailureDoesNotCancelOthers(t *testing.T) {
	for _, parallel := range []int{1, 3} {
		dir := t.TempDir()
		writeProject(t, dir, "2", map[string]string{"scope.md": "Deliver the portal in twelve weeks."})
		writeProject(t, dir, "5", map[string]string{"team.txt": "Five engineers."})
		useIndexGlobals(t, dir, parallel)

		err := indexProjects(context.Background(), []int64{99, 2, 5})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
		assert.Contains(t, err.Error(), "project 99")

		// The store is released after the run.
		st, err := store.NewBoltStore(config.IndexDBPath(dir))
		require.NoError(t, err)
		for _, id := range []int64{2, 5} {
			jobs, err := st.Jobs(id, 1)
			require.NoError(t, err)
			require.Len(t, jobs, 1, "parallel=%d project=%d", parallel, id)
			assert.Equal(t, domain.JobCompleted, jobs[0].State, "parallel=%d project=%d", parallel, id)
		}
		loaded, err := st.Load()
		require.NoError(t, err)
		assert.NotEmpty(t, loaded[2])
		assert.NotEmpty(t, loaded[5])
		require.NoError(t, st.Close())
	}
}

func TestIndexProjectsReportsHeldStoreAsInProgress(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir, "2", map[string]string{"scope.md": "text"})
	useIndexGlobals(t, dir, 1)

	old := store.OpenTimeout
	store.OpenTimeout = 50 * time.Millisecond
	t.Cleanup(func() { store.OpenTimeout = old })

	require.NoError(t, config.EnsureDir(dir))
	held, err := store.NewBoltStore(config.IndexDBPath(dir))
	require.NoError(t, err)
	defer held.Close()

	err = indexProjects(context.Background(), []int64{2})
	assert.ErrorIs(t, err, domain.ErrIngestionInProgress)
}
