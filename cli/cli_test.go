package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kzz_crawler/logging"
	"kzz_crawler/models"
	"kzz_crawler/storage"
)

func parseStrategy(t *testing.T, args ...string) (*models.StrategyRecord, error) {
	t.Helper()
	var f strategyFlags
	cmd := &cobra.Command{Use: "set"}
	f.bind(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return f.record(cmd, "113052")
}

func TestStrategyRecordOnlyChangedFlags(t *testing.T) {
	rec, err := parseStrategy(t, "--target", "110", "--level", "2", "--favorite")
	require.NoError(t, err)

	cols, vals := models.StrategyFields.Present(rec)
	assert.Equal(t, []string{"target_price", "level", "is_favorite"}, cols)
	assert.Equal(t, []any{110.0, int64(2), int64(1)}, vals)
}

func TestStrategyRecordExplicitFalseAndClear(t *testing.T) {
	rec, err := parseStrategy(t, "--blacklist=false", "--clear", "sell_price")
	require.NoError(t, err)

	cols, vals := models.StrategyFields.Present(rec)
	assert.Equal(t, []string{"sell_price", "is_blacklisted"}, cols)
	assert.Equal(t, []any{nil, int64(0)}, vals)
}

func TestStrategyRecordRejectsEmptyAndUnknown(t *testing.T) {
	_, err := parseStrategy(t)
	assert.ErrorContains(t, err, "nothing to update")

	_, err = parseStrategy(t, "--clear", "bond_nm")
	assert.ErrorContains(t, err, `cannot clear "bond_nm"`)
}

func TestMaskConnectionString(t *testing.T) {
	assert.Equal(t, "postgres://kzz:xxxxx@db:5432/kzz", maskConnectionString("postgres://kzz:secret@db:5432/kzz"))
	assert.Equal(t, "host=db user=kzz", maskConnectionString("host=db user=kzz"))
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd(&env{})
	for _, name := range []string{"serve", "crawl", "monitor", "session", "status", "strategy", "trigger"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	set, _, err := root.Find([]string{"strategy", "set"})
	require.NoError(t, err)
	assert.Equal(t, "set", set.Name())
}

func TestCommandNames(t *testing.T) {
	assert.Contains(t, commandNames(), "monitor_now")
	assert.Len(t, commandNames(), len(models.KnownCommands))
}

func TestRunClosesStoresWhenCommandFails(t *testing.T) {
	dir := t.TempDir()
	ops, err := storage.NewSQLiteStore(filepath.Join(dir, "crawler.db"))
	require.NoError(t, err)
	logFile, err := logging.NewRotatingWriter(filepath.Join(dir, "daemon.log"), logging.DefaultPolicy)
	require.NoError(t, err)

	e := &env{sqlite: ops, logFile: logFile}
	root := newRootCmd(e)
	root.AddCommand(&cobra.Command{
		Use:               "fail",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(*cobra.Command, []string) error {
			_, err := e.operational()
			require.NoError(t, err)
			return errors.New("crawl failed")
		},
	})

	err = run(context.Background(), e, root, []string{"fail"})
	require.EqualError(t, err, "crawl failed")

	assert.Nil(t, e.sqlite)
	assert.Nil(t, e.logFile)
	_, err = logFile.Write([]byte("late\n"))
	assert.ErrorIs(t, err, os.ErrClosed)
}
