package dropingester

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clock "k8s.io/utils/clock/testing"

	"github.com/G-Research/dropingester/internal/common/appcontext"
	"github.com/G-Research/dropingester/internal/common/logging"
	"github.com/G-Research/dropingester/internal/dropingester/configuration"
	"github.com/G-Research/dropingester/internal/dropingester/model"
	"github.com/G-Research/dropingester/internal/dropingester/store"
)

const (
	numFiles          = 24
	numbersPerFile    = 3
	numWorkers        = 4
	unknownFileId     = "not-registered"
	waitForProcessing = 10 * time.Second
)

func testContext() *appcontext.Context {
	return appcontext.New(appcontext.Background(), logging.NullEntry())
}

func testConfig(root string) configuration.DropIngesterConfiguration {
	return configuration.DropIngesterConfiguration{
		Listener: configuration.ListenerConfig{
			DropFolderPath:    filepath.Join(root, "drop"),
			ArchiveFolderPath: filepath.Join(root, "archive"),
			ParallelWorkers:   numWorkers,
			IdleDelaySeconds:  1,
		},
		Database: configuration.DatabaseConfig{
			Type:       configuration.DatabaseTypeSqlite,
			SqlitePath: filepath.Join(root, "db", "dropingester.db"),
		},
	}
}

func seed(t *testing.T, config configuration.DropIngesterConfiguration) {
	t.Helper()
	db, err := store.OpenSqliteStore(testContext(), config.Database.SqlitePath, 0)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, os.MkdirAll(config.Listener.DropFolderPath, 0o755))
	for i := 0; i < numFiles; i++ {
		id := fmt.Sprintf("camp-%03d", i)
		variant := "campaign"
		content := `[{"phoneNumber":"+1"},{"phoneNumber":"+2"},{"chatId":"c","phoneNumber":"+3"}]`
		if i%2 == 1 {
			variant = "batch"
			content = `[{"phoneNumber":"+1","messageText":"a"},{"phoneNumber":"+2","messageText":"b"},{"phoneNumber":"+3","messageText":"c"}]`
		}
		require.NoError(t, db.SaveMetadata(testContext(), &model.DispatchMetadata{
			CampaignId: id,
			FileType:   variant,
			CustomerId: int32(i),
			MsgText:    "hello",
			MsgType:    "text",
		}))
		writeDropFile(t, config, id, content)
	}
	writeDropFile(t, config, unknownFileId, `[{"phoneNumber":"+1"}]`)
	// ignored, wrong extension
	require.NoError(t, os.WriteFile(filepath.Join(config.Listener.DropFolderPath, "notes.txt"), []byte("x"), 0o644))
}

func writeDropFile(t *testing.T, config configuration.DropIngesterConfiguration, id string, content string) {
	t.Helper()
	path := filepath.Join(config.Listener.DropFolderPath, id+".json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func listJson(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	return matches
}

func TestRun_EveryFileIsProcessedOnce(t *testing.T) {
	config := testConfig(t.TempDir())
	seed(t, config)

	ctx, cancel := appcontext.WithCancel(testContext())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, config, prometheus.NewRegistry(), clock.NewFakeClock(time.Now()))
	}()

	require.Eventually(t, func() bool {
		return len(listJson(t, config.Listener.ArchiveFolderPath)) == numFiles+1
	}, waitForProcessing, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitForProcessing):
		t.Fatal("ingester did not stop")
	}

	assert.Empty(t, listJson(t, config.Listener.DropFolderPath))
	_, err := os.Stat(filepath.Join(config.Listener.DropFolderPath, "notes.txt"))
	assert.NoError(t, err)

	sqlDb, err := sql.Open("sqlite", config.Database.SqlitePath)
	require.NoError(t, err)
	defer sqlDb.Close()

	var messages int
	require.NoError(t, sqlDb.QueryRow("SELECT count(*) FROM ready_message").Scan(&messages))
	assert.Equal(t, numFiles*numbersPerFile, messages)

	var distinctCustomers int
	require.NoError(t, sqlDb.QueryRow("SELECT count(DISTINCT customer_id) FROM ready_message").Scan(&distinctCustomers))
	assert.Equal(t, numFiles, distinctCustomers)

	var unprocessed int
	require.NoError(t, sqlDb.QueryRow("SELECT count(*) FROM dispatch_metadata WHERE NOT is_processed").Scan(&unprocessed))
	assert.Equal(t, 0, unprocessed)
}

func TestRun_FailsOnBadDatabase(t *testing.T) {
	root := t.TempDir()
	config := testConfig(root)
	// a directory cannot be opened as a database file
	config.Database.SqlitePath = root

	err := run(testContext(), config, prometheus.NewRegistry(), clock.NewFakeClock(time.Now()))

	assert.Error(t, err)
}
