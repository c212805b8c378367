package server

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/queues"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophauth/internal/server/uploads"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	err error
}

func (r *fakeRunner) Run(ctx context.Context) error {
	<-ctx.Done()
	return r.err
}

func discardLogger(t *testing.T) logging.Logger {
	t.Helper()
	l, err := logging.New(logging.BackendSlog, "error", io.Discard)
	require.NoError(t, err)
	return l
}

func TestRun_ClosesInReverseOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return err
		}
	}

	app := &App{config: &config.Config{ShutdownTimeout: time.Second}, logger: discardLogger(t), server: &fakeRunner{}}
	app.addCloser("database", record("database", nil))
	app.addCloser("broker", record("broker", errors.New("channel gone")))
	app.addCloser("publisher", record("publisher", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := app.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close broker: channel gone")
	assert.Equal(t, []string{"publisher", "broker", "database"}, order)
	assert.Empty(t, app.closers)
}

func TestRun_ServerErrorIsReturned(t *testing.T) {
	app := &App{config: &config.Config{}, logger: discardLogger(t), server: &fakeRunner{err: errors.New("listen failed")}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.EqualError(t, app.Run(ctx), "listen failed")
}

type fakeBroker struct {
	mu     sync.Mutex
	closed bool
}

func (b *fakeBroker) Publish(context.Context, string, string, []byte, string) error { return nil }

func (b *fakeBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

type fakeManager struct{ migrateErr error }

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error { return m.migrateErr }
func (m *fakeManager) Users(db dbx.DBTX) users.Repository           { return users.NewPostgresRepository(db) }

type nopUploader struct{}

func (nopUploader) Upload(ctx context.Context, publicID, file string) (*uploads.Result, error) {
	return &uploads.Result{PublicID: publicID}, nil
}

func stubInfra(t *testing.T, manager *fakeManager, broker *fakeBroker) sqlmock.Sqlmock {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	origOpen, origRM, origDial, origUp := openDB, newRepositoryManager, dialBroker, newUploader
	t.Cleanup(func() {
		openDB, newRepositoryManager, dialBroker, newUploader = origOpen, origRM, origDial, origUp
	})

	openDB = func(context.Context, string) (*sql.DB, error) { return db, nil }
	newRepositoryManager = func() repomanager.RepositoryManager { return manager }
	dialBroker = func(string, logging.Logger) (brokerPublisher, error) { return broker, nil }
	newUploader = func(context.Context, *config.Config) (uploads.Uploader, error) { return nopUploader{}, nil }
	return mock
}

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.LogLevel = "error"
	c.ShutdownTimeout = time.Second
	return c
}

func TestNewApp_RunAndShutdown(t *testing.T) {
	broker := &fakeBroker{}
	mock := stubInfra(t, &fakeManager{}, broker)
	mock.ExpectClose()

	app, err := NewApp(context.Background(), testConfig())
	require.NoError(t, err)
	require.NotNil(t, app.server)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}

	assert.True(t, broker.closed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewApp_PublisherUsesPublishTimeout(t *testing.T) {
	stubInfra(t, &fakeManager{}, &fakeBroker{})

	orig := newAsyncPublisher
	t.Cleanup(func() { newAsyncPublisher = orig })

	var gotSize int
	var gotTimeout time.Duration
	newAsyncPublisher = func(next queues.Publisher, size int, timeout time.Duration, l logging.Logger) *queues.AsyncPublisher {
		gotSize, gotTimeout = size, timeout
		return orig(next, size, timeout, l)
	}

	c := testConfig()
	c.PublishTimeout = 1500 * time.Millisecond
	c.ShutdownTimeout = 7 * time.Second

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.shutdown(context.Background()) })

	assert.Equal(t, c.PublishQueueSize, gotSize)
	assert.Equal(t, 1500*time.Millisecond, gotTimeout)
}

func TestNewApp_MigrationFailureReleasesDB(t *testing.T) {
	broker := &fakeBroker{}
	mock := stubInfra(t, &fakeManager{migrateErr: errors.New("bad sql")}, broker)
	mock.ExpectClose()

	_, err := NewApp(context.Background(), testConfig())
	require.ErrorContains(t, err, "migration error")
	assert.False(t, broker.closed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewApp_UploaderFailureReleasesBrokerAndDB(t *testing.T) {
	broker := &fakeBroker{}
	mock := stubInfra(t, &fakeManager{}, broker)
	mock.ExpectClose()
	newUploader = func(context.Context, *config.Config) (uploads.Uploader, error) {
		return nil, errors.New("no bucket")
	}

	app, err := NewApp(context.Background(), testConfig())
	require.ErrorContains(t, err, "storage init error")
	assert.Nil(t, app)
	assert.True(t, broker.closed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewApp_RejectsSharedKeys(t *testing.T) {
	c := testConfig()
	c.GatewaySecretKey = c.SecretKey

	_, err := NewApp(context.Background(), c)
	assert.ErrorContains(t, err, "config error")
}
