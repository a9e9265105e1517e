package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/minio"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"sampling-backend/internal/core"
	"sampling-backend/internal/core/types"
	"sampling-backend/internal/database"
	"sampling-backend/internal/device"
)

// fileModel is a stand-in sampler: instead of running a diffusion model it
// writes one placeholder PDB per requested sample, so workflow tests can
// assert on artifact layout without model weights.
type fileModel struct {
	dev device.Handle
}

func (m *fileModel) Sample(ctx context.Context, req types.SampleRequest) error {
	for i := 0; i < req.NumSamples; i++ {
		path := filepath.Join(req.OutDir, req.SampleName(i)+".pdb")
		content := fmt.Sprintf("REMARK sampled on %s\nEND\n", m.dev)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("error writing sample %s: %w", path, err)
		}
	}
	return nil
}

func (m *fileModel) Release() {}

func loadFileModel(ckpt core.Checkpoint, dev device.Handle) (core.Model, error) {
	if err := ckpt.Verify(); err != nil {
		return nil, err
	}
	return &fileModel{dev: dev}, nil
}

// stageCheckpoint lays out <rootDir>/<name> the way training leaves it.
func stageCheckpoint(t *testing.T, rootDir, name string, epoch int) {
	t.Helper()

	dir := filepath.Join(rootDir, name)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "checkpoints"), os.ModePerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configuration"), []byte("io:\n  max_n_res: 256\n"), os.ModePerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "checkpoints", fmt.Sprintf("epoch=%d.ckpt", epoch)), []byte("weights"), os.ModePerm))
}

func createDB(t *testing.T) *gorm.DB {
	uri := setupPostgresContainer(t, context.Background())
	db, err := database.Connect(uri)
	require.NoError(t, err)

	return db
}

const (
	minioUsername = "admin"
	minioPassword = "password"
)

func setupMinioContainer(t *testing.T, ctx context.Context) string {
	minioContainer, err := minio.Run(
		ctx,
		"minio/minio:RELEASE.2024-01-16T16-07-38Z",
		minio.WithUsername(minioUsername),
		minio.WithPassword(minioPassword),
	)
	require.NoError(t, err, "Failed to start MinIO container")

	t.Cleanup(func() {
		err := minioContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate MinIO container")
	})

	connStr, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get MinIO connection string")

	return "http://" + connStr
}

func setupPostgresContainer(t *testing.T, ctx context.Context) string {
	dbName, dbUser, dbPassword := "test_db", "test_user", "test_password"

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	t.Cleanup(func() {
		err := postgresContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate PostgreSQL container")
	})

	connStr, err := postgresContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get PostgreSQL connection string")

	return connStr
}

func httpRequest(api http.Handler, method, endpoint string, payload any, dest any) error {
	var body io.Reader
	if payload != nil {
		requestBody, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(requestBody)
	}

	req := httptest.NewRequest(method, endpoint, body)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	api.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		return fmt.Errorf("expected status code 200, got %d: %v", rr.Code, rr.Body.String())
	}

	if dest != nil {
		if err := json.Unmarshal(rr.Body.Bytes(), dest); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
