// Package sync holds concrete Sync module implementations.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	vbErrors "vbackup/internal/errors"
	"vbackup/internal/logging"
	"vbackup/internal/model"
	"vbackup/internal/modules"
	"vbackup/internal/resilience"
)

// MinioConfig is the opaque sync configuration for the "minio" sync type.
type MinioConfig struct {
	Endpoint   string `json:"endpoint"`
	Bucket     string `json:"bucket"`
	AccessKey  string `json:"access_key_env"`
	SecretKey  string `json:"secret_key_env"`
	UseSSL     bool   `json:"use_ssl"`
	AuthRef    string `json:"auth_ref,omitempty"`
	KeyPrefix  string `json:"key_prefix,omitempty"`
}

// Minio uploads a volume's backup (or source) directory to an
// S3-compatible bucket, grounded directly on the teacher's
// ResilientMinIOClient: the client is wrapped with the same circuit
// breaker + retry pairing, just generalized from "the one backup
// target" to "one of several sync module types".
type Minio struct {
	name   string
	cfg    MinioConfig
	paths  model.ModulePaths
	args   modules.Args
	logger *logging.StructuredLogger

	client  *minio.Client
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryExecutor
}

// NewMinio constructs the minio sync module, implementing
// modules.SyncFactory.
func NewMinio(name string, raw json.RawMessage, paths model.ModulePaths, args modules.Args) (modules.Sync, error) {
	var cfg MinioConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, vbErrors.NewModuleConstructionError("sync.minio", "minio", "invalid config", err)
	}
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, vbErrors.NewModuleConstructionError("sync.minio", "minio", "endpoint and bucket are required", nil)
	}
	return &Minio{
		name:    name,
		cfg:     cfg,
		paths:   paths,
		args:    args,
		logger:  args.Logger.WithComponent("sync.minio"),
		breaker: resilience.NewCircuitBreaker("sync.minio."+name, 5, 30*time.Second),
		retry:   resilience.NewRetryExecutor("sync.minio."+name, resilience.DefaultRetryConfig()),
	}, nil
}

func (m *Minio) Init() error {
	accessKey := os.Getenv(m.cfg.AccessKey)
	secretKey := os.Getenv(m.cfg.SecretKey)
	client, err := minio.New(m.cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: m.cfg.UseSSL,
	})
	if err != nil {
		return vbErrors.NewSyncError(m.name, "cannot create minio client", err)
	}
	m.client = client

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	exists, err := m.client.BucketExists(ctx, m.cfg.Bucket)
	if err != nil {
		return vbErrors.NewSyncError(m.name, "cannot verify bucket existence", err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return vbErrors.NewSyncError(m.name, "cannot create bucket", err)
		}
	}
	return nil
}

// Sync uploads every regular file under the resolved source directory,
// wrapped in a circuit breaker and retried with exponential backoff —
// the transient-failure pattern the teacher applies to every MinIO call.
func (m *Minio) Sync() error {
	root := m.paths.Source.Single
	if root == "" {
		return vbErrors.NewSyncError(m.name, "minio sync requires a single source path", nil)
	}

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(filepath.Join(m.cfg.KeyPrefix, m.name, rel))

		return m.breaker.Execute(func() error {
			return m.retry.Execute(func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				defer cancel()
				_, err := m.client.FPutObject(ctx, m.cfg.Bucket, key, path, minio.PutObjectOptions{})
				return err
			})
		})
	})
}

func (m *Minio) Restore(destination string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	prefix := filepath.ToSlash(filepath.Join(m.cfg.KeyPrefix, m.name))
	objects := m.client.ListObjects(ctx, m.cfg.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	for obj := range objects {
		if obj.Err != nil {
			return vbErrors.NewRestoreError(m.name, "listing objects failed", obj.Err)
		}
		rel, err := filepath.Rel(prefix, obj.Key)
		if err != nil {
			return vbErrors.NewRestoreError(m.name, "unexpected object key "+obj.Key, err)
		}
		dest := filepath.Join(destination, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return vbErrors.NewRestoreError(m.name, "cannot create restore directory", err)
		}
		if err := m.client.FGetObject(ctx, m.cfg.Bucket, obj.Key, dest, minio.GetObjectOptions{}); err != nil {
			return vbErrors.NewRestoreError(m.name, fmt.Sprintf("cannot download %s", obj.Key), err)
		}
	}
	return nil
}

func (m *Minio) Clear() error { return nil }
