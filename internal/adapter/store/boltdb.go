package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"rfprag/internal/domain"
)

var (
	bucketMeta     = []byte("meta")
	bucketProjects = []byte("projects")
	bucketJobs     = []byte("jobs")
	bucketChunks   = []byte("chunks")
)

// BoltStore persists the vector index and the ingestion job log. Every
// project gets its own nested bucket, so one project's data can never be
// read through another's key space.
type BoltStore struct {
	db *bbolt.DB
}

// OpenTimeout bounds how long NewBoltStore waits for another process to
// release the database file.
var OpenTimeout = 2 * time.Second

// NewBoltStore opens the store at path. While another process holds the
// file, typically a running `rfprag index`, it fails with
// domain.ErrIngestionInProgress.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: OpenTimeout})
	if errors.Is(err, bbolt.ErrTimeout) {
		return nil, fmt.Errorf("%w: %s is held by another rfprag process", domain.ErrIngestionInProgress, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketProjects, bucketJobs} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func projectKey(projectID int64) []byte {
	return []byte(strconv.FormatInt(projectID, 10))
}

type storedChunk struct {
	Chunk  domain.Chunk `json:"c"`
	Vector []float32    `json:"v"`
}

// Apply deletes and writes chunks of one project in a single transaction.
func (s *BoltStore) Apply(projectID int64, deletes []string, puts []domain.EmbeddedChunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		project, err := tx.Bucket(bucketProjects).CreateBucketIfNotExists(projectKey(projectID))
		if err != nil {
			return err
		}
		chunks, err := project.CreateBucketIfNotExists(bucketChunks)
		if err != nil {
			return err
		}

		for _, id := range deletes {
			if err := chunks.Delete([]byte(id)); err != nil {
				return err
			}
		}
		for _, ec := range puts {
			data, err := json.Marshal(storedChunk{Chunk: ec.Chunk, Vector: ec.Vector})
			if err != nil {
				return err
			}
			if err := chunks.Put([]byte(ec.Chunk.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load reads every persisted chunk, grouped by project.
func (s *BoltStore) Load() (map[int64][]domain.EmbeddedChunk, error) {
	out := make(map[int64][]domain.EmbeddedChunk)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketProjects).ForEach(func(k, _ []byte) error {
			projectID, err := strconv.ParseInt(string(k), 10, 64)
			if err != nil {
				return nil
			}
			project := tx.Bucket(bucketProjects).Bucket(k)
			if project == nil {
				return nil
			}
			chunks := project.Bucket(bucketChunks)
			if chunks == nil {
				return nil
			}
			return chunks.ForEach(func(_, v []byte) error {
				var sc storedChunk
				if err := json.Unmarshal(v, &sc); err != nil {
					return fmt.Errorf("corrupt chunk in project %d: %w", projectID, err)
				}
				out[projectID] = append(out[projectID], domain.EmbeddedChunk{Chunk: sc.Chunk, Vector: sc.Vector})
				return nil
			})
		})
	})
	return out, err
}

// PutJob archives an ingestion job. Keys sort by start time so the last
// key of a project is its most recent job.
func (s *BoltStore) PutJob(job *domain.IngestionJob) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(bucketJobs).CreateBucketIfNotExists(projectKey(job.ProjectID))
		if err != nil {
			return err
		}
		data, err := json.Marshal(job)
		if err != nil {
			return err
		}
		return b.Put(jobKey(job), data)
	})
}

func jobKey(job *domain.IngestionJob) []byte {
	key := make([]byte, 8, 8+len(job.ID))
	binary.BigEndian.PutUint64(key, uint64(job.StartedAt.UnixNano()))
	return append(key, job.ID...)
}

// Jobs returns up to limit archived jobs of a project, newest first.
func (s *BoltStore) Jobs(projectID int64, limit int) ([]domain.IngestionJob, error) {
	var jobs []domain.IngestionJob
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketJobs).Bucket(projectKey(projectID))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(jobs) >= limit {
				break
			}
			var job domain.IngestionJob
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	return jobs, err
}

// Clear drops all indexed chunks, keeping the job log and schema info.
func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketProjects); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketProjects)
		return err
	})
}
