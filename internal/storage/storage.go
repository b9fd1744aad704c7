// Package storage provides persistent storage for vessel track history
// and issued predictions. It uses BoltDB as the underlying engine and
// stores time-series records under vesselID_timestamp keys for
// efficient prefix range queries.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"darkwatch/internal/predict"
)

const (
	tracksBucket      = "tracks"      // per-vessel position reports
	predictionsBucket = "predictions" // issued predictions, for later evaluation
)

// Store persists track points and prediction records.
type Store struct {
	db *bbolt.DB
}

// PredictionRecord is the compact persisted form of an issued
// prediction; the probability cloud is not stored, it is cheap to
// regenerate.
type PredictionRecord struct {
	VesselID   string           `json:"vessel_id"`
	CreatedAt  time.Time        `json:"created_at"`
	Prediction predict.Result   `json:"prediction"`
	Metadata   predict.Metadata `json:"metadata"`
}

// New opens (or creates) the database under dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "darkwatch.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(tracksBucket)); err != nil {
			return fmt.Errorf("create tracks bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreTrackPoint appends a position report to a vessel's history.
// Points without a timestamp are keyed by receive time.
func (s *Store) StoreTrackPoint(vesselID string, p predict.TrackPoint) error {
	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(tracksBucket))

		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal track point: %w", err)
		}

		key := fmt.Sprintf("%s_%020d", vesselID, ts.UnixNano())
		return b.Put([]byte(key), data)
	})
}

// RecentTrack returns up to n most recent points for the vessel,
// oldest first.
func (s *Store) RecentTrack(vesselID string, n int) ([]predict.TrackPoint, error) {
	var points []predict.TrackPoint

	err := s.db.View(func(tx *bbolt.Tx) error {
		return scanReverse(tx.Bucket([]byte(tracksBucket)), vesselID, n, func(v []byte) error {
			var p predict.TrackPoint
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("unmarshal track point: %w", err)
			}
			points = append(points, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	reverse(points)
	return points, nil
}

// StorePrediction persists the essentials of an issued prediction.
func (s *Store) StorePrediction(resp predict.Response) error {
	rec := PredictionRecord{
		VesselID:   resp.VesselID,
		CreatedAt:  time.Now(),
		Prediction: resp.Prediction,
		Metadata:   resp.Metadata,
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}

		key := fmt.Sprintf("%s_%020d", rec.VesselID, rec.CreatedAt.UnixNano())
		return b.Put([]byte(key), data)
	})
}

// RecentPredictions returns up to n most recent prediction records for
// the vessel, oldest first.
func (s *Store) RecentPredictions(vesselID string, n int) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		return scanReverse(tx.Bucket([]byte(predictionsBucket)), vesselID, n, func(v []byte) error {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal prediction: %w", err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	reverse(records)
	return records, nil
}

// scanReverse walks a vessel's key range newest-first, invoking fn for
// at most n values (all of them when n <= 0).
func scanReverse(b *bbolt.Bucket, vesselID string, n int, fn func(v []byte) error) error {
	c := b.Cursor()
	prefix := []byte(vesselID + "_")

	// Seek just past the vessel's range, then walk backwards.
	end := append(append([]byte{}, prefix...), 0xff)
	k, v := c.Seek(end)
	if k == nil {
		k, v = c.Last()
	} else {
		k, v = c.Prev()
	}

	count := 0
	for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Prev() {
		if err := fn(v); err != nil {
			return err
		}
		count++
		if n > 0 && count == n {
			return nil
		}
	}
	return nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
