package models

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Source loads the raw record sets a Dataset is built from.
type Source interface {
	LoadSamples(ctx context.Context) ([]Sample, error)
	LoadSubjects(ctx context.Context) ([]Subject, error)
	LoadThresholds(ctx context.Context) ([]ThresholdSummary, error)
	LoadStats(ctx context.Context) (NormStats, error)
}

// DataStore holds the currently loaded dataset. The dataset itself is never
// mutated after load; a reload swaps the pointer.
type DataStore struct {
	mu      sync.RWMutex
	dataset *Dataset
}

var Store = &DataStore{}

func (s *DataStore) Dataset() *Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset
}

func (s *DataStore) Set(d *Dataset) {
	s.mu.Lock()
	s.dataset = d
	s.mu.Unlock()
}

// Ready returns the dataset or ErrDataNotReady when nothing usable is loaded.
func (s *DataStore) Ready() (*Dataset, error) {
	d := s.Dataset()
	if !d.Ready() {
		return nil, ErrDataNotReady
	}
	return d, nil
}

// PopulateDataStore loads every record set from src in parallel, falling back to
// the cached snapshot in dataDir while it is younger than maxAgeHours.
func (s *DataStore) PopulateDataStore(ctx context.Context, src Source, dataDir string, maxAgeHours int) error {
	if dataDir != "" && maxAgeHours > 0 {
		cache, err := loadCacheData(dataDir)
		if err == nil && isCacheValid(cache, maxAgeHours) {
			log.Println("Using cached data")
			s.Set(cache.dataset())
			return nil
		}
	}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		samples    []Sample
		subjects   []Subject
		thresholds []ThresholdSummary
		stats      NormStats
	)

	errChan := make(chan error, 4)

	wg.Add(4)
	go func() {
		defer wg.Done()
		data, err := src.LoadSamples(ctx)
		if err != nil {
			errChan <- fmt.Errorf("failed to load samples: %w", err)
			return
		}
		mu.Lock()
		samples = data
		mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		data, err := src.LoadSubjects(ctx)
		if err != nil {
			errChan <- fmt.Errorf("failed to load subjects: %w", err)
			return
		}
		mu.Lock()
		subjects = data
		mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		data, err := src.LoadThresholds(ctx)
		if err != nil {
			errChan <- fmt.Errorf("failed to load thresholds: %w", err)
			return
		}
		mu.Lock()
		thresholds = data
		mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		data, err := src.LoadStats(ctx)
		if err != nil {
			errChan <- fmt.Errorf("failed to load normalization stats: %w", err)
			return
		}
		mu.Lock()
		stats = data
		mu.Unlock()
	}()

	wg.Wait()
	close(errChan)

	// First error wins; the rest are logged.
	var firstErr error
	for err := range errChan {
		if firstErr == nil {
			firstErr = err
			continue
		}
		log.Println(err)
	}
	if firstErr != nil {
		return firstErr
	}

	dataset := NewDataset(samples, subjects, thresholds, stats)
	s.Set(dataset)
	log.Printf("Loaded %d samples for %d subjects", len(dataset.Samples), len(dataset.SubjectIDs()))

	if dataDir != "" {
		if err := cacheData(dataDir, dataset); err != nil {
			log.Printf("Failed to cache data: %v", err)
		}
	}
	return nil
}
