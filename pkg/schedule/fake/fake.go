/*
Copyright 2025 The Kioskline Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package fake provides deterministic test doubles for the external
// collaborators schedule.CacheManager, schedule.AdExchangeClient and
// schedule.ScreenshotUploader describe, the way keda/pkg/mock's generated
// mocks stand in for scaler dependencies in scale_handler_test.go.
package fake

import (
	"context"
	"sync"

	"github.com/kioskline/resolver/pkg/schedule"
)

// CacheManager is an in-memory schedule.CacheManager double.
type CacheManager struct {
	mu        sync.Mutex
	ValidSet  map[string]bool
	UnsafeSet map[int]bool
	Durations map[int]int
	Err       error
}

// NewCacheManager builds an empty CacheManager double; by default every
// path is valid and no layout is unsafe.
func NewCacheManager() *CacheManager {
	return &CacheManager{
		ValidSet:  map[string]bool{},
		UnsafeSet: map[int]bool{},
		Durations: map[int]int{},
	}
}

// SetValid marks filename's validity explicitly.
func (c *CacheManager) SetValid(filename string, valid bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ValidSet[filename] = valid
}

// SetUnsafe marks layoutID as quarantined/unsafe.
func (c *CacheManager) SetUnsafe(layoutID int, unsafe bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.UnsafeSet[layoutID] = unsafe
}

// SetDuration records the last observed duration for layoutID.
func (c *CacheManager) SetDuration(layoutID int, seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Durations[layoutID] = seconds
}

// IsValidPath implements schedule.CacheManager. Unregistered filenames are
// valid by default, so tests only need to register the ones they care
// about.
func (c *CacheManager) IsValidPath(filename string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return false, c.Err
	}
	if v, ok := c.ValidSet[filename]; ok {
		return v, nil
	}
	return true, nil
}

// IsUnsafeLayout implements schedule.CacheManager.
func (c *CacheManager) IsUnsafeLayout(layoutID int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return false, c.Err
	}
	return c.UnsafeSet[layoutID], nil
}

// LastDuration implements schedule.CacheManager.
func (c *CacheManager) LastDuration(layoutID int, fallback int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.Durations[layoutID]; ok {
		return d
	}
	return fallback
}

// AdExchangeClient is a deterministic schedule.AdExchangeClient double.
type AdExchangeClient struct {
	ShareOfVoiceSeconds int
	AverageDurationSecs int
	NextAd              schedule.Ad
	ConfigureErr        error
	GetAdErr            error
}

// Configure implements schedule.AdExchangeClient.
func (a *AdExchangeClient) Configure(context.Context) error { return a.ConfigureErr }

// ShareOfVoice implements schedule.AdExchangeClient.
func (a *AdExchangeClient) ShareOfVoice() int { return a.ShareOfVoiceSeconds }

// AverageAdDuration implements schedule.AdExchangeClient.
func (a *AdExchangeClient) AverageAdDuration() int { return a.AverageDurationSecs }

// GetAd implements schedule.AdExchangeClient.
func (a *AdExchangeClient) GetAd(context.Context, int, int) (schedule.Ad, error) {
	if a.GetAdErr != nil {
		return schedule.Ad{}, a.GetAdErr
	}
	return a.NextAd, nil
}

// ScreenshotUploader is a counting schedule.ScreenshotUploader double.
type ScreenshotUploader struct {
	mu    sync.Mutex
	Count int
	Err   error
}

// SnapAndSend implements schedule.ScreenshotUploader.
func (s *ScreenshotUploader) SnapAndSend(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Count++
	return s.Err
}

// Calls returns how many times SnapAndSend has been invoked.
func (s *ScreenshotUploader) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Count
}

// CommandRunner is a recording schedule.CommandRunner double.
type CommandRunner struct {
	mu  sync.Mutex
	Ran []string
	Err error
}

// Run implements schedule.CommandRunner.
func (r *CommandRunner) Run(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ran = append(r.Ran, code)
	return r.Err
}

// Calls returns the codes dispatched so far, in order.
func (r *CommandRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Ran))
	copy(out, r.Ran)
	return out
}
