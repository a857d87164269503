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

package schedule

import "context"

// CacheManager reports whether a layout file and its dependents are
// available and safe to play, and remembers the last observed duration of a
// layout. It is implemented by the on-disk content cache, which lives
// outside this package.
type CacheManager interface {
	// IsValidPath reports whether filename is present and cache-valid.
	IsValidPath(filename string) (bool, error)
	// IsUnsafeLayout reports whether layoutID has been quarantined as unsafe.
	IsUnsafeLayout(layoutID int) (bool, error)
	// LastDuration returns the last observed playback duration in seconds
	// for layoutID, or fallback if none has ever been observed.
	LastDuration(layoutID int, fallback int) int
}

// AdExchangeClient reports share-of-voice configuration and serves concrete
// ads on demand. The concrete exchange integration lives outside this
// package.
type AdExchangeClient interface {
	// Configure refreshes the exchange's view of the player's inventory.
	Configure(ctx context.Context) error
	// ShareOfVoice returns seconds-per-hour the exchange wants to occupy.
	ShareOfVoice() int
	// AverageAdDuration returns the average creative duration in seconds.
	AverageAdDuration() int
	// GetAd requests a concrete ad sized for w x h.
	GetAd(ctx context.Context, w, h int) (Ad, error)
}

// ScreenshotUploader snaps and sends a screenshot of the current layout. The
// concrete capture/upload path lives outside this package.
type ScreenshotUploader interface {
	SnapAndSend(ctx context.Context) error
}

// CommandRunner executes a dispatched command's opaque code string. The
// default implementation shells out to the platform shell.
type CommandRunner interface {
	Run(ctx context.Context, code string) error
}
