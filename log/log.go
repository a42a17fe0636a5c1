// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log is a small stderr logger for diagnostics that happen before a
// contracts.Reporter exists (config load, collaborator wiring) or that fall
// outside the Reporter's per-install progress stream (the CLI's
// deprecated-flag notice).
package log

import "log"

// Errorf logs a formatted error-level message.
func Errorf(format string, args ...any) {
	log.Printf("error: "+format, args...)
}

// Warnf logs a formatted warning-level message.
func Warnf(format string, args ...any) {
	log.Printf("warn: "+format, args...)
}
