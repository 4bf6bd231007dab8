// Package zoedl is a resumable, multi-connection HTTP(S)/file://
// downloader built around a slice scheduler and resume engine. Its
// public surface is small — Downloader, Config, Callbacks — backed by
// the internal/* components that do the actual work.
package zoedl

import "github.com/zoedl/zoedl/internal/httpclient"

// GlobalInit brings the process-wide HTTP transport up. It is
// idempotent and refcounted: every Downloader.Start call increments the
// count internally, and the matching Stopped transition decrements it.
// Callers that want the transport warmed before the first Start may call
// this directly; it is safe to call redundantly.
func GlobalInit() { httpclient.GlobalInit() }

// GlobalUnInit tears the shared transport down once nothing references
// it anymore. Safe to call even if GlobalInit was never called.
func GlobalUnInit() { httpclient.GlobalUnInit() }
