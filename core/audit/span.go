// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package audit records HTTP traffic in flight: a runtime/trace task, a
Server-Timing metric when the request context carries one, and a debug log line.
*/
package audit

import (
	"context"
	"encoding/base64"
	"runtime/trace"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	servertiming "github.com/mitchellh/go-server-timing"
	"github.com/rs/zerolog/log"
)

// Span represents an HTTP request in flight.
type Span struct {
	// only these fields are set automatically
	task     *trace.Task
	start    time.Time
	duration time.Duration
	metric   *servertiming.Metric

	Destination TrafficDestination
	RequestID   string
	Method      string
	URL         string
	StatusCode  int
	Size        int
	Error       error
}

// TrafficDestination describes the logical destination of an HTTP request.
type TrafficDestination string

const (
	// ToUser is a response served to a browser form.
	ToUser TrafficDestination = "user"

	// ToTranslator is an outbound call to the machine translation service.
	ToTranslator TrafficDestination = "translator"
)

// ServerTimingName names the span's Server-Timing metric as destination$method$base64url(URL),
// without padding so it stays a valid token.
func (span Span) ServerTimingName() string {
	return string(span.Destination) + "$" + span.Method + "$" + base64.RawURLEncoding.EncodeToString([]byte(span.URL))
}

// Begin starts timing the span. The returned context carries the trace task.
func (span *Span) Begin(ctx context.Context) context.Context {
	span.start = time.Now()

	ctx, span.task = trace.NewTask(ctx, "http."+string(span.Destination))
	if timing := servertiming.FromContext(ctx); timing != nil {
		span.metric = timing.NewMetric(span.ServerTimingName())
		span.metric.Extra = map[string]string{
			"start": strconv.FormatFloat(float64(span.start.UnixNano())/float64(time.Millisecond), 'f', -1, 64),
		}
	}

	return ctx
}

// End stops timing the span. Only the first call has an effect.
func (span *Span) End() {
	if span.task == nil {
		return
	}

	span.duration = time.Since(span.start)
	span.task.End()

	if span.metric != nil {
		span.metric.Duration = span.duration
	}

	span.task = nil
}

// Duration returns the measured duration, or zero before End.
func (span *Span) Duration() time.Duration {
	return span.duration
}

// Log writes the span as a debug line with sys=http.
func (span Span) Log() {
	event := log.Debug().
		Str("sys", "http").
		Str("method", span.Method).
		Str("url", span.URL).
		Int("status_code", span.StatusCode).
		Str("len", humanizeSize(span.Size)).
		Dur("dur", span.duration).
		Str("destination", string(span.Destination)).
		Str("request_id", span.RequestID)

	if span.Error != nil {
		event.Err(span.Error)
	}

	event.Send()
}

func humanizeSize(x int) string {
	return humanize.IBytes(uint64(max(x, 0)))
}
