/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package worker is the answering side: it sums every request line, logs
// the response and hands it back, until the controller says stop.
package worker

import (
	"context"
	"errors"
	"io"

	"github.com/valyala/bytebufferpool"

	"github.com/srediag/sumipc/api"
	"github.com/srediag/sumipc/internal/logging"
	"github.com/srediag/sumipc/pkg/wire"
)

var internalLogger = logging.New("worker", nil)

// Serve answers requests on t until the termination sentinel or end of
// stream, and returns nil then. Every response is recorded to rec before it
// is sent; a failed record is logged and does not stop the loop. Transport
// errors are returned.
func Serve(ctx context.Context, t api.Transport, rec api.Recorder) error {
	limit := -1
	if b, ok := t.(api.Bounded); ok {
		limit = b.MaxLine() - 1
	}
	for {
		line, err := t.RecvLine(ctx)
		if errors.Is(err, io.EOF) {
			internalLogger.Debugf("peer closed the stream")
			return nil
		}
		if err != nil {
			return err
		}
		if wire.IsSentinel(line) {
			internalLogger.Debugf("termination sentinel received")
			return nil
		}

		if err := answer(ctx, t, rec, line, limit); err != nil {
			return err
		}
	}
}

// answer encodes the response once into a pooled buffer and hands the same
// bytes to rec and t. Neither may keep them after returning.
func answer(ctx context.Context, t api.Transport, rec api.Recorder, line []byte, limit int) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	result := wire.ParseSum(line)
	buf.B = wire.AppendResponse(buf.B, result)
	resp := buf.B
	if limit >= 0 && len(resp) > limit {
		internalLogger.Debugf("response cut from %d to %d bytes", len(resp), limit)
		resp = wire.Truncate(resp, limit)
	}
	internalLogger.Tracef("%q -> %s %q", line, result.Kind, resp)

	if rec != nil {
		if err := rec.Record(resp); err != nil {
			internalLogger.Warnf("record response: %v", err)
		}
	}
	return t.SendLine(ctx, resp)
}
