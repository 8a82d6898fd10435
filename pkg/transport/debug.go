/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
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

package transport

import (
	"context"
	"fmt"
	"io"

	"github.com/srediag/sumipc/pkg/sem"
	"github.com/srediag/sumipc/pkg/shm"
)

// DebugDetail prints the semaphore counts and buffer contents of a live
// session. It attaches to the named objects without posting or waiting.
func DebugDetail(w io.Writer, segName, requestName, responseName string) error {
	seg, err := shm.Open(context.Background(), shm.Options{Name: segName})
	if err != nil {
		return err
	}
	defer seg.Close()

	for _, f := range []*shm.Field{seg.Inbound(), seg.Outbound()} {
		fmt.Fprintf(w, "segment:%s field:%s cap:%d data:%q\n", segName, f.Name(), f.Cap(), f.Load())
	}
	for _, name := range []string{requestName, responseName} {
		s, err := sem.Open(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "semaphore:%s value:%d waiters:%d\n", name, s.Value(), s.Waiters())
		_ = s.Close()
	}
	return nil
}
