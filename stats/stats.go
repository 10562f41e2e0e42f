// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package stats provides a periodic CSV reporter for a session's frame
// counters, following the shape of the teacher's SnmpLogger: a ticker, a
// header written once to an otherwise-empty file, and one row appended per
// tick. Unlike SnmpLogger it reads from a Counters value the caller updates
// directly rather than a single process-wide global, since each fragsim run
// owns its own session.
package stats

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Counters holds the frame-level tallies a Reporter logs. All fields are
// updated with sync/atomic so a caller can report from one goroutine while
// feeding frames from another.
type Counters struct {
	DataFrames   uint64
	ParityFrames uint64
	LostSlots    uint64
	Complete     uint64 // 0 or 1; written with atomic.StoreUint64
}

func (c *Counters) AddData()   { atomic.AddUint64(&c.DataFrames, 1) }
func (c *Counters) AddParity() { atomic.AddUint64(&c.ParityFrames, 1) }

// SetLost records the caller's current lost-slot count (fragsim passes
// Session.LostCount), overwriting any previous value.
func (c *Counters) SetLost(n int) { atomic.StoreUint64(&c.LostSlots, uint64(n)) }

// SetComplete marks the session as finished.
func (c *Counters) SetComplete() { atomic.StoreUint64(&c.Complete, 1) }

func (c *Counters) snapshot() []string {
	return []string{
		fmt.Sprint(atomic.LoadUint64(&c.DataFrames)),
		fmt.Sprint(atomic.LoadUint64(&c.ParityFrames)),
		fmt.Sprint(atomic.LoadUint64(&c.LostSlots)),
		fmt.Sprint(atomic.LoadUint64(&c.Complete)),
	}
}

var header = []string{"Unix", "DataFrames", "ParityFrames", "LostSlots", "Complete"}

// Reporter appends one CSV row per tick to path until done is closed. path is
// passed through time.Now().Format before use, the same filename-rotation
// idiom SnmpLogger applies (e.g. "session-20060102.csv").
func Reporter(path string, interval time.Duration, counters *Counters, done <-chan struct{}) {
	if path == "" || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			logdir, logfile := filepath.Split(path)
			f, err := os.OpenFile(logdir+time.Now().Format(logfile), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
			if err != nil {
				log.Println(err)
				return
			}

			w := csv.NewWriter(f)
			if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
				if err := w.Write(header); err != nil {
					log.Println(err)
				}
			}
			if err := w.Write(append([]string{fmt.Sprint(time.Now().Unix())}, counters.snapshot()...)); err != nil {
				log.Println(err)
			}
			w.Flush()
			f.Close()
		}
	}
}
