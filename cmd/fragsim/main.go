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

// fragsim drives a Session with a synthetic image: it fragments the image,
// computes a redundancy budget of XOR parity frames, drops a configurable
// number of the data frames, and replays the remainder (data + parity) in
// shuffled order to demonstrate reconstruction. It plays the role the
// client/server split plays in the teacher: a single binary that exercises
// the whole stack end to end instead of two halves of a tunnel.
package main

import (
	"crypto/sha256"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/lora-fuota/fragdec/flash"
	"github.com/lora-fuota/fragdec/integrity"
	"github.com/lora-fuota/fragdec/parity"
	"github.com/lora-fuota/fragdec/session"
	"github.com/lora-fuota/fragdec/stats"
)

// VERSION is injected by buildflags.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "fragsim"
	myApp.Usage = "simulate a FUOTA fragmented data-block transport session"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "fragments,n",
			Value: 100,
			Usage: "number of uncoded fragments in the image",
		},
		cli.IntFlag{
			Name:  "fragsize,s",
			Value: 64,
			Usage: "size of each fragment, in bytes",
		},
		cli.IntFlag{
			Name:  "redundancy,red",
			Value: 20,
			Usage: "number of XOR parity frames to generate",
		},
		cli.IntFlag{
			Name:  "loss,l",
			Value: 15,
			Usage: "number of data fragments to drop before replay",
		},
		cli.Int64Flag{
			Name:  "seed",
			Value: 1,
			Usage: "PRNG seed for the synthetic image and arrival order",
		},
		cli.StringFlag{
			Name:  "snmplog",
			Value: "",
			Usage: "collect frame counters to file, aware of timeformat in golang",
		},
		cli.IntFlag{
			Name:  "snmpperiod",
			Value: 1,
			Usage: "frame counter collection period, in seconds",
		},
		cli.StringFlag{
			Name:  "c",
			Value: "",
			Usage: "config from json file, which will override the flags from shell",
		},
	}
	myApp.Action = run
	if err := myApp.Run(os.Args); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(c *cli.Context) error {
	config := Config{
		Fragments:  c.Int("fragments"),
		FragSize:   c.Int("fragsize"),
		Redundancy: c.Int("redundancy"),
		Loss:       c.Int("loss"),
		Seed:       c.Int64("seed"),
		SnmpLog:    c.String("snmplog"),
		SnmpPeriod: c.Int("snmpperiod"),
	}
	if c.String("c") != "" {
		if err := parseJSONConfig(&config, c.String("c")); err != nil {
			return errors.Wrap(err, "fragsim: load config file")
		}
	}

	n := config.Fragments
	fragSize := config.FragSize
	red := config.Redundancy
	loss := config.Loss
	seed := config.Seed

	log.Println("fragments:", n)
	log.Println("fragsize:", fragSize)
	log.Println("redundancy:", red)
	log.Println("loss:", loss)
	log.Println("seed:", seed)

	if loss > red {
		color.Red("WARNING: loss (%d) exceeds redundancy (%d), reconstruction will not complete.", loss, red)
	}

	rng := rand.New(rand.NewSource(seed))
	img := make([]byte, n*fragSize)
	rng.Read(img)

	dev := flash.NewMemory(n*fragSize+4096, 256, 4096)
	sess := session.New(dev, session.Opts{
		NumberOfFragments: n,
		FragmentSize:      fragSize,
		RedundancyPackets: red,
	})
	if err := sess.Initialize(); err != nil {
		return errors.Wrap(err, "fragsim: initialize session")
	}

	counters := &stats.Counters{}
	done := make(chan struct{})
	if config.SnmpLog != "" {
		go stats.Reporter(config.SnmpLog, time.Duration(config.SnmpPeriod)*time.Second, counters, done)
		defer close(done)
	}

	lost := make(map[int]bool)
	for len(lost) < loss {
		lost[rng.Intn(n)] = true
	}

	type frame struct {
		index   int
		payload []byte
	}
	var frames []frame
	for k := 0; k < n; k++ {
		if !lost[k] {
			frames = append(frames, frame{k + 1, img[k*fragSize : (k+1)*fragSize]})
		}
	}
	for j := 1; j <= red; j++ {
		frames = append(frames, frame{n + j, parityPayload(img, n, fragSize, j)})
	}
	rng.Shuffle(len(frames), func(i, j int) { frames[i], frames[j] = frames[j], frames[i] })

	var completed bool
	for _, f := range frames {
		res, err := sess.ProcessFrame(f.index, f.payload)
		if err != nil {
			return errors.Wrapf(err, "fragsim: process frame %d", f.index)
		}
		if f.index <= n {
			counters.AddData()
		} else {
			counters.AddParity()
		}
		counters.SetLost(sess.LostCount())
		if res == session.ResultComplete {
			completed = true
			counters.SetComplete()
			break
		}
	}

	if !completed {
		color.Red("reconstruction incomplete: %d fragment(s) still missing", sess.LostCount())
		return fmt.Errorf("fragsim: reconstruction incomplete")
	}

	wantDigest := sha256.Sum256(img)
	want := wantDigest[:]
	gotDigest, err := integrity.Digest(sess.Store(), integrity.SHA256, 0, int64(len(img)), make([]byte, 4096))
	if err != nil {
		return errors.Wrap(err, "fragsim: digest reconstructed image")
	}

	if string(gotDigest) == string(want) {
		color.Green("reconstruction complete, SHA-256 %x matches original", gotDigest)
	} else {
		color.Red("reconstruction complete but SHA-256 mismatch: got %x want %x", gotDigest, want)
		return fmt.Errorf("fragsim: digest mismatch after reconstruction")
	}
	return nil
}

func parityPayload(img []byte, n, fragSize, j int) []byte {
	row := parity.Row(n, j)
	out := make([]byte, fragSize)
	for k := 0; k < n; k++ {
		if row[k] == 1 {
			for b := 0; b < fragSize; b++ {
				out[b] ^= img[k*fragSize+b]
			}
		}
	}
	return out
}
