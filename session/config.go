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

package session

import (
	"encoding/json"
	"os"
)

// Config mirrors FragSessionSetupReqPayload's fields, letting a caller load
// session parameters from a file or from a decoded FragSessionSetupReq
// command payload instead of building Opts by hand, the way
// server/config.go's parseJSONConfig overlays a JSON file onto a flag set.
type Config struct {
	N           int   `json:"n"`
	FragSize    int   `json:"fragSize"`
	Padding     int   `json:"padding"`
	Redundancy  int   `json:"redundancy"`
	FlashOffset int64 `json:"flashOffset"`
}

// LoadConfig decodes a JSON file into a Config.
func LoadConfig(path string) (Config, error) {
	var config Config
	file, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer file.Close()

	err = json.NewDecoder(file).Decode(&config)
	return config, err
}

// Opts converts Config to the Opts New expects.
func (c Config) Opts() Opts {
	return Opts{
		NumberOfFragments: c.N,
		FragmentSize:      c.FragSize,
		Padding:           c.Padding,
		RedundancyPackets: c.Redundancy,
		FlashOffset:       c.FlashOffset,
	}
}
