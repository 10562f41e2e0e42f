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

// Package cid implements the command wire codec for a FUOTA fragmentation
// session's setup/status/delete/data commands (spec.md §6): a one-byte
// command identifier followed by a payload whose layout depends on both the
// CID and whether the command travels uplink or downlink.
package cid

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// CID identifies a fragmentation-session command.
type CID byte

// DefaultFPort is the fPort conventionally reserved for this command set.
const DefaultFPort uint8 = 201

const (
	PackageVersionReq    CID = 0x00
	PackageVersionAns    CID = 0x00
	FragSessionStatusReq CID = 0x01
	FragSessionStatusAns CID = 0x01
	FragSessionSetupReq  CID = 0x02
	FragSessionSetupAns  CID = 0x02
	FragSessionDeleteReq CID = 0x03
	FragSessionDeleteAns CID = 0x03
	DataFragment         CID = 0x08
)

// ErrNoPayloadForCID is returned by GetCommandPayload when no payload type
// is registered for (uplink, cid).
var ErrNoPayloadForCID = errors.New("cid: no payload registered for this command identifier")

// commandPayloadRegistry separates uplink (node -> server) from downlink
// (server -> node) payload shapes, since the same CID byte means a
// different struct depending on direction.
var commandPayloadRegistry = map[bool]map[CID]func() Payload{
	true: {
		PackageVersionAns:    func() Payload { return &PackageVersionAnsPayload{} },
		FragSessionSetupAns:  func() Payload { return &FragSessionSetupAnsPayload{} },
		FragSessionDeleteAns: func() Payload { return &FragSessionDeleteAnsPayload{} },
		FragSessionStatusAns: func() Payload { return &FragSessionStatusAnsPayload{} },
	},
	false: {
		FragSessionSetupReq:  func() Payload { return &FragSessionSetupReqPayload{} },
		FragSessionDeleteReq: func() Payload { return &FragSessionDeleteReqPayload{} },
		DataFragment:         func() Payload { return &DataFragmentPayload{} },
		FragSessionStatusReq: func() Payload { return &FragSessionStatusReqPayload{} },
	},
}

// GetCommandPayload returns a freshly allocated Payload for the given CID
// and direction.
func GetCommandPayload(uplink bool, c CID) (Payload, error) {
	v, ok := commandPayloadRegistry[uplink][c]
	if !ok {
		return nil, ErrNoPayloadForCID
	}
	return v(), nil
}

// Payload is the interface every command payload implements.
type Payload interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
	Size() int
}

// Command pairs a CID with its decoded payload.
type Command struct {
	CID     CID
	Payload Payload
}

// MarshalBinary encodes the command as CID followed by the payload bytes.
func (c Command) MarshalBinary() ([]byte, error) {
	b := []byte{byte(c.CID)}
	if c.Payload != nil {
		p, err := c.Payload.MarshalBinary()
		if err != nil {
			return nil, errors.Wrap(err, "cid: marshal payload")
		}
		b = append(b, p...)
	}
	return b, nil
}

// UnmarshalBinary decodes a command from data. An unrecognized CID is not an
// error: the command is left with a nil Payload so callers can skip it.
func (c *Command) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) == 0 {
		return errors.New("cid: at least 1 byte is expected")
	}
	c.CID = CID(data[0])

	p, err := GetCommandPayload(uplink, c.CID)
	if err != nil {
		if err == ErrNoPayloadForCID {
			return nil
		}
		return err
	}

	c.Payload = p
	if err := c.Payload.UnmarshalBinary(data[1:]); err != nil {
		return errors.Wrap(err, "cid: unmarshal payload")
	}
	return nil
}

// Size returns the encoded size of the command, including the CID byte.
func (c Command) Size() int {
	if c.Payload != nil {
		return c.Payload.Size() + 1
	}
	return 1
}

// Commands is a sequence of back-to-back encoded commands, the shape a
// FOpts/FRMPayload blob carries on the wire.
type Commands []Command

// MarshalBinary encodes every command in order.
func (c Commands) MarshalBinary() ([]byte, error) {
	var out []byte
	for _, cmd := range c {
		b, err := cmd.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// UnmarshalBinary decodes a back-to-back sequence of commands from data.
func (c *Commands) UnmarshalBinary(uplink bool, data []byte) error {
	var i int
	for i < len(data) {
		var cmd Command
		if err := cmd.UnmarshalBinary(uplink, data[i:]); err != nil {
			return err
		}
		i += cmd.Size()
		*c = append(*c, cmd)
	}
	return nil
}

// PackageVersionAnsPayload reports the fragmentation package identifier and
// version.
type PackageVersionAnsPayload struct {
	PackageIdentifier uint8
	PackageVersion    uint8
}

func (p PackageVersionAnsPayload) Size() int { return 2 }

func (p PackageVersionAnsPayload) MarshalBinary() ([]byte, error) {
	return []byte{p.PackageIdentifier, p.PackageVersion}, nil
}

func (p *PackageVersionAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) < p.Size() {
		return errors.Errorf("cid: %d bytes are expected", p.Size())
	}
	p.PackageIdentifier = data[0]
	p.PackageVersion = data[1]
	return nil
}

// FragSessionSetupReqPayload carries the session geometry a Session.Opts is
// built from: number of fragments, fragment size, and the redundancy-matrix
// selector.
type FragSessionSetupReqPayload struct {
	FragSession FragSessionSetupReqPayloadFragSession
	NbFrag      uint16
	FragSize    uint8
	Control     FragSessionSetupReqPayloadControl
	Padding     uint8
	Descriptor  [4]byte
}

type FragSessionSetupReqPayloadFragSession struct {
	FragIndex      uint8
	McGroupBitMask [4]bool
}

type FragSessionSetupReqPayloadControl struct {
	FragmentationMatrix uint8
	BlockAckDelay       uint8
}

func (p FragSessionSetupReqPayload) Size() int { return 10 }

func (p FragSessionSetupReqPayload) MarshalBinary() ([]byte, error) {
	b := make([]byte, p.Size())

	for i, mask := range p.FragSession.McGroupBitMask {
		if mask {
			b[0] |= 1 << uint8(i)
		}
	}
	b[0] |= (p.FragSession.FragIndex & 0x03) << 4

	binary.LittleEndian.PutUint16(b[1:3], p.NbFrag)
	b[3] = p.FragSize

	b[4] = p.Control.BlockAckDelay & 0x07
	b[4] |= (p.Control.FragmentationMatrix & 0x07) << 3

	b[5] = p.Padding
	copy(b[6:10], p.Descriptor[:])

	return b, nil
}

func (p *FragSessionSetupReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) < p.Size() {
		return errors.Errorf("cid: %d bytes are expected", p.Size())
	}

	for i := range p.FragSession.McGroupBitMask {
		p.FragSession.McGroupBitMask[i] = data[0]&(1<<uint8(i)) != 0
	}
	p.FragSession.FragIndex = (data[0] >> 4) & 0x03

	p.NbFrag = binary.LittleEndian.Uint16(data[1:3])
	p.FragSize = data[3]

	p.Control.BlockAckDelay = data[4] & 0x07
	p.Control.FragmentationMatrix = (data[4] >> 3) & 0x07

	p.Padding = data[5]
	copy(p.Descriptor[:], data[6:10])

	return nil
}

// FragSessionSetupAnsPayload reports whether session setup succeeded.
type FragSessionSetupAnsPayload struct {
	StatusBitMask FragSessionSetupAnsPayloadStatusBitMask
}

type FragSessionSetupAnsPayloadStatusBitMask struct {
	FragIndex                    uint8
	WrongDescriptor              bool
	FragSessionIndexNotSupported bool
	NotEnoughMemory              bool
	EncodingUnsupported          bool
}

func (p FragSessionSetupAnsPayload) Size() int { return 1 }

func (p FragSessionSetupAnsPayload) MarshalBinary() ([]byte, error) {
	b := make([]byte, p.Size())
	if p.StatusBitMask.EncodingUnsupported {
		b[0] |= 0x01
	}
	if p.StatusBitMask.NotEnoughMemory {
		b[0] |= 0x02
	}
	if p.StatusBitMask.FragSessionIndexNotSupported {
		b[0] |= 0x04
	}
	if p.StatusBitMask.WrongDescriptor {
		b[0] |= 0x08
	}
	b[0] |= (p.StatusBitMask.FragIndex & 0x03) << 6
	return b, nil
}

func (p *FragSessionSetupAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) < p.Size() {
		return errors.Errorf("cid: %d byte is expected", p.Size())
	}
	p.StatusBitMask.EncodingUnsupported = data[0]&0x01 != 0
	p.StatusBitMask.NotEnoughMemory = data[0]&0x02 != 0
	p.StatusBitMask.FragSessionIndexNotSupported = data[0]&0x04 != 0
	p.StatusBitMask.WrongDescriptor = data[0]&0x08 != 0
	p.StatusBitMask.FragIndex = (data[0] >> 6) & 0x03
	return nil
}

// FragSessionDeleteReqPayload requests termination of a session.
type FragSessionDeleteReqPayload struct {
	Param FragSessionDeleteReqPayloadParam
}

type FragSessionDeleteReqPayloadParam struct {
	FragIndex uint8
}

func (p FragSessionDeleteReqPayload) Size() int { return 1 }

func (p FragSessionDeleteReqPayload) MarshalBinary() ([]byte, error) {
	b := make([]byte, p.Size())
	b[0] = p.Param.FragIndex & 0x03
	return b, nil
}

func (p *FragSessionDeleteReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) < p.Size() {
		return errors.Errorf("cid: %d byte is expected", p.Size())
	}
	p.Param.FragIndex = data[0] & 0x03
	return nil
}

// FragSessionDeleteAnsPayload reports the outcome of a delete request.
type FragSessionDeleteAnsPayload struct {
	Status FragSessionDeleteAnsPayloadStatus
}

type FragSessionDeleteAnsPayloadStatus struct {
	FragIndex           uint8
	SessionDoesNotExist bool
}

func (p FragSessionDeleteAnsPayload) Size() int { return 1 }

func (p FragSessionDeleteAnsPayload) MarshalBinary() ([]byte, error) {
	b := make([]byte, p.Size())
	b[0] = p.Status.FragIndex & 0x03
	if p.Status.SessionDoesNotExist {
		b[0] |= 0x04
	}
	return b, nil
}

func (p *FragSessionDeleteAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) < p.Size() {
		return errors.Errorf("cid: %d byte is expected", p.Size())
	}
	p.Status.FragIndex = data[0] & 0x03
	p.Status.SessionDoesNotExist = data[0]&0x04 != 0
	return nil
}

// DataFragmentPayload carries one data or parity frame: its 1-based index
// (IndexAndN.N) and the session's fragment index. This is the payload a
// session.Session.ProcessFrame call is ultimately built from.
type DataFragmentPayload struct {
	IndexAndN DataFragmentPayloadIndexAndN
	Payload   []byte
}

type DataFragmentPayloadIndexAndN struct {
	FragIndex uint8
	N         uint16
}

func (p DataFragmentPayload) Size() int { return 2 + len(p.Payload) }

func (p DataFragmentPayload) MarshalBinary() ([]byte, error) {
	b := make([]byte, p.Size())
	binary.LittleEndian.PutUint16(b[0:2], p.IndexAndN.N&0x3fff)
	b[1] |= (p.IndexAndN.FragIndex & 0x03) << 6
	copy(b[2:], p.Payload)
	return b, nil
}

func (p *DataFragmentPayload) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return errors.New("cid: 2 bytes are expected")
	}
	p.IndexAndN.N = binary.LittleEndian.Uint16(data[0:2]) & 0x3fff
	p.IndexAndN.FragIndex = data[1] >> 6
	p.Payload = make([]byte, len(data[2:]))
	copy(p.Payload, data[2:])
	return nil
}

// FragSessionStatusReqPayload requests a progress report from a node.
type FragSessionStatusReqPayload struct {
	FragStatusReqParam FragSessionStatusReqPayloadFragStatusReqParam
}

type FragSessionStatusReqPayloadFragStatusReqParam struct {
	FragIndex    uint8
	Participants bool
}

func (p FragSessionStatusReqPayload) Size() int { return 1 }

func (p FragSessionStatusReqPayload) MarshalBinary() ([]byte, error) {
	b := make([]byte, p.Size())
	if p.FragStatusReqParam.Participants {
		b[0] |= 0x01
	}
	b[0] |= (p.FragStatusReqParam.FragIndex & 0x03) << 1
	return b, nil
}

func (p *FragSessionStatusReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) < p.Size() {
		return errors.Errorf("cid: %d byte is expected", p.Size())
	}
	p.FragStatusReqParam.Participants = data[0]&0x01 != 0
	p.FragStatusReqParam.FragIndex = (data[0] >> 1) & 0x03
	return nil
}

// FragSessionStatusAnsPayload reports the number of fragments received and
// the count still missing — the wire-level mirror of
// Session.LostCount/ReceivedCount.
type FragSessionStatusAnsPayload struct {
	ReceivedAndIndex FragSessionStatusAnsPayloadReceivedAndIndex
	MissingFrag      uint8
	Status           FragSessionStatusAnsPayloadStatus
}

type FragSessionStatusAnsPayloadReceivedAndIndex struct {
	FragIndex      uint8
	NbFragReceived uint16
}

type FragSessionStatusAnsPayloadStatus struct {
	NotEnoughMatrixMemory bool
}

func (p FragSessionStatusAnsPayload) Size() int { return 4 }

func (p FragSessionStatusAnsPayload) MarshalBinary() ([]byte, error) {
	b := make([]byte, p.Size())
	binary.LittleEndian.PutUint16(b[0:2], p.ReceivedAndIndex.NbFragReceived&0x3fff)
	b[1] |= (p.ReceivedAndIndex.FragIndex & 0x03) << 6
	b[2] = p.MissingFrag
	if p.Status.NotEnoughMatrixMemory {
		b[3] |= 0x01
	}
	return b, nil
}

func (p *FragSessionStatusAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) < p.Size() {
		return errors.Errorf("cid: %d bytes are expected", p.Size())
	}
	p.ReceivedAndIndex.NbFragReceived = binary.LittleEndian.Uint16(data[0:2]) & 0x3fff
	p.ReceivedAndIndex.FragIndex = data[1] >> 6
	p.MissingFrag = data[2]
	p.Status.NotEnoughMatrixMemory = data[3]&0x01 != 0
	return nil
}
