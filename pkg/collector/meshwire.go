/*-
 * Copyright 2025 Carver Automation Corporation.
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

package collector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net"
	"strconv"

	"github.com/mfreeman451/meshradar/pkg/models"
	"google.golang.org/protobuf/encoding/protowire"
)

// Radio stream framing: two magic bytes, a big-endian length, then one
// protobuf message.
const (
	frameStart1  = 0x94
	frameStart2  = 0xc3
	maxFrameSize = 512
)

// Field numbers of the radio protobuf messages read and written here.
const (
	toRadioWantConfig protowire.Number = 3
	toRadioHeartbeat  protowire.Number = 7

	fromRadioPacket         protowire.Number = 2
	fromRadioMyInfo         protowire.Number = 3
	fromRadioNodeInfo       protowire.Number = 4
	fromRadioConfigComplete protowire.Number = 7

	packetFrom     protowire.Number = 1
	packetTo       protowire.Number = 2
	packetDecoded  protowire.Number = 4
	packetID       protowire.Number = 6
	packetRxTime   protowire.Number = 7
	packetRxSNR    protowire.Number = 8
	packetHopLimit protowire.Number = 9
	packetRxRSSI   protowire.Number = 12
	packetHopStart protowire.Number = 15

	dataPortNum protowire.Number = 1
	dataPayload protowire.Number = 2

	positionLatitude  protowire.Number = 1
	positionLongitude protowire.Number = 2
	positionAltitude  protowire.Number = 3

	userID         protowire.Number = 1
	userLongName   protowire.Number = 2
	userShortName  protowire.Number = 3
	userMacAddr    protowire.Number = 4
	userHWModel    protowire.Number = 5
	userIsLicensed protowire.Number = 6

	nodeNum       protowire.Number = 1
	nodeUser      protowire.Number = 2
	nodePosition  protowire.Number = 3
	nodeSNR       protowire.Number = 4
	nodeLastHeard protowire.Number = 5
	nodeHopsAway  protowire.Number = 9
)

var portNames = map[uint64]string{
	0:   "UNKNOWN_APP",
	1:   models.PortText,
	2:   "REMOTE_HARDWARE_APP",
	3:   models.PortPosition,
	4:   models.PortNodeInfo,
	5:   "ROUTING_APP",
	6:   "ADMIN_APP",
	7:   "TEXT_MESSAGE_COMPRESSED_APP",
	8:   "WAYPOINT_APP",
	9:   "AUDIO_APP",
	10:  "DETECTION_SENSOR_APP",
	32:  "REPLY_APP",
	33:  "IP_TUNNEL_APP",
	34:  "PAXCOUNTER_APP",
	64:  "SERIAL_APP",
	65:  "STORE_FORWARD_APP",
	66:  "RANGE_TEST_APP",
	67:  "TELEMETRY_APP",
	68:  "ZPS_APP",
	69:  "SIMULATOR_APP",
	70:  "TRACEROUTE_APP",
	71:  "NEIGHBORINFO_APP",
	72:  "ATAK_PLUGIN",
	73:  "MAP_REPORT_APP",
	256: "PRIVATE_APP",
}

var hwModelNames = map[uint64]string{
	0:   "UNSET",
	1:   "TLORA_V2",
	2:   "TLORA_V1",
	3:   "TLORA_V2_1_1P6",
	4:   "TBEAM",
	5:   "HELTEC_V2_0",
	6:   "TBEAM_V0P7",
	7:   "T_ECHO",
	8:   "TLORA_V1_1P3",
	9:   "RAK4631",
	10:  "HELTEC_V2_1",
	11:  "HELTEC_V1",
	12:  "LILYGO_TBEAM_S3_CORE",
	13:  "RAK11200",
	14:  "NANO_G1",
	15:  "TLORA_V2_1_1P8",
	16:  "TLORA_T3_S3",
	17:  "NANO_G1_EXPLORER",
	18:  "NANO_G2_ULTRA",
	25:  "STATION_G1",
	26:  "RAK11310",
	31:  "STATION_G2",
	39:  "DIY_V1",
	43:  "HELTEC_V3",
	44:  "HELTEC_WSL_V3",
	48:  "HELTEC_WIRELESS_TRACKER",
	50:  "T_DECK",
	255: "PRIVATE_HW",
}

func enumName(names map[uint64]string, v uint64) string {
	if name, ok := names[v]; ok {
		return name
	}

	return strconv.FormatUint(v, 10)
}

// writeFrame sends one framed message.
func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	buf := make([]byte, 4, 4+len(payload))
	buf[0], buf[1] = frameStart1, frameStart2
	binary.BigEndian.PutUint16(buf[2:], uint16(len(payload)))

	_, err := w.Write(append(buf, payload...))

	return err
}

// readFrame returns the next framed message. Bytes outside a frame are
// the radio's debug console and are skipped, as are headers announcing an
// impossible length.
func readFrame(r *bufio.Reader) ([]byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}

		if b != frameStart1 {
			continue
		}

		if b, err = r.ReadByte(); err != nil {
			return nil, err
		}

		if b != frameStart2 {
			if b == frameStart1 {
				_ = r.UnreadByte()
			}

			continue
		}

		var hdr [2]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, err
		}

		n := int(binary.BigEndian.Uint16(hdr[:]))
		if n > maxFrameSize {
			continue
		}

		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}

		return payload, nil
	}
}

func encodeWantConfig(id uint32) []byte {
	b := protowire.AppendTag(nil, toRadioWantConfig, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(id))
}

func encodeHeartbeat() []byte {
	b := protowire.AppendTag(nil, toRadioHeartbeat, protowire.BytesType)
	return protowire.AppendBytes(b, nil)
}

type wireField struct {
	num   protowire.Number
	typ   protowire.Type
	value uint64 // varint, fixed32 and fixed64 fields
	bytes []byte
}

func (f *wireField) float32() float64 {
	return float64(math.Float32frombits(uint32(f.value)))
}

// walkFields calls fn for every field of a protobuf message. Groups and
// unknown wire types are skipped.
func walkFields(b []byte, fn func(f *wireField) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrDecodeFrame, protowire.ParseError(n))
		}

		b = b[n:]
		f := wireField{num: num, typ: typ}

		switch typ {
		case protowire.VarintType:
			f.value, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.value = uint64(v)
		case protowire.Fixed64Type:
			f.value, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}

		if n < 0 {
			return fmt.Errorf("%w: field %d: %w", ErrDecodeFrame, num, protowire.ParseError(n))
		}

		b = b[n:]

		if err := fn(&f); err != nil {
			return err
		}
	}

	return nil
}

// fromRadio is the part of a radio message the collector acts on.
type fromRadio struct {
	Packet           *models.Packet
	Node             *models.NodeInfo
	MyNodeNum        uint32
	ConfigCompleteID uint32
}

func decodeFromRadio(b []byte) (fromRadio, error) {
	var msg fromRadio

	err := walkFields(b, func(f *wireField) error {
		var err error

		switch f.num {
		case fromRadioPacket:
			msg.Packet, err = decodePacket(f.bytes)
		case fromRadioNodeInfo:
			msg.Node, err = decodeNodeInfo(f.bytes)
		case fromRadioMyInfo:
			err = walkFields(f.bytes, func(mf *wireField) error {
				if mf.num == 1 {
					msg.MyNodeNum = uint32(mf.value)
				}

				return nil
			})
		case fromRadioConfigComplete:
			msg.ConfigCompleteID = uint32(f.value)
		}

		return err
	})

	return msg, err
}

func decodePacket(b []byte) (*models.Packet, error) {
	p := &models.Packet{}

	err := walkFields(b, func(f *wireField) error {
		switch f.num {
		case packetFrom:
			p.From = uint32(f.value)
		case packetTo:
			p.To = uint32(f.value)
		case packetID:
			p.ID = uint32(f.value)
		case packetRxTime:
			p.RxTime = int64(uint32(f.value))
		case packetRxSNR:
			snr := f.float32()
			p.RxSNR = &snr
		case packetRxRSSI:
			rssi := float64(int32(f.value))
			p.RxRSSI = &rssi
		case packetHopLimit:
			v := uint32(f.value)
			p.HopLimit = &v
		case packetHopStart:
			v := uint32(f.value)
			p.HopStart = &v
		case packetDecoded:
			d, err := decodeData(f.bytes)
			if err != nil {
				return err
			}

			p.Decoded = d
		}

		return nil
	})

	return p, err
}

func decodeData(b []byte) (*models.Decoded, error) {
	var (
		port    uint64
		payload []byte
	)

	err := walkFields(b, func(f *wireField) error {
		switch f.num {
		case dataPortNum:
			port = f.value
		case dataPayload:
			payload = f.bytes
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	d := &models.Decoded{PortNum: enumName(portNames, port)}

	switch d.PortNum {
	case models.PortPosition:
		d.Position, err = decodePosition(payload)
	case models.PortNodeInfo:
		d.User, err = decodeUser(payload)
	}

	return d, err
}

func decodePosition(b []byte) (*models.PositionPayload, error) {
	pos := &models.PositionPayload{}

	err := walkFields(b, func(f *wireField) error {
		switch f.num {
		case positionLatitude:
			pos.LatitudeI = int32(uint32(f.value))
		case positionLongitude:
			pos.LongitudeI = int32(uint32(f.value))
		case positionAltitude:
			pos.Altitude = int32(f.value)
		}

		return nil
	})

	return pos, err
}

func decodeUser(b []byte) (*models.User, error) {
	u := &models.User{HWModel: enumName(hwModelNames, 0)}

	err := walkFields(b, func(f *wireField) error {
		switch f.num {
		case userID:
			u.ID = string(f.bytes)
		case userLongName:
			u.LongName = string(f.bytes)
		case userShortName:
			u.ShortName = string(f.bytes)
		case userMacAddr:
			u.MacAddr = net.HardwareAddr(f.bytes).String()
		case userHWModel:
			u.HWModel = enumName(hwModelNames, f.value)
		case userIsLicensed:
			u.IsLicensed = f.value != 0
		}

		return nil
	})

	return u, err
}

func decodeNodeInfo(b []byte) (*models.NodeInfo, error) {
	n := &models.NodeInfo{}

	err := walkFields(b, func(f *wireField) error {
		var err error

		switch f.num {
		case nodeNum:
			n.Num = uint32(f.value)
		case nodeUser:
			n.User, err = decodeUser(f.bytes)
		case nodePosition:
			n.Position, err = decodePosition(f.bytes)
		case nodeSNR:
			snr := f.float32()
			n.SNR = &snr
		case nodeLastHeard:
			n.LastHeard = int64(uint32(f.value))
		case nodeHopsAway:
			hops := uint32(f.value)
			n.HopsAway = &hops
		}

		return err
	})

	return n, err
}
