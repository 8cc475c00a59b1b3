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

package models

import (
	"fmt"
	"time"
)

const (
	// coordinateScale converts the integer latitudeI/longitudeI fields to degrees.
	coordinateScale = 1e-7

	// PortEncrypted is used as the message type when a packet could not be decoded.
	PortEncrypted = "ENCRYPTED"

	PortPosition = "POSITION_APP"
	PortNodeInfo = "NODEINFO_APP"
	PortText     = "TEXT_MESSAGE_APP"
)

// User is the identity a radio announces about itself.
type User struct {
	ID         string `json:"id"`
	LongName   string `json:"longName"`
	ShortName  string `json:"shortName"`
	MacAddr    string `json:"macaddr"`
	HWModel    string `json:"hwModel"`
	IsLicensed bool   `json:"isLicensed"`
}

// Position is a decoded GPS fix in degrees and meters.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// PositionPayload is the wire form of a position, either as floating point
// degrees or as the scaled integer fields radios send.
type PositionPayload struct {
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	LatitudeI  int32    `json:"latitudeI,omitempty"`
	LongitudeI int32    `json:"longitudeI,omitempty"`
	Altitude   int32    `json:"altitude,omitempty"`
}

// Position converts the payload. It reports false when the payload carries
// no fix (both coordinates zero), which radios send before GPS lock.
func (p *PositionPayload) Position() (Position, bool) {
	if p == nil {
		return Position{}, false
	}

	pos := Position{Altitude: float64(p.Altitude)}

	switch {
	case p.Latitude != nil && p.Longitude != nil:
		pos.Latitude = *p.Latitude
		pos.Longitude = *p.Longitude
	default:
		pos.Latitude = float64(p.LatitudeI) * coordinateScale
		pos.Longitude = float64(p.LongitudeI) * coordinateScale
	}

	if pos.Latitude == 0 && pos.Longitude == 0 {
		return Position{}, false
	}

	return pos, true
}

// Decoded is the application payload of a packet.
type Decoded struct {
	PortNum  string           `json:"portnum"`
	Position *PositionPayload `json:"position,omitempty"`
	User     *User            `json:"user,omitempty"`
}

// Packet is a mesh packet as received by a gateway radio.
type Packet struct {
	From     uint32   `json:"from"`
	To       uint32   `json:"to"`
	ID       uint32   `json:"id"`
	RxTime   int64    `json:"rxTime"`
	RxSNR    *float64 `json:"rxSnr,omitempty"`
	RxRSSI   *float64 `json:"rxRssi,omitempty"`
	HopLimit *uint32  `json:"hopLimit,omitempty"`
	HopStart *uint32  `json:"hopStart,omitempty"`
	Decoded  *Decoded `json:"decoded,omitempty"`
}

// Type returns the message type label for the packet.
func (p *Packet) Type() string {
	if p.Decoded == nil || p.Decoded.PortNum == "" {
		return PortEncrypted
	}

	return p.Decoded.PortNum
}

// HopsAway derives the hop count from hop_start and hop_limit. Older
// firmware does not send hop_start, in which case ok is false.
func (p *Packet) HopsAway() (hops uint32, ok bool) {
	if p.HopStart == nil || p.HopLimit == nil || *p.HopStart == 0 {
		return 0, false
	}

	if *p.HopLimit > *p.HopStart {
		return 0, false
	}

	return *p.HopStart - *p.HopLimit, true
}

// NodeInfo is one entry of a gateway's node database.
type NodeInfo struct {
	Num       uint32           `json:"num"`
	User      *User            `json:"user,omitempty"`
	Position  *PositionPayload `json:"position,omitempty"`
	SNR       *float64         `json:"snr,omitempty"`
	LastHeard int64            `json:"lastHeard,omitempty"`
	HopsAway  *uint32          `json:"hopsAway,omitempty"`
}

// NodeUpdate is a partial update of a node record. Nil fields are left
// unchanged when merged.
type NodeUpdate struct {
	Num      uint32
	User     *User
	Position *Position
	HopCount *uint32
	HopLimit *uint32
	RSSI     *float64
	SNR      *float64
	Heard    time.Time
}

// Node is the tracker's view of a single radio.
type Node struct {
	Num       uint32    `json:"num"`
	User      *User     `json:"user,omitempty"`
	Position  *Position `json:"position,omitempty"`
	HopCount  *uint32   `json:"hop_count,omitempty"`
	HopLimit  *uint32   `json:"hop_limit,omitempty"`
	RSSI      *float64  `json:"rssi,omitempty"`
	SNR       *float64  `json:"snr,omitempty"`
	LastHeard time.Time `json:"last_heard"`
}

// NumLabel returns the value used for the num label.
func (n *Node) NumLabel() string {
	return fmt.Sprintf("%d", n.Num)
}

// DefaultID renders the !hex id radios use when no user info is known.
func (n *Node) DefaultID() string {
	return fmt.Sprintf("!%08x", n.Num)
}

// Update converts a node-database entry into a partial update.
func (ni *NodeInfo) Update(now time.Time) NodeUpdate {
	u := NodeUpdate{
		Num:      ni.Num,
		User:     ni.User,
		HopCount: ni.HopsAway,
		SNR:      ni.SNR,
		Heard:    now,
	}

	if ni.LastHeard > 0 {
		u.Heard = time.Unix(ni.LastHeard, 0)
	}

	if pos, ok := ni.Position.Position(); ok {
		u.Position = &pos
	}

	return u
}
