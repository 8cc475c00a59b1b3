package collector

import (
	"bufio"
	"bytes"
	"context"
	"math"
	"net"
	"testing"
	"time"

	"github.com/mfreeman451/meshradar/pkg/config"
	"github.com/mfreeman451/meshradar/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func bytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func varintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func fixed32Field(b []byte, num protowire.Number, v uint32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, v)
}

// sint encodes a negative int32 the way protobuf writes int32 varints.
func sint(v int64) uint64 { return uint64(v) }

func positionFrame() []byte {
	lat, lon := int32(525200000), int32(134050000)

	pos := fixed32Field(nil, positionLatitude, uint32(lat))
	pos = fixed32Field(pos, positionLongitude, uint32(lon))
	pos = varintField(pos, positionAltitude, sint(-12))

	data := varintField(nil, dataPortNum, 3)
	data = bytesField(data, dataPayload, pos)

	pkt := fixed32Field(nil, packetFrom, 0x1234)
	pkt = fixed32Field(pkt, packetTo, 0xffffffff)
	pkt = bytesField(pkt, packetDecoded, data)
	pkt = fixed32Field(pkt, packetID, 99)
	pkt = fixed32Field(pkt, packetRxTime, uint32(t0.Unix()))
	pkt = fixed32Field(pkt, packetRxSNR, math.Float32bits(6.25))
	pkt = varintField(pkt, packetHopLimit, 3)
	pkt = varintField(pkt, packetRxRSSI, sint(-95))
	pkt = varintField(pkt, packetHopStart, 5)

	return bytesField(nil, fromRadioPacket, pkt)
}

func nodeInfoFrame() []byte {
	user := bytesField(nil, userID, []byte("!00001234"))
	user = bytesField(user, userLongName, []byte("Alpha"))
	user = bytesField(user, userShortName, []byte("ALF"))
	user = bytesField(user, userMacAddr, []byte{1, 2, 3, 4, 5, 6})
	user = varintField(user, userHWModel, 9)
	user = varintField(user, userIsLicensed, 1)

	node := varintField(nil, nodeNum, 0x1234)
	node = bytesField(node, nodeUser, user)
	node = fixed32Field(node, nodeSNR, math.Float32bits(-3.5))
	node = fixed32Field(node, nodeLastHeard, uint32(t0.Unix()))
	node = varintField(node, nodeHopsAway, 1)
	// fields this collector does not read
	node = varintField(node, 8, 1)
	node = protowire.AppendTag(node, 99, protowire.Fixed64Type)
	node = protowire.AppendFixed64(node, 7)

	return bytesField(nil, fromRadioNodeInfo, node)
}

func TestDecodeFromRadioPacket(t *testing.T) {
	msg, err := decodeFromRadio(positionFrame())
	require.NoError(t, err)
	require.NotNil(t, msg.Packet)

	p := msg.Packet
	assert.Equal(t, uint32(0x1234), p.From)
	assert.Equal(t, uint32(0xffffffff), p.To)
	assert.Equal(t, uint32(99), p.ID)
	assert.Equal(t, t0.Unix(), p.RxTime)
	assert.InDelta(t, 6.25, *p.RxSNR, 0)
	assert.InDelta(t, -95, *p.RxRSSI, 0)
	assert.Equal(t, models.PortPosition, p.Type())

	hops, ok := p.HopsAway()
	require.True(t, ok)
	assert.Equal(t, uint32(2), hops)

	pos, ok := p.Decoded.Position.Position()
	require.True(t, ok)
	assert.InDelta(t, 52.52, pos.Latitude, 1e-6)
	assert.InDelta(t, 13.405, pos.Longitude, 1e-6)
	assert.InDelta(t, -12, pos.Altitude, 0)
}

func TestDecodeFromRadioNodeInfo(t *testing.T) {
	msg, err := decodeFromRadio(nodeInfoFrame())
	require.NoError(t, err)
	require.NotNil(t, msg.Node)

	n := msg.Node
	assert.Equal(t, uint32(0x1234), n.Num)
	assert.Equal(t, &models.User{
		ID:         "!00001234",
		LongName:   "Alpha",
		ShortName:  "ALF",
		MacAddr:    "01:02:03:04:05:06",
		HWModel:    "RAK4631",
		IsLicensed: true,
	}, n.User)
	assert.InDelta(t, -3.5, *n.SNR, 0)
	assert.Equal(t, t0.Unix(), n.LastHeard)
	assert.Equal(t, uint32(1), *n.HopsAway)
}

func TestDecodeFromRadioEncryptedAndTruncated(t *testing.T) {
	pkt := fixed32Field(nil, packetFrom, 7)
	pkt = bytesField(pkt, 5, []byte{0xde, 0xad})

	msg, err := decodeFromRadio(bytesField(nil, fromRadioPacket, pkt))
	require.NoError(t, err)
	assert.Equal(t, models.PortEncrypted, msg.Packet.Type())

	frame := nodeInfoFrame()
	_, err = decodeFromRadio(frame[:len(frame)-3])
	require.ErrorIs(t, err, ErrDecodeFrame)
}

func TestReadFrameSkipsConsoleOutput(t *testing.T) {
	var buf bytes.Buffer

	buf.WriteString("INFO | booting\r\n")
	require.NoError(t, writeFrame(&buf, []byte{1, 2, 3}))
	buf.Write([]byte{frameStart1, frameStart2, 0x03, 0x00}) // length above the maximum
	buf.WriteByte(frameStart1)
	require.NoError(t, writeFrame(&buf, []byte{4}))

	r := bufio.NewReader(&buf)

	payload, err := readFrame(r)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, payload)

	payload, err = readFrame(r)
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, payload)

	_, err = readFrame(r)
	require.Error(t, err)

	require.ErrorIs(t, writeFrame(&buf, make([]byte, maxFrameSize+1)), ErrFrameTooLarge)
}

func TestNewStreamSourceDefaultsPort(t *testing.T) {
	src, err := NewStreamSource(&config.SourceConfig{Name: "radio", Address: "meshtastic.local"}, NewNodeTracker(), nil)
	require.NoError(t, err)
	assert.Equal(t, "meshtastic.local:4403", src.addr)
	assert.Equal(t, "tcp://meshtastic.local:4403", src.Status().URL)

	_, err = NewStreamSource(&config.SourceConfig{Name: "radio"}, NewNodeTracker(), nil)
	require.ErrorIs(t, err, ErrSourceAddress)
}

// acceptConfigRequest waits for the next client and returns it along with
// the config id it asked for.
func acceptConfigRequest(t *testing.T, accepted <-chan net.Conn) (net.Conn, uint32) {
	t.Helper()

	var conn net.Conn

	select {
	case conn = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("source did not connect")
	}

	req, err := readFrame(bufio.NewReader(conn))
	require.NoError(t, err)

	var id uint32

	require.NoError(t, walkFields(req, func(f *wireField) error {
		if f.num == toRadioWantConfig {
			id = uint32(f.value)
		}

		return nil
	}))
	require.NotZero(t, id)

	return conn, id
}

func TestStreamSourceFeedsTrackerAndReconnects(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	accepted := make(chan net.Conn, 2)

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}

			accepted <- c
		}
	}()

	tracker := NewNodeTracker()
	handler := NewPacketHandler(tracker, nil)

	src, err := NewStreamSource(&config.SourceConfig{Name: "radio", Type: config.SourceTCP, Address: ln.Addr().String()}, tracker, handler)
	require.NoError(t, err)

	src.minBackoff = 10 * time.Millisecond

	require.NoError(t, src.Start(context.Background()))

	conn, id := acceptConfigRequest(t, accepted)

	myInfo := bytesField(nil, fromRadioMyInfo, varintField(nil, 1, 0x1234))
	for _, frame := range [][]byte{myInfo, nodeInfoFrame(), positionFrame(), varintField(nil, fromRadioConfigComplete, uint64(id))} {
		require.NoError(t, writeFrame(conn, frame))
	}

	require.Eventually(t, func() bool {
		n, ok := tracker.Get(0x1234)
		return ok && n.User != nil && n.User.LongName == "Alpha" && n.Position != nil
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		counts := handler.MessageCounts()
		return len(counts) == 1 && counts[0].Type == models.PortPosition && counts[0].Count == 1
	}, 5*time.Second, 10*time.Millisecond)

	st := src.Status()
	assert.True(t, st.Available)
	assert.Equal(t, 1, st.Nodes)

	require.NoError(t, conn.Close())

	second, _ := acceptConfigRequest(t, accepted)
	defer second.Close()

	require.NoError(t, src.Stop())
	assert.Equal(t, "radio", src.Name())
}
