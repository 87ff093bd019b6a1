// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package capture

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	gomock "go.uber.org/mock/gomock"

	"github.com/bbnote/gostlink-swo/coresight"
)

// itmBytes encodes one single byte stimulus packet per value on port 0.
func itmBytes(values ...byte) []byte {
	var out []byte

	for _, v := range values {
		out = append(out, 0x01, v)
	}

	return out
}

func sequence(n int) []byte {
	out := make([]byte, n)

	for i := range out {
		out[i] = byte(i)
	}

	return out
}

var _ = Describe("Loop", func() {
	var (
		mockCtrl *gomock.Controller
		source   *MockTraceSource
		poller   *MockPoller
		received []coresight.Packet
		sleeps   []time.Duration
		hook     *logtest.Hook
		loop     *Loop
	)

	fakeSleep := func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		source = NewMockTraceSource(mockCtrl)
		poller = NewMockPoller(mockCtrl)
		received = nil
		sleeps = nil

		var log *logrus.Logger
		log, hook = logtest.NewNullLogger()
		log.SetLevel(logrus.DebugLevel)

		var err error
		loop, err = NewLoop(Config{
			Source: source,
			Sink: SinkFunc(func(p coresight.Packet) {
				received = append(received, p)
			}),
			Poller: poller,
			Sleep:  fakeSleep,
			Logger: log,
		})
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should reject a config without source or sink", func() {
		_, err := NewLoop(Config{Sink: SinkFunc(func(coresight.Packet) {})})
		Expect(err).To(HaveOccurred())

		_, err = NewLoop(Config{Source: source})
		Expect(err).To(HaveOccurred())
	})

	It("should skip the read when the buffer is empty", func() {
		source.EXPECT().TraceBufferedByteCount().Return(0, nil)
		poller.EXPECT().Poll().Return(nil)

		Expect(loop.Tick()).To(Equal(0))
		Expect(received).To(BeEmpty())
	})

	It("should deliver decoded packets in order", func() {
		source.EXPECT().TraceBufferedByteCount().Return(6, nil)
		source.EXPECT().ReadTraceBytes(6).Return(itmBytes('a', 'b', 'c'), nil)
		poller.EXPECT().Poll().Return(nil)

		Expect(loop.Tick()).To(Equal(3))
		Expect(received).To(HaveLen(3))
		Expect(received[0].Payload).To(Equal([]byte{'a'}))
		Expect(received[1].Payload).To(Equal([]byte{'b'}))
		Expect(received[2].Payload).To(Equal([]byte{'c'}))
		Expect(loop.Stats().Bytes).To(Equal(6))
		Expect(loop.Stats().Packets).To(Equal(3))
	})

	It("should feed exactly the bytes of a short read", func() {
		data := itmBytes(sequence(20)...)

		source.EXPECT().TraceBufferedByteCount().Return(100, nil)
		source.EXPECT().ReadTraceBytes(100).Return(data, errors.New("short read"))
		poller.EXPECT().Poll().Return(nil)

		Expect(loop.Tick()).To(Equal(20))

		Expect(received).To(HaveLen(20))
		for i, p := range received {
			Expect(p.Payload).To(Equal([]byte{byte(i)}))
		}

		stats := loop.Stats()
		Expect(stats.Bytes).To(Equal(40))
		Expect(stats.ShortReads).To(Equal(1))
		Expect(stats.SourceErrors).To(Equal(0))
	})

	It("should complete packets split across ticks", func() {
		gomock.InOrder(
			source.EXPECT().TraceBufferedByteCount().Return(3, nil),
			source.EXPECT().ReadTraceBytes(3).Return([]byte{0x03, 0x78, 0x56}, nil),
			source.EXPECT().TraceBufferedByteCount().Return(2, nil),
			source.EXPECT().ReadTraceBytes(2).Return([]byte{0x34, 0x12}, nil),
		)
		poller.EXPECT().Poll().Return(nil).Times(2)

		Expect(loop.RunFor(context.Background(), 2)).To(Succeed())

		Expect(received).To(HaveLen(1))
		Expect(received[0].Value()).To(Equal(uint32(0x12345678)))
		Expect(sleeps).To(Equal([]time.Duration{DefaultInterval}))
	})

	It("should keep running after probe faults", func() {
		gomock.InOrder(
			source.EXPECT().TraceBufferedByteCount().Return(0, errors.New("usb timeout")),
			source.EXPECT().TraceBufferedByteCount().Return(4, nil),
			source.EXPECT().ReadTraceBytes(4).Return(nil, errors.New("usb io error")),
			source.EXPECT().TraceBufferedByteCount().Return(2, nil),
			source.EXPECT().ReadTraceBytes(2).Return(itmBytes('x'), nil),
		)
		poller.EXPECT().Poll().Return(nil).Times(3)

		Expect(loop.RunFor(context.Background(), 3)).To(Succeed())

		Expect(received).To(HaveLen(1))
		Expect(loop.Stats().SourceErrors).To(Equal(2))
		Expect(loop.Stats().Ticks).To(Equal(3))
		Expect(hook.Entries).ToNot(BeEmpty())
	})

	It("should log and continue on poll errors", func() {
		source.EXPECT().TraceBufferedByteCount().Return(0, nil).Times(2)
		poller.EXPECT().Poll().Return(errors.New("bus fault")).Times(2)

		Expect(loop.RunFor(context.Background(), 2)).To(Succeed())

		Expect(loop.Stats().PollErrors).To(Equal(2))
		Expect(hook.LastEntry().Level).To(Equal(logrus.WarnLevel))
	})

	It("should count resynchronized bytes", func() {
		source.EXPECT().TraceBufferedByteCount().Return(5, nil)
		source.EXPECT().ReadTraceBytes(5).Return([]byte{0x01, 'a', 0x24, 0x01, 'b'}, nil)
		poller.EXPECT().Poll().Return(nil)

		Expect(loop.Tick()).To(Equal(2))
		Expect(loop.Stats().DecodeFaults).To(Equal(1))
	})

	It("should stop when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())

		loop.sleep = func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			if len(sleeps) == 3 {
				cancel()
			}

			return nil
		}

		source.EXPECT().TraceBufferedByteCount().Return(0, nil).Times(3)
		poller.EXPECT().Poll().Return(nil).Times(3)

		err := loop.Run(ctx)

		Expect(err).To(MatchError(context.Canceled))
		Expect(loop.Stats().Ticks).To(Equal(3))
	})

	It("should not poll the probe with a done context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Expect(loop.Run(ctx)).To(MatchError(context.Canceled))
		Expect(loop.RunFor(ctx, 5)).To(MatchError(context.Canceled))
		Expect(loop.Stats().Ticks).To(Equal(0))
	})
})

var _ = Describe("Sinks", func() {
	var mockCtrl *gomock.Controller

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should hand packets to a sink in order", func() {
		source := NewMockTraceSource(mockCtrl)
		sink := NewMockSink(mockCtrl)

		source.EXPECT().TraceBufferedByteCount().Return(4, nil)
		source.EXPECT().ReadTraceBytes(4).Return(itmBytes(1, 2), nil)

		var values []uint32
		sink.EXPECT().HandlePacket(gomock.Any()).Do(func(p coresight.Packet) {
			values = append(values, p.Value())
		}).Times(2)

		loop, err := NewLoop(Config{Source: source, Sink: sink, Logger: logrus.New()})
		Expect(err).ToNot(HaveOccurred())

		Expect(loop.Tick()).To(Equal(2))
		Expect(values).To(Equal([]uint32{1, 2}))
	})

	It("should send packets to a channel", func() {
		source := NewMockTraceSource(mockCtrl)
		packets := make(chan coresight.Packet, 4)

		source.EXPECT().TraceBufferedByteCount().Return(4, nil)
		source.EXPECT().ReadTraceBytes(4).Return(itmBytes(7, 8), nil)

		loop, err := NewLoop(Config{Source: source, Sink: ChannelSink(packets)})
		Expect(err).ToNot(HaveOccurred())

		loop.Tick()

		Expect(packets).To(HaveLen(2))
		Expect((<-packets).Value()).To(Equal(uint32(7)))
		Expect((<-packets).Value()).To(Equal(uint32(8)))
	})

	It("should stop blocking on a channel once the context is done", func() {
		source := NewMockTraceSource(mockCtrl)
		packets := make(chan coresight.Packet)
		ctx, cancel := context.WithCancel(context.Background())

		source.EXPECT().TraceBufferedByteCount().Return(4, nil)
		source.EXPECT().ReadTraceBytes(4).Return(itmBytes(7, 8), nil)

		loop, err := NewLoop(Config{Source: source, Sink: NewContextSink(ctx, packets)})
		Expect(err).ToNot(HaveOccurred())

		cancel()

		// nobody reads the channel
		Expect(loop.Tick()).To(Equal(2))
		Expect(loop.Stats().Packets).To(Equal(2))
	})
})
