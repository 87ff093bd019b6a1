// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package capture drains the SWO trace buffer of a probe on a fixed cadence
// and hands the decoded packets to a sink.
package capture

import (
	"context"
	"errors"
	"time"

	"github.com/bbnote/gostlink-swo/coresight"
	"github.com/sirupsen/logrus"
)

// DefaultInterval is the pause between two polls of the trace buffer.
const DefaultInterval = 60 * time.Millisecond

// TraceSource is the trace buffer side of a probe.
type TraceSource interface {
	TraceBufferedByteCount() (int, error)
	// ReadTraceBytes may return fewer bytes than requested together with
	// an error; the bytes returned are valid.
	ReadTraceBytes(count int) ([]byte, error)
}

// Poller services target side trace state between reads.
type Poller interface {
	Poll() error
}

// Sink receives decoded packets in stream order.
type Sink interface {
	HandlePacket(p coresight.Packet)
}

type SinkFunc func(p coresight.Packet)

func (f SinkFunc) HandlePacket(p coresight.Packet) {
	f(p)
}

// ChannelSink sends every packet to the channel, blocking while it is full.
// The reader must keep draining the channel or Tick never returns; use
// NewContextSink when the reader may stop first.
type ChannelSink chan<- coresight.Packet

func (c ChannelSink) HandlePacket(p coresight.Packet) {
	c <- p
}

type contextSink struct {
	ctx context.Context
	c   chan<- coresight.Packet
}

// NewContextSink returns a channel sink that drops packets once ctx is done
// instead of blocking.
func NewContextSink(ctx context.Context, c chan<- coresight.Packet) Sink {
	return &contextSink{ctx: ctx, c: c}
}

func (s *contextSink) HandlePacket(p coresight.Packet) {
	select {
	case s.c <- p:
	case <-s.ctx.Done():
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type Config struct {
	Source TraceSource
	Sink   Sink
	Poller Poller

	// Decoder defaults to a fresh coresight.NewDecoder()
	Decoder  *coresight.Decoder
	Interval time.Duration
	Sleep    SleepFunc
	Logger   logrus.FieldLogger
}

type Stats struct {
	Ticks        int
	Bytes        int
	Packets      int
	ShortReads   int
	SourceErrors int
	PollErrors   int
	DecodeFaults int
}

// Loop is a single threaded capture session. It owns its decoder.
type Loop struct {
	source   TraceSource
	sink     Sink
	poller   Poller
	decoder  *coresight.Decoder
	interval time.Duration
	sleep    SleepFunc
	log      logrus.FieldLogger
	stats    Stats
}

func NewLoop(config Config) (*Loop, error) {
	if config.Source == nil {
		return nil, errors.New("capture loop needs a trace source")
	}

	if config.Sink == nil {
		return nil, errors.New("capture loop needs a packet sink")
	}

	l := &Loop{
		source:   config.Source,
		sink:     config.Sink,
		poller:   config.Poller,
		decoder:  config.Decoder,
		interval: config.Interval,
		sleep:    config.Sleep,
		log:      config.Logger,
	}

	if l.decoder == nil {
		l.decoder = coresight.NewDecoder()
	}

	if l.interval <= 0 {
		l.interval = DefaultInterval
	}

	if l.sleep == nil {
		l.sleep = sleepContext
	}

	if l.log == nil {
		l.log = logrus.StandardLogger()
	}

	return l, nil
}

// Run ticks until ctx is done and returns ctx.Err(). Cancellation is checked
// before every poll of the probe.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.Tick()

		if err := l.sleep(ctx, l.interval); err != nil {
			return err
		}
	}
}

// RunFor runs n iterations, sleeping between them.
func (l *Loop) RunFor(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := l.sleep(ctx, l.interval); err != nil {
				return err
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		l.Tick()
	}

	return nil
}

// Tick runs one iteration and returns the number of packets handed to the
// sink. Probe faults are logged and counted, never returned.
func (l *Loop) Tick() int {
	l.stats.Ticks++

	l.drainProbe()
	delivered := l.drainDecoder()

	if l.poller != nil {
		if err := l.poller.Poll(); err != nil {
			l.stats.PollErrors++
			l.log.WithError(err).Warn("target poll failed")
		}
	}

	return delivered
}

// Stats returns the counters collected so far.
func (l *Loop) Stats() Stats {
	return l.stats
}

func (l *Loop) drainProbe() {
	count, err := l.source.TraceBufferedByteCount()

	if err != nil {
		l.stats.SourceErrors++
		l.log.WithError(err).Warn("could not query trace buffer")
		return
	}

	if count <= 0 {
		return
	}

	data, err := l.source.ReadTraceBytes(count)

	if err != nil {
		if len(data) == 0 {
			l.stats.SourceErrors++
			l.log.WithError(err).Warn("could not read trace buffer")
			return
		}

		l.stats.ShortReads++
		l.log.WithError(err).Debugf("short trace read, got %d of %d bytes", len(data), count)
	}

	l.stats.Bytes += len(data)

	faults := l.decoder.Faults()
	l.decoder.Feed(data)

	if dropped := l.decoder.Faults() - faults; dropped > 0 {
		l.log.Debugf("dropped %d bytes while resynchronizing trace stream", dropped)
	}

	l.stats.DecodeFaults = l.decoder.Faults()
}

func (l *Loop) drainDecoder() int {
	delivered := 0

	for {
		p, ok := l.decoder.Pull()

		if !ok {
			break
		}

		l.sink.HandlePacket(p)
		delivered++
	}

	l.stats.Packets += delivered

	return delivered
}
