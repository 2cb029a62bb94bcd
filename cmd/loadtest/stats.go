package main

import (
	"sync/atomic"
	"time"
)

// Stats tracks performance metrics across all bots
type Stats struct {
	messagesPosted    atomic.Int64
	messagesEchoed    atomic.Int64
	totalResponseTime atomic.Int64 // microseconds, echoed messages only
	sendFailures      atomic.Int64
	serverErrors      atomic.Int64
	timeouts          atomic.Int64
	connects          atomic.Int64
	disconnects       atomic.Int64
}

func (s *Stats) recordPosted() {
	s.messagesPosted.Add(1)
}

func (s *Stats) recordEcho(rtt time.Duration) {
	s.messagesEchoed.Add(1)
	s.totalResponseTime.Add(rtt.Microseconds())
}

func (s *Stats) recordSendFailure() {
	s.sendFailures.Add(1)
}

func (s *Stats) recordServerError() {
	s.serverErrors.Add(1)
}

func (s *Stats) recordTimeouts(n int) {
	s.timeouts.Add(int64(n))
}

func (s *Stats) recordConnect() {
	s.connects.Add(1)
}

func (s *Stats) recordDisconnect() {
	s.disconnects.Add(1)
}

// Snapshot is a point-in-time copy of Stats
type Snapshot struct {
	Posted       int64
	Echoed       int64
	SendFailures int64
	ServerErrors int64
	Timeouts     int64
	Connects     int64
	Disconnects  int64
	AvgResponse  time.Duration
}

func (s *Stats) snapshot() Snapshot {
	snap := Snapshot{
		Posted:       s.messagesPosted.Load(),
		Echoed:       s.messagesEchoed.Load(),
		SendFailures: s.sendFailures.Load(),
		ServerErrors: s.serverErrors.Load(),
		Timeouts:     s.timeouts.Load(),
		Connects:     s.connects.Load(),
		Disconnects:  s.disconnects.Load(),
	}
	if snap.Echoed > 0 {
		snap.AvgResponse = time.Duration(s.totalResponseTime.Load()/snap.Echoed) * time.Microsecond
	}
	return snap
}

// SuccessRate is the share of posted messages that came back, in percent
func (s Snapshot) SuccessRate() float64 {
	if s.Posted == 0 {
		return 0
	}
	return float64(s.Echoed) / float64(s.Posted) * 100
}
