package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChannelAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_channel_attempts_total",
		Help: "The total number of channel attempts by outcome",
	}, []string{"channel", "outcome"})

	ChannelAttemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courier_channel_attempt_duration_seconds",
		Help:    "Time taken by a single channel attempt",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel"})

	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_submissions_total",
		Help: "The total number of submission runs by result kind",
	}, []string{"result"})

	SubmissionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_submissions_rejected_total",
		Help: "The total number of submissions rejected before any channel was tried",
	}, []string{"reason"})

	SubmissionsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "courier_submissions_in_flight",
		Help: "The number of submission runs currently in progress",
	})
)
