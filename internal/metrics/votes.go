// Package metrics exposes Prometheus instruments for vote handling.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/townboard/backend/internal/ledger"
)

// Rejection reasons used in the "reason" label.
const (
	ReasonDuplicate     = "duplicate"
	ReasonInvalidOption = "invalid_option"
	ReasonInvalidChoice = "invalid_choice"
	ReasonClosed        = "closed"
	ReasonNotFound      = "not_found"
	ReasonError         = "error"
)

// Votes counts accepted and rejected votes per votable kind
// (post, comment, poll) and times the store round trip.
type Votes struct {
	Accepted *prometheus.CounterVec
	Rejected *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewVotes registers the vote instruments on reg.
func NewVotes(reg prometheus.Registerer, namespace string) *Votes {
	f := promauto.With(reg)
	return &Votes{
		Accepted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "votes",
			Name:      "accepted_total",
			Help:      "Votes recorded in the ledger.",
		}, []string{"kind"}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "votes",
			Name:      "rejected_total",
			Help:      "Votes refused, by reason.",
		}, []string{"kind", "reason"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "votes",
			Name:      "cast_duration_seconds",
			Help:      "Time spent applying a vote in the store.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"kind"}),
	}
}

// Observe records one cast attempt that started at start. A nil receiver does nothing.
func (v *Votes) Observe(kind string, start time.Time, err error) {
	if v == nil {
		return
	}
	v.Duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err == nil {
		v.Accepted.WithLabelValues(kind).Inc()
		return
	}
	v.Rejected.WithLabelValues(kind, Reason(err)).Inc()
}

// Reason maps a cast error to its label value.
func Reason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrDuplicateVote):
		return ReasonDuplicate
	case errors.Is(err, ledger.ErrInvalidOption):
		return ReasonInvalidOption
	case errors.Is(err, ledger.ErrInvalidChoice):
		return ReasonInvalidChoice
	case errors.Is(err, ledger.ErrPollClosed):
		return ReasonClosed
	case errors.Is(err, ledger.ErrNotFound):
		return ReasonNotFound
	default:
		return ReasonError
	}
}
