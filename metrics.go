package sqsrepo

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "sqsrepo"

// metrics holds the counters maintained by one Session, curried with the
// session's queue name.
type metrics struct {
	sent         *prometheus.CounterVec
	received     prometheus.Counter
	deleted      *prometheus.CounterVec
	deleteRounds prometheus.Counter
}

func newMetrics(reg prometheus.Registerer, queueName string) (*metrics, error) {
	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "messages_sent_total",
		Help:      "Messages submitted to SQS, by outcome.",
	}, []string{"queue", "result"})

	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "messages_received_total",
		Help:      "Messages received from SQS.",
	}, []string{"queue"})

	deleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "messages_deleted_total",
		Help:      "Receipt handles submitted for deletion, by outcome.",
	}, []string{"queue", "result"})

	deleteRounds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "delete_retry_rounds_total",
		Help:      "Delete retry rounds issued for rejected receipt handles.",
	}, []string{"queue"})

	if reg != nil {
		var err error

		for _, c := range []**prometheus.CounterVec{&sent, &received, &deleted, &deleteRounds} {
			if *c, err = register(reg, *c); err != nil {
				return nil, fmt.Errorf("failed to register SQS metrics: %w", err)
			}
		}
	}

	labels := prometheus.Labels{"queue": queueName}

	return &metrics{
		sent:         sent.MustCurryWith(labels),
		received:     received.With(labels),
		deleted:      deleted.MustCurryWith(labels),
		deleteRounds: deleteRounds.With(labels),
	}, nil
}

// register registers c with reg, returning the already registered collector
// when another Session on the same registerer got there first.
func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
			return existing, nil
		}
	}

	return nil, err
}

func (m *metrics) observeSent(successful, failed int) {
	m.sent.WithLabelValues("success").Add(float64(successful))
	m.sent.WithLabelValues("failure").Add(float64(failed))
}

func (m *metrics) observeDeleted(successful, failed int) {
	m.deleted.WithLabelValues("success").Add(float64(successful))
	m.deleted.WithLabelValues("failure").Add(float64(failed))
}
